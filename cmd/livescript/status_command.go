package main

import (
	"context"
	"fmt"

	"github.com/livescript/livescript/internal/docstore"
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show conferences, their presentations and the current lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			be, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer be.Close()

			rows, err := statusRows(cmd.Context(), be.store)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no conferences")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Conference", "Presentation", "Title", "Live", "Current line"},
				rows,
			))
			return nil
		},
	}
}

type statusStore interface {
	ListGroups(ctx context.Context) ([]docstore.Group, error)
	ListGroupPresentations(ctx context.Context, groupID string) ([]docstore.Presentation, error)
}

func statusRows(ctx context.Context, store statusStore) ([][]string, error) {
	groups, err := store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var rows [][]string
	for _, g := range groups {
		name := g.ID
		if g.Name != "" {
			name = fmt.Sprintf("%s (%s)", g.Name, g.ID)
		}
		presentations, err := store.ListGroupPresentations(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("list presentations of %s: %w", g.ID, err)
		}
		if len(presentations) == 0 {
			rows = append(rows, []string{name, "-", "", "", ""})
			continue
		}
		for _, p := range presentations {
			live := ""
			if p.ID == g.PresentationSyncID {
				live = "yes"
			}
			current := p.SyncID
			if current == "" {
				current = "-"
			}
			rows = append(rows, []string{name, p.ID, p.Title, live, current})
		}
	}
	return rows, nil
}
