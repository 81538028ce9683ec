package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/livescript/livescript/internal/config"
	"github.com/livescript/livescript/internal/importer"
	"github.com/spf13/cobra"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var opts importer.Options

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Append transcript lines from a CSV file to a presentation",
		Long: `Columns are english,japanese or transcript,script, with an optional voice
column naming an audio file relative to --voice-dir (default: the CSV's
directory). Voice files are uploaded to blob storage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("import needs the postgres store; use serve --seed for the memory store")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer f.Close()
			rows, err := importer.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			if opts.PresentationID == "" {
				opts.PresentationID = uuid.NewString()
			}
			if opts.VoiceDir == "" {
				opts.VoiceDir = filepath.Dir(args[0])
			}

			be, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer be.Close()

			var uploader importer.Uploader
			st, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if st != nil {
				if err := st.EnsureBucket(cmd.Context()); err != nil {
					return fmt.Errorf("storage bucket check failed: %w", err)
				}
				uploader = st
			}

			res, err := importer.New(be.store, uploader).Import(cmd.Context(), rows, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "presentation %s: %d lines imported, %d voice clips uploaded\n", res.PresentationID, res.Imported, res.Uploaded)
			if res.Created {
				fmt.Fprintln(out, "presentation created")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.PresentationID, "presentation", "", "Presentation id (a new id is generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "Title for a new presentation")
	cmd.Flags().StringVar(&opts.GroupID, "group", "", "Conference group for a new presentation")
	cmd.Flags().StringVar(&opts.VoiceDir, "voice-dir", "", "Directory voice file names are relative to")
	return cmd
}
