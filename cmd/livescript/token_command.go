package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/livescript/livescript/internal/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an operator access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			token, err := auth.GenerateAccessToken(cfg.JWTSecret, auth.OperatorSubject, ttl)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenDuration, "Token lifetime")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its OPERATOR_PASSWORD_HASH value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			hash, err := auth.HashPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
