package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the scoring API token",
		Long: `Set or clear the token the bot sends with write requests to the scoring API.

The same token can be set from Telegram by the admin with /set_token.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <token>",
			Short: "Store the scoring API token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				token := strings.TrimSpace(args[0])
				if token == "" {
					return fmt.Errorf("token must not be empty (use 'scorebot token clear' to unset it)")
				}
				return storeToken(cmd, token)
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored scoring API token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return storeToken(cmd, "")
			},
		},
	)

	return cmd
}

func storeToken(cmd *cobra.Command, token string) error {
	quietLogging()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	state, err := openState(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = state.Close() }()

	if err := state.access.SetToken(token); err != nil {
		return err
	}
	if token == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Scoring API token cleared")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Scoring API token set (%s)\n", maskToken(token))
	}
	return nil
}

// maskToken keeps the last four characters of longer tokens.
func maskToken(token string) string {
	r := []rune(token)
	if len(r) <= 8 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}
