package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/is57/scorebot/internal/access"
	"github.com/is57/scorebot/internal/logging"
)

func newAllowCmd() *cobra.Command {
	var (
		remove bool
		group  bool
		list   bool
	)

	cmd := &cobra.Command{
		Use:   "allow [id]",
		Short: "Manage allowed Telegram users and groups",
		Long: `Add, remove, or list allowed Telegram users and groups.

Changes are written to the data directory and picked up on the next start.

Examples:
  scorebot allow 123456789                   # Allow user
  scorebot allow --remove 123456789          # Revoke user
  scorebot allow --group -- -1001234567890   # Allow group chat
  scorebot allow --list                      # List users and groups`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			quietLogging()

			if !list && len(args) == 0 {
				return fmt.Errorf("id is required (or use --list to show current entries)")
			}
			var id int64
			if !list {
				var err error
				id, err = strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q: must be a numeric Telegram user or chat ID", args[0])
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			state, err := openState(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = state.Close() }()

			switch {
			case list:
				listAllowed(out, state.access)
				return nil
			case group:
				return changeGroup(out, state.access, id, remove)
			default:
				return changeUser(out, state.access, id, remove)
			}
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Remove instead of add")
	cmd.Flags().BoolVar(&group, "group", false, "Treat the id as a group chat")
	cmd.Flags().BoolVar(&list, "list", false, "List allowed users and groups")

	return cmd
}

func listAllowed(out io.Writer, store *access.Store) {
	users := store.AllowedUsers()
	groups := store.AllowedGroups()

	if len(users) == 0 {
		fmt.Fprintln(out, "No allowed users")
	} else {
		fmt.Fprintln(out, "Allowed users:")
		for _, id := range users {
			fmt.Fprintf(out, "  %d\n", id)
		}
	}
	if len(groups) == 0 {
		fmt.Fprintln(out, "No allowed groups")
	} else {
		fmt.Fprintln(out, "Allowed groups:")
		for _, id := range groups {
			fmt.Fprintf(out, "  %d\n", id)
		}
	}
	fmt.Fprintf(out, "\nTotal: %d user(s), %d group(s)\n", len(users), len(groups))
}

func changeUser(out io.Writer, store *access.Store, id int64, remove bool) error {
	if store.IsAdmin(id) {
		fmt.Fprintf(out, "User %d is the admin and always allowed\n", id)
		return nil
	}
	if remove {
		if !store.HasUser(id) {
			fmt.Fprintf(out, "User %d is not allowed\n", id)
			return nil
		}
		if err := store.RemoveUser(id); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Removed user %d\n", id)
		return nil
	}

	if store.HasUser(id) {
		fmt.Fprintf(out, "User %d is already allowed\n", id)
		return nil
	}
	if err := store.AddUser(id); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Allowed user %d\n", id)
	return nil
}

func changeGroup(out io.Writer, store *access.Store, id int64, remove bool) error {
	if id >= 0 {
		return fmt.Errorf("invalid group id %d: group chat IDs are negative", id)
	}
	if remove {
		if !store.HasGroup(id) {
			fmt.Fprintf(out, "Group %d is not allowed\n", id)
			return nil
		}
		if err := store.RemoveGroup(id); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Removed group %d\n", id)
		return nil
	}

	if store.HasGroup(id) {
		fmt.Fprintf(out, "Group %d is already allowed\n", id)
		return nil
	}
	if err := store.AddGroup(id); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Allowed group %d\n", id)
	return nil
}

// quietLogging keeps offline commands' output readable while still
// surfacing storage warnings.
func quietLogging() {
	_ = logging.Init(&logging.Config{Level: "warn", Format: "text", Output: "stderr"})
}
