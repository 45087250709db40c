package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/is57/scorebot/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage Scorebot configuration",
		Long: `Create, view, and validate the Scorebot configuration file.

Subcommands:
  init         Write a config file with default values
  show         Show the effective configuration
  validate     Validate configuration
  path         Show config file path

Configuration File Location:
  Default: ~/.scorebot/config.yaml
  Override with --config flag

Environment variables BOT_TOKEN, ADMIN_USER_ID, IS57_API_BASE_URL and
SCOREBOT_DATA_DIR take precedence over the file.`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigValidateCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "  Set %s and %s, then run: scorebot start\n",
				config.EnvBotToken, config.EnvAdminUserID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Display the configuration after environment overrides.

The bot token is masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Telegram.BotToken != "" {
				cfg.Telegram.BotToken = maskToken(cfg.Telegram.BotToken)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	var polling bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			validate := cfg.Validate
			if polling {
				validate = cfg.ValidateForPolling
			}
			if err := validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&polling, "polling", false, "Also require the bot token")
	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configPath())
		},
	}
}
