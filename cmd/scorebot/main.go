package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/is57/scorebot/internal/config"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"

	cfgFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scorebot",
		Short:         "Telegram bot for the IS57 competition scoring service",
		Long:          `Scorebot lets authorized Telegram users and groups browse and edit teams, tasks and results of the IS57 scoring service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.scorebot/config.yaml)")

	rootCmd.AddCommand(
		newStartCmd(),
		newAllowCmd(),
		newTokenCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show Scorebot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Scorebot %s\n", version)
			if buildTime != "unknown" {
				fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", buildTime)
			}
		},
	}
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
