package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/is57/scorebot/internal/config"
)

const statusPanelWidth = 56

var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#7eb8da")) // steel blue

	statusBorderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3d4450")) // slate

	statusLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#c9d1d9")) // light gray

	statusOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7ec699")) // sage green

	statusWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4a054")) // amber

	statusDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8b949e")) // mid gray
)

// statusReport is the persisted state shown by the status command.
type statusReport struct {
	ConfigPath  string  `json:"config_path"`
	Backend     string  `json:"backend"`
	DataPath    string  `json:"data_path"`
	ScoringURL  string  `json:"scoring_url"`
	AdminUserID int64   `json:"admin_user_id"`
	BotToken    bool    `json:"bot_token_set"`
	APIToken    bool    `json:"api_token_set"`
	Users       []int64 `json:"allowed_users"`
	Groups      []int64 `json:"allowed_groups"`
	Selections  int     `json:"selections"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and persisted bot state",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			report := buildStatus(cfg, state)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func buildStatus(cfg *config.Config, state *botState) statusReport {
	return statusReport{
		ConfigPath:  configPath(),
		Backend:     cfg.Storage.Backend,
		DataPath:    cfg.Storage.Path,
		ScoringURL:  cfg.Scoring.BaseURL,
		AdminUserID: cfg.AdminUserID,
		BotToken:    cfg.Telegram.BotToken != "",
		APIToken:    state.access.Token() != "",
		Users:       state.access.AllowedUsers(),
		Groups:      state.access.AllowedGroups(),
		Selections:  state.selections.Len(),
	}
}

func renderStatus(w io.Writer, r statusReport) {
	title := "SCOREBOT STATUS"
	dashes := statusPanelWidth - lipgloss.Width("╭─ "+title+" ") - 1
	if dashes < 0 {
		dashes = 0
	}
	fmt.Fprintln(w, statusBorderStyle.Render("╭─ ")+
		statusTitleStyle.Render(title)+
		statusBorderStyle.Render(" "+strings.Repeat("─", dashes)+"╮"))

	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s %s\n",
			statusBorderStyle.Render("│"),
			statusLabelStyle.Render(fmt.Sprintf("%-14s", label)),
			value)
	}

	row("Config", statusDimStyle.Render(r.ConfigPath))
	row("Storage", fmt.Sprintf("%s %s", r.Backend, statusDimStyle.Render(r.DataPath)))
	row("Scoring API", r.ScoringURL)
	if r.AdminUserID == 0 {
		row("Admin", statusWarnStyle.Render("not set"))
	} else {
		row("Admin", fmt.Sprintf("%d", r.AdminUserID))
	}
	row("Bot token", flag(r.BotToken))
	row("API token", flag(r.APIToken))
	row("Users", idList(r.Users))
	row("Groups", idList(r.Groups))
	row("Selections", fmt.Sprintf("%d", r.Selections))

	fmt.Fprintln(w, statusBorderStyle.Render("╰"+strings.Repeat("─", statusPanelWidth-2)+"╯"))
}

func flag(set bool) string {
	if set {
		return statusOKStyle.Render("✓ set")
	}
	return statusWarnStyle.Render("✗ not set")
}

func idList(ids []int64) string {
	if len(ids) == 0 {
		return statusDimStyle.Render("none")
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%d %s", len(ids), statusDimStyle.Render("("+strings.Join(parts, ", ")+")"))
}
