package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/is57/scorebot/internal/adapters/telegram"
	"github.com/is57/scorebot/internal/config"
	"github.com/is57/scorebot/internal/logging"
	"github.com/is57/scorebot/internal/scheduler"
	"github.com/is57/scorebot/internal/scoring"
)

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bot and poll Telegram for commands",
		Long: `Start the bot in the foreground.

The bot token is read from BOT_TOKEN or telegram.bot_token, the admin from
ADMIN_USER_ID or admin_user_id. Stop with Ctrl+C or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateForPolling(); err != nil {
				return err
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer func() { _ = logging.Close() }()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			return runBot(ctx, cfg)
		},
	}
}

func runBot(ctx context.Context, cfg *config.Config) error {
	logger := logging.WithComponent("main")

	state, err := openState(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := state.Close(); err != nil {
			logger.Warn("Failed to close storage", slog.Any("error", err))
		}
	}()

	if cfg.AdminUserID == 0 {
		logger.Warn("Admin user is not set, admin commands are unavailable",
			slog.String("env", config.EnvAdminUserID))
	}
	logger.Info("State loaded",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("path", cfg.Storage.Path),
		slog.String("users", state.report.Users.String()),
		slog.String("groups", state.report.Groups.String()),
		slog.String("token", state.report.Token.String()),
		slog.String("selections", state.selStatus.String()),
		slog.Int("selection_count", state.selections.Len()))

	var client *telegram.Client
	if cfg.Telegram.APIURL != "" {
		client = telegram.NewClientWithBaseURL(cfg.Telegram.APIURL, cfg.Telegram.BotToken)
	} else {
		client = telegram.NewClient(cfg.Telegram.BotToken)
	}

	if err := client.CheckSingleton(ctx); err != nil {
		return fmt.Errorf("another bot instance is polling: %w", err)
	}
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach Telegram: %w", err)
	}
	logger.Info("Connected to Telegram",
		slog.String("bot", me.Username),
		slog.Int64("bot_id", me.ID))

	limiter := telegram.NewRateLimiter(cfg.Telegram.RateLimit)
	handler := telegram.NewHandler(&telegram.HandlerConfig{
		Sender:      client,
		Scoring:     scoring.NewClient(cfg.Scoring.BaseURL, cfg.Scoring.Timeout),
		Access:      state.access,
		Selections:  state.selections,
		RateLimiter: limiter,
		Subjects:    cfg.Competition.Subjects,
		Buildings:   cfg.Competition.Buildings,
		BotUsername: me.Username,
	})

	sched, err := newMaintenance(cfg.Maintenance, limiter, state)
	if err != nil {
		return err
	}

	transport := telegram.NewTransport(client, handler, cfg.Telegram.PollTimeout, cfg.Telegram.Workers)
	transport.StartPolling(ctx)
	sched.Start(ctx)
	for _, name := range sched.Jobs() {
		logger.Info("Maintenance job scheduled",
			slog.String("job", name),
			slog.Time("next_run", sched.NextRun(name)))
	}

	logger.Info("Scorebot started",
		slog.String("version", version),
		slog.String("scoring", cfg.Scoring.BaseURL))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	transport.Stop()
	sched.Stop()
	if err := sched.RunNow(stateSummaryJob); err != nil {
		logger.Debug("Final state summary skipped", slog.Any("error", err))
	}
	return nil
}

const (
	rateLimitCleanupJob = "rate-limit-cleanup"
	stateSummaryJob     = "state-summary"
)

// newMaintenance registers the background jobs. A job with an empty
// schedule is disabled.
func newMaintenance(cfg *config.MaintenanceConfig, limiter *telegram.RateLimiter, state *botState) (*scheduler.Scheduler, error) {
	sched := scheduler.New(cfg.Timezone)
	logger := logging.WithComponent("maintenance")

	if cfg.RateLimitCleanup != "" {
		maxAge := cfg.RateLimitMaxAge
		if maxAge <= 0 {
			maxAge = time.Hour
		}
		err := sched.AddJob(rateLimitCleanupJob, cfg.RateLimitCleanup, func(ctx context.Context) {
			removed := limiter.Cleanup(maxAge)
			logger.Debug("Rate limit buckets pruned",
				slog.Int("removed", removed),
				slog.Int("remaining", limiter.Len()))
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.StateSummary != "" {
		err := sched.AddJob(stateSummaryJob, cfg.StateSummary, func(ctx context.Context) {
			logger.Info("State summary",
				slog.Int("users", len(state.access.AllowedUsers())),
				slog.Int("groups", len(state.access.AllowedGroups())),
				slog.Bool("token_set", state.access.Token() != ""),
				slog.Int("selections", state.selections.Len()))
		})
		if err != nil {
			return nil, err
		}
	}

	return sched, nil
}
