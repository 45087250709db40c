package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/is57/scorebot/internal/access"
	"github.com/is57/scorebot/internal/logging"
	"github.com/is57/scorebot/internal/scoring"
	"github.com/is57/scorebot/internal/selection"
)

// Sender delivers text replies.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) (*Result, error)
}

// ScoringAPI is the subset of the scoring backend the commands use.
type ScoringAPI interface {
	GetTeams(ctx context.Context) ([]scoring.Team, error)
	GetTasks(ctx context.Context) ([]scoring.Task, error)
	GetResults(ctx context.Context) (scoring.Results, error)
	AddTeam(ctx context.Context, token string, building int, name string) error
	RemoveTeam(ctx context.Context, token string, teamID int64) error
	AddTask(ctx context.Context, token, subject, name string) error
	RemoveTask(ctx context.Context, token string, taskID int64) error
	SetResult(ctx context.Context, token string, teamID, taskID int64, value int) error
	SetDate(ctx context.Context, token, value string) error
}

// HandlerConfig holds the collaborators of a Handler.
type HandlerConfig struct {
	Sender      Sender
	Scoring     ScoringAPI
	Access      *access.Store
	Selections  *selection.Cache
	RateLimiter *RateLimiter // optional
	Subjects    []string
	Buildings   []int
	BotUsername string // commands addressed to other bots are ignored
}

// request is one parsed command invocation.
type request struct {
	userID int64
	chatID int64
	name   string
	args   []string
}

// command is a registered bot command. Failure prefixes the error reply when
// run returns an error.
type command struct {
	level   access.Level
	failure string
	run     func(ctx context.Context, req *request) error
}

// Handler authorizes and executes bot commands.
type Handler struct {
	sender     Sender
	api        ScoringAPI
	store      *access.Store
	gate       *access.Gate
	selections *selection.Cache
	limiter    *RateLimiter
	subjects   []string
	buildings  []int
	commands   map[string]*command
	username   string
}

// NewHandler creates a handler and registers every command.
func NewHandler(cfg *HandlerConfig) *Handler {
	h := &Handler{
		sender:     cfg.Sender,
		api:        cfg.Scoring,
		store:      cfg.Access,
		gate:       access.NewGate(cfg.Access),
		selections: cfg.Selections,
		limiter:    cfg.RateLimiter,
		subjects:   cfg.Subjects,
		buildings:  cfg.Buildings,
		username:   cfg.BotUsername,
	}
	h.commands = h.registerCommands()
	return h
}

// HandleUpdate implements UpdateHandler.
func (h *Handler) HandleUpdate(ctx context.Context, update *Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return
	}

	parsed, parseErr := ParseCommand(msg.Text, h.username)
	if errors.Is(parseErr, ErrNotCommand) {
		return
	}

	req := &request{
		userID: msg.From.ID,
		chatID: msg.Chat.ID,
		name:   parsed.Name,
		args:   parsed.Args,
	}

	ctx = logging.ContextWithCorrelationID(ctx, uuid.NewString())
	ctx = logging.ContextWithSender(ctx, req.userID, req.chatID)
	ctx = logging.ContextWithCommand(ctx, req.name)
	log := logging.WithContext(ctx).With(slog.String("component", "telegram"))

	cmd, ok := h.commands[req.name]
	if !ok {
		// Group chats carry commands for other bots too; only answer in private.
		if access.IsPrivateChat(req.chatID) && h.gate.CanUse(req.userID, req.chatID, false) {
			h.reply(ctx, req.chatID, "❓ Неизвестная команда. Используйте /help для списка команд.")
		}
		return
	}

	if err := h.gate.Authorize(req.userID, req.chatID, cmd.level); err != nil {
		log.Info("Command denied", slog.String("level", cmd.level.String()), slog.Any("reason", err))
		h.reply(ctx, req.chatID, deniedMessage(err))
		return
	}

	// Only authorized commands count against the chat's budget.
	if h.limiter != nil && !h.limiter.AllowMessage(req.chatID) {
		log.Warn("Rate limit exceeded")
		h.reply(ctx, req.chatID, "⚠️ Слишком много запросов. Подождите немного и повторите.")
		return
	}

	if parseErr != nil {
		h.reply(ctx, req.chatID, "❌ Не удалось разобрать аргументы: проверьте кавычки.")
		return
	}

	start := time.Now()
	if err := cmd.run(ctx, req); err != nil {
		log.Error("Command failed", slog.Any("error", err), slog.Duration("duration", time.Since(start)))
		h.reply(ctx, req.chatID, fmt.Sprintf("❌ %s: %v", cmd.failure, err))
		return
	}
	log.Info("Command handled", slog.Duration("duration", time.Since(start)))
}

func deniedMessage(err error) string {
	if errors.Is(err, access.ErrAdminOnly) {
		return "❌ Эта команда доступна только администратору бота."
	}
	return "❌ У вас нет доступа к этому боту. Обратитесь к администратору для получения разрешения."
}

// reply sends text, split into several messages when it is too long.
func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	for _, chunk := range chunkContent(strings.TrimRight(text, "\n"), MaxMessageLength) {
		if _, err := h.sender.SendMessage(ctx, chatID, chunk, ""); err != nil {
			logging.WithContext(ctx).Warn("Failed to send reply",
				slog.String("component", "telegram"), slog.Any("error", err))
			return
		}
	}
}
