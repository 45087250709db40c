package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/is57/scorebot/internal/logging"
)

// retryDelay is the pause after a failed poll.
var retryDelay = time.Second

// UpdateSource delivers batches of updates by long polling.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]*Update, error)
}

// UpdateHandler processes a single update. It must be safe for
// concurrent use.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update *Update)
}

// Transport handles Telegram polling and delegates message processing to
// an UpdateHandler.
type Transport struct {
	source      UpdateSource
	handler     UpdateHandler
	pollTimeout int
	workers     int

	mu     sync.Mutex
	offset int64 // next update ID to request
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   sync.Once
}

// NewTransport creates a new Telegram transport layer. At most workers
// chats of one batch are handled at the same time.
func NewTransport(source UpdateSource, handler UpdateHandler, pollTimeout, workers int) *Transport {
	if workers < 1 {
		workers = 1
	}
	if pollTimeout < 0 {
		pollTimeout = 0
	}
	return &Transport{
		source:      source,
		handler:     handler,
		pollTimeout: pollTimeout,
		workers:     workers,
	}
}

// StartPolling begins the long-polling loop in a goroutine.
func (t *Transport) StartPolling(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.pollLoop(ctx)
}

// Stop interrupts the current poll and waits for in-flight updates.
func (t *Transport) Stop() {
	t.stop.Do(func() {
		t.mu.Lock()
		cancel := t.cancel
		t.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	t.wg.Wait()
}

// Offset returns the next update ID the transport will request.
func (t *Transport) Offset() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset
}

func (t *Transport) pollLoop(ctx context.Context) {
	defer t.wg.Done()

	log := logging.WithComponent("telegram")
	log.Debug("Transport poll loop started")

	for ctx.Err() == nil {
		if err := t.fetchAndProcess(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, ErrConflict) {
				log.Error("Another instance is polling this bot token", slog.Any("error", err))
			} else {
				log.Warn("Error fetching updates", slog.Any("error", err))
			}
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
		}
	}

	log.Debug("Transport poll loop stopped")
}

// fetchAndProcess fetches one batch and handles it before acknowledging.
// Chats are handled concurrently; updates of one chat run in arrival order.
// The offset only moves past a batch once every update in it has returned.
func (t *Transport) fetchAndProcess(ctx context.Context) error {
	updates, err := t.source.GetUpdates(ctx, t.Offset(), t.pollTimeout)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		return nil
	}

	// Handlers run on a context detached from the poll's cancellation so a
	// shutdown lets in-flight commands finish their replies.
	handlerCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(t.workers)

	next := t.Offset()
	for _, queue := range groupByChat(updates) {
		for _, update := range queue {
			if update.UpdateID >= next {
				next = update.UpdateID + 1
			}
		}
		g.Go(func() error {
			for _, update := range queue {
				t.handler.HandleUpdate(handlerCtx, update)
			}
			return nil
		})
	}
	_ = g.Wait()

	t.mu.Lock()
	if next > t.offset {
		t.offset = next
	}
	t.mu.Unlock()
	return nil
}

// groupByChat splits a batch into per-chat queues, keeping the order of
// first appearance. Updates without a chat get a queue of their own.
func groupByChat(updates []*Update) [][]*Update {
	var queues [][]*Update
	index := make(map[int64]int)
	for _, update := range updates {
		if update == nil {
			continue
		}
		if update.Message == nil || update.Message.Chat == nil {
			queues = append(queues, []*Update{update})
			continue
		}
		chatID := update.Message.Chat.ID
		i, ok := index[chatID]
		if !ok {
			i = len(queues)
			index[chatID] = i
			queues = append(queues, nil)
		}
		queues[i] = append(queues[i], update)
	}
	return queues
}
