package main

import (
	"fmt"

	"github.com/is57/scorebot/internal/access"
	"github.com/is57/scorebot/internal/config"
	"github.com/is57/scorebot/internal/selection"
	"github.com/is57/scorebot/internal/storage"
)

// botState is the persisted state opened from the configured backend.
type botState struct {
	backend    storage.Backend
	access     *access.Store
	selections *selection.Cache
	report     access.LoadReport
	selStatus  storage.LoadStatus
}

func openState(cfg *config.Config) (*botState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	backend, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, cfg.Storage.SQLiteDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	observer := storage.LogObserver{}
	st := &botState{
		backend:    backend,
		access:     access.NewStore(cfg.AdminUserID, backend, observer),
		selections: selection.NewCache(backend, observer),
	}
	st.report = st.access.Load()
	st.selStatus = st.selections.Load()
	return st, nil
}

func (s *botState) Close() error {
	return s.backend.Close()
}
