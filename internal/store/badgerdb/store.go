// Package badgerdb is the embedded Badger implementation of store.Store.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store wraps a Badger database instance.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	emitter store.EventEmitter
	now     func() time.Time

	Users        *Entity[domain.User]
	AuthSessions *Entity[domain.AuthSession]
}

// New opens (or creates) the Badger database at path. Change events are
// sent to emitter after each successful write.
func New(path string, logger *slog.Logger, emitter store.EventEmitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if emitter == nil {
		emitter = store.NewNoopEmitter()
	}

	s := &Store{
		db:      db,
		logger:  logger,
		emitter: emitter,
		now:     time.Now,
	}

	s.Users = NewEntity[domain.User](db, userPrefix).
		WithIndexTransform("email", func(u *domain.User) []string {
			return []string{domain.NormalizeEmail(u.Email)}
		}, domain.NormalizeEmail)

	s.AuthSessions = NewEntity[domain.AuthSession](db, authPrefix).
		WithIndex("token", func(a *domain.AuthSession) []string {
			return []string{a.RefreshTokenHash}
		})

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return s, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// translate maps Badger failures onto store errors. Store errors pass through.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, badger.ErrConflict) {
		return store.ErrConflict.WithCause(err)
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return store.ErrUnavailable.WithCause(err)
	}
	return err
}

func (s *Store) emit(events []any) {
	for _, evt := range events {
		s.emitter.Emit(evt)
	}
}
