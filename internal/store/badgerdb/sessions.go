package badgerdb

import (
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagetrail/pagetrail-server/internal/domain"
)

// ListSessions returns a book's ledger in commit order.
func (s *Store) ListSessions(ctx context.Context, ownerID, bookID string) ([]*domain.ReadingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sessions []*domain.ReadingSession
	err := s.db.View(func(bt *badger.Txn) error {
		t := &txn{txn: bt, owner: ownerID, now: s.now}
		if err := t.checkOwner(bookID); err != nil {
			return err
		}
		var err error
		sessions, err = scanJSON[domain.ReadingSession](bt, sessionsPrefix(ownerID, bookID))
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return sessions, nil
}

// ListUserSessions returns every session the owner has logged, grouped by book.
func (s *Store) ListUserSessions(ctx context.Context, ownerID string) ([]*domain.ReadingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var sessions []*domain.ReadingSession
	err := s.db.View(func(bt *badger.Txn) error {
		var err error
		sessions, err = scanJSON[domain.ReadingSession](bt, userSessionsPrefix(ownerID))
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return sessions, nil
}
