package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/id"
	"github.com/pagetrail/pagetrail-server/internal/sse"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// RunInTx runs fn in a single Badger read-write transaction. Badger's
// optimistic concurrency turns a concurrent write to any key fn read into
// store.ErrConflict.
func (s *Store) RunInTx(ctx context.Context, ownerID string, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ownerID == "" {
		return store.ErrInvalidInput.WithMessage("owner is required")
	}

	tx := &txn{owner: ownerID, now: s.now}
	err := s.db.Update(func(bt *badger.Txn) error {
		tx.txn = bt
		tx.events = tx.events[:0]
		return fn(tx)
	})
	if err != nil {
		return translate(err)
	}

	s.emit(tx.events)
	return nil
}

// txn implements store.Tx over a Badger transaction.
type txn struct {
	txn    *badger.Txn
	owner  string
	now    func() time.Time
	events []any
}

// OwnerID implements store.Tx.
func (t *txn) OwnerID() string {
	return t.owner
}

// GetBook implements store.Tx.
func (t *txn) GetBook(bookID string) (*domain.Book, error) {
	if err := t.checkOwner(bookID); err != nil {
		return nil, err
	}
	var book domain.Book
	if err := getJSON(t.txn, bookKey(t.owner, bookID), &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// PutBook implements store.Tx.
func (t *txn) PutBook(book *domain.Book) error {
	if book.UserID != t.owner {
		return store.ErrForbidden.WithMessage("book belongs to another user")
	}
	if err := t.checkOwner(book.ID); err != nil {
		return err
	}
	if err := setJSON(t.txn, bookKey(t.owner, book.ID), book); err != nil {
		return err
	}
	t.events = append(t.events, sse.NewBookUpdatedEvent(book.Clone()))
	return nil
}

// InsertSession implements store.Tx.
func (t *txn) InsertSession(session *domain.ReadingSession) error {
	if session.UserID != t.owner {
		return store.ErrForbidden.WithMessage("session belongs to another user")
	}
	if err := t.checkOwner(session.BookID); err != nil {
		return err
	}

	if session.ID == "" {
		sessionID, err := id.Generate(id.Session)
		if err != nil {
			return fmt.Errorf("generate session id: %w", err)
		}
		session.ID = sessionID
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = t.now()
	}

	key := sessionKey(t.owner, session.BookID, session.CreatedAt, session.ID)
	exists, err := keyExists(t.txn, key)
	if err != nil {
		return err
	}
	if exists {
		return store.ErrAlreadyExists.WithMessage("session already recorded")
	}
	if err := setJSON(t.txn, key, session); err != nil {
		return err
	}

	copied := *session
	t.events = append(t.events, sse.NewSessionCreatedEvent(&copied))
	return nil
}

// checkOwner verifies bookID exists and belongs to the transaction's owner.
func (t *txn) checkOwner(bookID string) error {
	item, err := t.txn.Get(ownerKey(bookID))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound.WithMessage("book not found")
		}
		return fmt.Errorf("read book owner: %w", err)
	}
	owner, err := item.ValueCopy(nil)
	if err != nil {
		return fmt.Errorf("read book owner: %w", err)
	}
	if string(owner) != t.owner {
		return store.ErrForbidden.WithMessage("book belongs to another user")
	}
	return nil
}
