package badgerdb

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/id"
	"github.com/pagetrail/pagetrail-server/internal/sse"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// CreateBook stores a new book, assigning an ID and timestamps when unset.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if book.UserID == "" {
		return store.ErrInvalidInput.WithMessage("book owner is required")
	}
	if book.ID == "" {
		bookID, err := id.Generate(id.Book)
		if err != nil {
			return fmt.Errorf("generate book id: %w", err)
		}
		book.ID = bookID
	}
	if book.CreatedAt.IsZero() {
		book.InitTimestamps(s.now())
	}
	if book.Revision == 0 {
		book.Revision = 1
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		exists, err := keyExists(txn, ownerKey(book.ID))
		if err != nil {
			return err
		}
		if exists {
			return store.ErrAlreadyExists.WithMessage("book already exists")
		}
		if err := txn.Set(ownerKey(book.ID), []byte(book.UserID)); err != nil {
			return fmt.Errorf("set book owner: %w", err)
		}
		return setJSON(txn, bookKey(book.UserID, book.ID), book)
	})
	if err != nil {
		return translate(err)
	}

	s.emitter.Emit(sse.NewBookCreatedEvent(book.Clone()))
	return nil
}

// GetBook reads one of the owner's books.
func (s *Store) GetBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var book *domain.Book
	err := s.db.View(func(bt *badger.Txn) error {
		t := &txn{txn: bt, owner: ownerID, now: s.now}
		b, err := t.GetBook(bookID)
		book = b
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return book, nil
}

// ListBooks returns every book the owner has, in key order.
func (s *Store) ListBooks(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var books []*domain.Book
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		books, err = scanJSON[domain.Book](txn, booksPrefix(ownerID))
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return books, nil
}

// UpdateBook implements store.Store.
func (s *Store) UpdateBook(ctx context.Context, ownerID, bookID string, mutate store.BookMutator) (*domain.Book, error) {
	return store.MutateBook(ctx, s, ownerID, bookID, s.now(), mutate)
}

// DeleteBook removes the book, its ownership record and its whole session ledger.
func (s *Store) DeleteBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var deleted *domain.Book
	err := s.db.Update(func(bt *badger.Txn) error {
		t := &txn{txn: bt, owner: ownerID, now: s.now}
		book, err := t.GetBook(bookID)
		if err != nil {
			return err
		}

		for _, key := range scanKeys(bt, sessionsPrefix(ownerID, bookID)) {
			if err := bt.Delete(key); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		if err := bt.Delete(bookKey(ownerID, bookID)); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		if err := bt.Delete(ownerKey(bookID)); err != nil {
			return fmt.Errorf("delete book owner: %w", err)
		}
		deleted = book
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.emitter.Emit(sse.NewBookDeletedEvent(ownerID, bookID))
	return deleted, nil
}
