package progress

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// BookRef identifies the book a commit applies to and the revision the
// reconciliation was computed from.
type BookRef struct {
	OwnerID          string
	BookID           string
	ExpectedRevision int64
}

// RefOf builds the commit reference for a snapshot.
func RefOf(snap Snapshot) BookRef {
	return BookRef{OwnerID: snap.OwnerID, BookID: snap.BookID, ExpectedRevision: snap.Revision}
}

// Coordinator writes a session and its book update as one unit.
type Coordinator struct {
	runner store.TxRunner
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator over runner.
func NewCoordinator(runner store.TxRunner, logger *slog.Logger) *Coordinator {
	return &Coordinator{runner: runner, logger: logger}
}

// Commit inserts session and applies fields to the referenced book in a
// single transaction. On any failure neither write is visible and the
// returned error has code COMMIT, wrapping NOT_FOUND, FORBIDDEN, CONFLICT or
// the raw store failure. Commit does not retry and is not idempotent.
//
// On success session carries its store-assigned ID.
func (c *Coordinator) Commit(ctx context.Context, ref BookRef, session *domain.ReadingSession, fields BookFields) error {
	originalID := session.ID
	err := c.runner.RunInTx(ctx, ref.OwnerID, func(tx store.Tx) error {
		book, err := tx.GetBook(ref.BookID)
		if err != nil {
			return err
		}
		if book.UserID != ref.OwnerID {
			return store.ErrForbidden.WithMessage("book belongs to another user")
		}
		if book.Revision != ref.ExpectedRevision {
			return store.ErrConflict.WithMessage("book progress changed since it was read")
		}

		session.BookID = ref.BookID
		session.UserID = ref.OwnerID
		if err := tx.InsertSession(session); err != nil {
			return err
		}

		book.PagesRead = fields.PagesRead
		book.Status = fields.Status
		book.Touch(fields.UpdatedAt)
		return tx.PutBook(book)
	})
	if err == nil {
		return nil
	}

	// The transaction rolled back, so any ID assigned inside it was never stored.
	session.ID = originalID

	commitErr := domainerrors.Commit(classify(err))
	c.logger.Warn("reading session commit failed",
		slog.String("book_id", ref.BookID),
		slog.String("user_id", ref.OwnerID),
		slog.Int64("expected_revision", ref.ExpectedRevision),
		slog.String("error", err.Error()))
	return commitErr
}

// classify converts store errors into the domain error the commit wraps.
func classify(err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return domainerrors.Wrap(err, domainerrors.CodeConflict, "book was updated elsewhere")
	case errors.Is(err, store.ErrForbidden):
		return domainerrors.Wrap(err, domainerrors.CodeForbidden, "book belongs to another user")
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.Wrap(err, domainerrors.CodeNotFound, "book not found")
	default:
		return err
	}
}
