package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/id"
	"github.com/pagetrail/pagetrail-server/internal/sse"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// RunInTx runs fn inside a single SQLite transaction. Events queued by fn
// are emitted only once the transaction has committed.
func (s *Store) RunInTx(ctx context.Context, ownerID string, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ownerID == "" {
		return store.ErrInvalidInput.WithMessage("owner is required")
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(fmt.Errorf("begin transaction: %w", err))
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	tx := &txn{ctx: ctx, tx: sqlTx, owner: ownerID, now: s.now}
	if err := fn(tx); err != nil {
		return translate(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return translate(fmt.Errorf("commit transaction: %w", err))
	}

	s.emit(tx.events)
	return nil
}

// txn implements store.Tx over a *sql.Tx.
type txn struct {
	ctx    context.Context
	tx     *sql.Tx
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
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND user_id = ?`, bookID, t.owner)
	book, err := scanBook(row)
	if err != nil {
		return nil, translate(err)
	}
	return book, nil
}

// PutBook implements store.Tx.
func (t *txn) PutBook(book *domain.Book) error {
	if book.UserID != t.owner {
		return store.ErrForbidden.WithMessage("book belongs to another user")
	}
	if err := t.checkOwner(book.ID); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE books SET
			title = ?,
			author = ?,
			category = ?,
			isbn = ?,
			description = ?,
			cover_url = ?,
			cover_blur_hash = ?,
			status = ?,
			total_pages = ?,
			pages_read = ?,
			revision = ?,
			updated_at = ?
		WHERE id = ? AND user_id = ?`,
		book.Title,
		book.Author,
		book.Category,
		book.ISBN,
		book.Description,
		book.CoverURL,
		book.CoverBlurHash,
		string(book.Status),
		nullInt(book.TotalPages),
		book.PagesRead,
		book.Revision,
		formatTime(book.UpdatedAt),
		book.ID,
		t.owner,
	)
	if err != nil {
		return translate(err)
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

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO reading_sessions (
			id, book_id, user_id, start_page, end_page, pages_read_this_session,
			takeaway, date, resulting_pages_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.BookID,
		session.UserID,
		session.StartPage,
		session.EndPage,
		session.PagesReadThisSession,
		session.Takeaway,
		formatTime(session.Date),
		session.ResultingPagesRead,
		formatTime(session.CreatedAt),
	)
	if err != nil {
		err = translate(err)
		if errors.Is(err, store.ErrAlreadyExists) {
			return store.ErrAlreadyExists.WithMessage("session already recorded")
		}
		return err
	}

	copied := *session
	t.events = append(t.events, sse.NewSessionCreatedEvent(&copied))
	return nil
}

// checkOwner verifies bookID exists and belongs to the transaction's owner.
func (t *txn) checkOwner(bookID string) error {
	var owner string
	err := t.tx.QueryRowContext(t.ctx, `SELECT user_id FROM books WHERE id = ?`, bookID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound.WithMessage("book not found")
	}
	if err != nil {
		return fmt.Errorf("read book owner: %w", err)
	}
	if owner != t.owner {
		return store.ErrForbidden.WithMessage("book belongs to another user")
	}
	return nil
}
