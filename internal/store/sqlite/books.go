package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/id"
	"github.com/pagetrail/pagetrail-server/internal/sse"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, user_id, title, author, category, isbn, description,
	cover_url, cover_blur_hash, status, total_pages, pages_read, revision,
	created_at, updated_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner rowScanner) (*domain.Book, error) {
	var b domain.Book

	var (
		status     string
		totalPages sql.NullInt64
		createdAt  string
		updatedAt  string
	)

	err := scanner.Scan(
		&b.ID,
		&b.UserID,
		&b.Title,
		&b.Author,
		&b.Category,
		&b.ISBN,
		&b.Description,
		&b.CoverURL,
		&b.CoverBlurHash,
		&status,
		&totalPages,
		&b.PagesRead,
		&b.Revision,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status = domain.BookStatus(status)
	if totalPages.Valid {
		b.TotalPages = domain.IntPtr(int(totalPages.Int64))
	}

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBook inserts a new book, assigning an ID and timestamps when unset.
// Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (
			id, user_id, title, author, category, isbn, description,
			cover_url, cover_blur_hash, status, total_pages, pages_read, revision,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.UserID,
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
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	if err != nil {
		err = translate(err)
		if errors.Is(err, store.ErrAlreadyExists) {
			return store.ErrAlreadyExists.WithMessage("book already exists")
		}
		return err
	}

	s.emitter.Emit(sse.NewBookCreatedEvent(book.Clone()))
	return nil
}

// GetBook retrieves one of the owner's books.
// Returns store.ErrNotFound if absent and store.ErrForbidden if another user owns it.
func (s *Store) GetBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, bookID)

	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("book not found")
	}
	if err != nil {
		return nil, translate(err)
	}
	if book.UserID != ownerID {
		return nil, store.ErrForbidden.WithMessage("book belongs to another user")
	}
	return book, nil
}

// ListBooks returns every book the owner has, most recently updated first.
func (s *Store) ListBooks(ctx context.Context, ownerID string) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_id = ? ORDER BY updated_at DESC, id`, ownerID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

// UpdateBook implements store.Store.
func (s *Store) UpdateBook(ctx context.Context, ownerID, bookID string, mutate store.BookMutator) (*domain.Book, error) {
	return store.MutateBook(ctx, s, ownerID, bookID, s.now(), mutate)
}

// DeleteBook removes the book. Its sessions go with it through ON DELETE CASCADE.
func (s *Store) DeleteBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	var deleted *domain.Book
	err := s.RunInTx(ctx, ownerID, func(tx store.Tx) error {
		book, err := tx.GetBook(bookID)
		if err != nil {
			return err
		}
		t := tx.(*txn)
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM books WHERE id = ? AND user_id = ?`, bookID, ownerID); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		deleted = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(sse.NewBookDeletedEvent(ownerID, bookID))
	return deleted, nil
}
