package badgerdb

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/sse"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if evt, ok := event.(sse.Event); ok {
		r.events = append(r.events, evt)
	}
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingEmitter) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func setupTestStore(t *testing.T) (*Store, *recordingEmitter) {
	t.Helper()

	emitter := &recordingEmitter{}
	s, err := New(filepath.Join(t.TempDir(), "db"), slog.New(slog.DiscardHandler), emitter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, emitter
}

func newBook(ownerID, title string, total *int) *domain.Book {
	return &domain.Book{
		UserID:     ownerID,
		Title:      title,
		Author:     "Frank Herbert",
		Category:   "Fiction",
		CoverURL:   "https://example.com/cover.jpg",
		Status:     domain.StatusWantToRead,
		TotalPages: total,
	}
}

func TestCreateBook_AssignsIdentity(t *testing.T) {
	s, emitter := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", domain.IntPtr(412))
	require.NoError(t, s.CreateBook(ctx, book))

	assert.NotEmpty(t, book.ID)
	assert.False(t, book.CreatedAt.IsZero())
	assert.Equal(t, int64(1), book.Revision)
	assert.Equal(t, []sse.EventType{sse.EventBookCreated}, emitter.types())

	got, err := s.GetBook(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, 412, got.Total())
}

func TestGetBook_OwnershipAndMissing(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", nil)
	require.NoError(t, s.CreateBook(ctx, book))

	_, err := s.GetBook(ctx, "user-2", book.ID)
	assert.True(t, errors.Is(err, store.ErrForbidden))

	_, err = s.GetBook(ctx, "user-1", "book-missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestListBooks_ScopedToOwner(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBook(ctx, newBook("user-1", "Dune", nil)))
	require.NoError(t, s.CreateBook(ctx, newBook("user-1", "Emma", nil)))
	require.NoError(t, s.CreateBook(ctx, newBook("user-2", "Ulysses", nil)))

	books, err := s.ListBooks(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, books, 2)

	books, err = s.ListBooks(ctx, "user-3")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestRunInTx_CommitsSessionAndBookTogether(t *testing.T) {
	s, emitter := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", domain.IntPtr(200))
	require.NoError(t, s.CreateBook(ctx, book))
	emitter.reset()

	err := s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
		b, err := tx.GetBook(book.ID)
		if err != nil {
			return err
		}
		if err := tx.InsertSession(&domain.ReadingSession{
			BookID: book.ID, UserID: "user-1", StartPage: 1, EndPage: 50,
			PagesReadThisSession: 50, ResultingPagesRead: 50,
		}); err != nil {
			return err
		}
		b.PagesRead = 50
		b.Status = domain.StatusReading
		b.Touch(time.Now())
		return tx.PutBook(b)
	})
	require.NoError(t, err)

	got, err := s.GetBook(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.PagesRead)
	assert.Equal(t, int64(2), got.Revision)

	sessions, err := s.ListSessions(ctx, "user-1", book.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotEmpty(t, sessions[0].ID)
	assert.Equal(t, 50, sessions[0].ResultingPagesRead)

	assert.Equal(t, []sse.EventType{sse.EventSessionCreated, sse.EventBookUpdated}, emitter.types())
}

func TestRunInTx_FailureLeavesNothingVisible(t *testing.T) {
	s, emitter := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", domain.IntPtr(200))
	require.NoError(t, s.CreateBook(ctx, book))
	emitter.reset()

	boom := errors.New("injected failure")
	err := s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
		if err := tx.InsertSession(&domain.ReadingSession{
			BookID: book.ID, UserID: "user-1", StartPage: 1, EndPage: 10,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	sessions, err := s.ListSessions(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Empty(t, emitter.types())
}

func TestRunInTx_StaleReadConflicts(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", domain.IntPtr(200))
	require.NoError(t, s.CreateBook(ctx, book))

	err := s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
		b, err := tx.GetBook(book.ID)
		if err != nil {
			return err
		}

		// A second writer commits while this transaction is open.
		_, err = s.UpdateBook(ctx, "user-1", book.ID, func(other *domain.Book) error {
			other.PagesRead = 20
			other.Status = domain.StatusReading
			return nil
		})
		require.NoError(t, err)

		b.PagesRead = 10
		return tx.PutBook(b)
	})
	assert.True(t, errors.Is(err, store.ErrConflict), "got %v", err)

	got, err := s.GetBook(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.PagesRead)
}

func TestRunInTx_RejectsForeignWrites(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", nil)
	require.NoError(t, s.CreateBook(ctx, book))

	err := s.RunInTx(ctx, "user-2", func(tx store.Tx) error {
		return tx.InsertSession(&domain.ReadingSession{BookID: book.ID, UserID: "user-2"})
	})
	assert.True(t, errors.Is(err, store.ErrForbidden))
}

func TestListSessions_CommitOrderNotDateOrder(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", nil)
	require.NoError(t, s.CreateBook(ctx, book))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, backdate := range []int{0, -30, -60} {
		session := &domain.ReadingSession{
			BookID:             book.ID,
			UserID:             "user-1",
			Date:               base.AddDate(0, 0, backdate),
			ResultingPagesRead: (i + 1) * 10,
			CreatedAt:          base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
			return tx.InsertSession(session)
		}))
	}

	sessions, err := s.ListSessions(ctx, "user-1", book.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, 10, sessions[0].ResultingPagesRead)
	assert.Equal(t, 20, sessions[1].ResultingPagesRead)
	assert.Equal(t, 30, sessions[2].ResultingPagesRead)
}

func TestUpdateBook_KeepsOwnerAndBumpsRevision(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", nil)
	require.NoError(t, s.CreateBook(ctx, book))

	updated, err := s.UpdateBook(ctx, "user-1", book.ID, func(b *domain.Book) error {
		b.Title = "Dune Messiah"
		b.UserID = "user-2"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, "user-1", updated.UserID)
	assert.Equal(t, book.Revision+1, updated.Revision)
}

func TestUpdateBook_MutatorErrorAborts(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", nil)
	require.NoError(t, s.CreateBook(ctx, book))

	boom := errors.New("nope")
	_, err := s.UpdateBook(ctx, "user-1", book.ID, func(b *domain.Book) error {
		b.Title = "changed"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetBook(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
}

func TestDeleteBook_CascadesSessions(t *testing.T) {
	s, emitter := setupTestStore(t)
	ctx := context.Background()

	book := newBook("user-1", "Dune", nil)
	require.NoError(t, s.CreateBook(ctx, book))
	require.NoError(t, s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
		return tx.InsertSession(&domain.ReadingSession{BookID: book.ID, UserID: "user-1"})
	}))
	emitter.reset()

	deleted, err := s.DeleteBook(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, deleted.ID)
	assert.Equal(t, []sse.EventType{sse.EventBookDeleted}, emitter.types())

	_, err = s.GetBook(ctx, "user-1", book.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	all, err := s.ListUserSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUsers_EmailIsCaseInsensitiveAndUnique(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "user-1", Email: "Ada@Example.com"}))

	got, err := s.GetUserByEmail(ctx, "ada@example.COM")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	err = s.CreateUser(ctx, &domain.User{ID: "user-2", Email: "ada@example.com"})
	assert.True(t, errors.Is(err, store.ErrAlreadyExists))
}

func TestAuthSessions_DeleteExpired(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateAuthSession(ctx, &domain.AuthSession{ID: "auth-1", UserID: "user-1", RefreshTokenHash: "h1", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateAuthSession(ctx, &domain.AuthSession{ID: "auth-2", UserID: "user-1", RefreshTokenHash: "h2", ExpiresAt: now.Add(time.Hour)}))

	n, err := s.DeleteExpiredAuthSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetAuthSessionByTokenHash(ctx, "h1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	live, err := s.GetAuthSessionByTokenHash(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, "auth-2", live.ID)
}
