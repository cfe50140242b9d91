package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

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

func (r *recordingEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestStore(t *testing.T) (*Store, *recordingEmitter) {
	t.Helper()
	emitter := &recordingEmitter{}
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler), emitter)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, emitter
}

func makeTestBook(ownerID string, total *int) *domain.Book {
	return &domain.Book{
		UserID:     ownerID,
		Title:      "A Wizard of Earthsea",
		Author:     "Ursula K. Le Guin",
		Category:   "Fantasy",
		Status:     domain.StatusWantToRead,
		TotalPages: total,
	}
}

func TestOpen(t *testing.T) {
	s, _ := newTestStore(t)

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	for _, table := range []string{"users", "auth_sessions", "books", "reading_sessions"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpenClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.DiscardHandler)

	s, err := Open(dbPath, logger, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	// Re-open should work (schema is idempotent).
	s2, err := Open(dbPath, logger, nil)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}
	defer s2.Close()
}

func TestRunInTx_CommitsSessionAndBookTogether(t *testing.T) {
	s, emitter := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("user-1", domain.IntPtr(300))
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	before := emitter.count()

	err := s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
		b, err := tx.GetBook(book.ID)
		if err != nil {
			return err
		}
		session := &domain.ReadingSession{
			BookID: book.ID, UserID: "user-1",
			StartPage: 1, EndPage: 30, PagesReadThisSession: 30,
			Date: time.Now(), ResultingPagesRead: 30,
		}
		if err := tx.InsertSession(session); err != nil {
			return err
		}
		b.PagesRead = 30
		b.Status = domain.StatusReading
		b.Touch(time.Now())
		return tx.PutBook(b)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	got, err := s.GetBook(ctx, "user-1", book.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.PagesRead != 30 || got.Status != domain.StatusReading {
		t.Errorf("book: got %d/%s, want 30/reading", got.PagesRead, got.Status)
	}
	if got.Revision != 2 {
		t.Errorf("Revision: got %d, want 2", got.Revision)
	}

	sessions, err := s.ListSessions(ctx, "user-1", book.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID == "" {
		t.Fatalf("expected one stored session, got %+v", sessions)
	}
	if emitter.count()-before != 2 {
		t.Errorf("expected session and book events after commit, got %d", emitter.count()-before)
	}
}

func TestRunInTx_FailureLeavesNothingVisible(t *testing.T) {
	s, emitter := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("user-1", domain.IntPtr(300))
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	before := emitter.count()
	boom := errors.New("book write failed")

	err := s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
		session := &domain.ReadingSession{
			BookID: book.ID, UserID: "user-1",
			StartPage: 1, EndPage: 30, PagesReadThisSession: 30,
			Date: time.Now(), ResultingPagesRead: 30,
		}
		if err := tx.InsertSession(session); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	sessions, err := s.ListSessions(ctx, "user-1", book.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected no sessions after rollback, got %d", len(sessions))
	}
	if emitter.count() != before {
		t.Errorf("rolled back transaction emitted %d events", emitter.count()-before)
	}
}

func TestRunInTx_RejectsForeignBooks(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("user-1", nil)
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	err := s.RunInTx(ctx, "user-2", func(tx store.Tx) error {
		_, err := tx.GetBook(book.ID)
		return err
	})
	if !errors.Is(err, store.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	err = s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
		_, err := tx.GetBook("book-missing")
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessions_CommitOrderNotDateOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("user-1", nil)
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	now := time.Now()
	dates := []time.Time{now, now.AddDate(0, 0, -10), now.AddDate(0, 0, -5)}
	for i, date := range dates {
		err := s.RunInTx(ctx, "user-1", func(tx store.Tx) error {
			return tx.InsertSession(&domain.ReadingSession{
				BookID: book.ID, UserID: "user-1",
				StartPage: i*10 + 1, EndPage: i*10 + 10, PagesReadThisSession: 10,
				Date: date, ResultingPagesRead: (i + 1) * 10,
			})
		})
		if err != nil {
			t.Fatalf("insert session %d: %v", i, err)
		}
	}

	sessions, err := s.ListSessions(ctx, "user-1", book.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i, rs := range sessions {
		if rs.ResultingPagesRead != (i+1)*10 {
			t.Errorf("session %d: ResultingPagesRead %d, want %d", i, rs.ResultingPagesRead, (i+1)*10)
		}
	}
}
