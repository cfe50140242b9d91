package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
	"github.com/pagetrail/pagetrail-server/internal/progress"
	"github.com/pagetrail/pagetrail-server/internal/store"
	"github.com/pagetrail/pagetrail-server/internal/telemetry"
	"github.com/pagetrail/pagetrail-server/internal/validation"
)

// racingStore edits the book right after each of the first races reads, so
// the snapshot the caller took is already stale when it commits.
type racingStore struct {
	store.Store
	mu    sync.Mutex
	races int
}

func (r *racingStore) GetBook(ctx context.Context, ownerID, bookID string) (*domain.Book, error) {
	book, err := r.Store.GetBook(ctx, ownerID, bookID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	race := r.races > 0
	if race {
		r.races--
	}
	r.mu.Unlock()

	if race {
		_, err := r.Store.UpdateBook(ctx, ownerID, bookID, func(b *domain.Book) error {
			b.Author += "!"
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return book, nil
}

func setupRacing(t *testing.T, races int) (*testEnv, *racingStore) {
	t.Helper()
	var racing *racingStore
	env := setupServicesWithStore(t, func(s store.Store) store.Store {
		racing = &racingStore{Store: s}
		return racing
	})
	return env, racingArm(racing, races)
}

// racingArm sets how many upcoming reads race. Fixtures are created before
// arming so their reads stay clean.
func racingArm(r *racingStore, races int) *racingStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.races = races
	return r
}

func TestSessionService_LogSession(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	t.Run("first session starts the book", func(t *testing.T) {
		book := env.createBook(t, "user-1", "Dune", intPtr(200))

		result, err := env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{
			StartPage: intPtr(1),
			EndPage:   intPtr(50),
			Takeaway:  "  sandworms  ",
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Attempts)
		assert.NotEmpty(t, result.Session.ID)
		assert.Equal(t, 50, result.Session.PagesReadThisSession)
		assert.Equal(t, 50, result.Session.ResultingPagesRead)
		assert.Equal(t, "sandworms", result.Session.Takeaway)
		assert.Equal(t, 50, result.Book.PagesRead)
		assert.Equal(t, domain.StatusReading, result.Book.Status)

		stored, err := env.books.GetBook(ctx, "user-1", book.ID)
		require.NoError(t, err)
		assert.Equal(t, result.Book.PagesRead, stored.PagesRead)
		assert.Equal(t, result.Book.Revision, stored.Revision)
	})

	t.Run("last pages finish the book", func(t *testing.T) {
		book, err := env.books.CreateBook(ctx, "user-1", CreateBookRequest{
			Title:      "Almost",
			TotalPages: intPtr(200),
			PagesRead:  190,
		})
		require.NoError(t, err)

		result, err := env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{StartPage: intPtr(191), EndPage: intPtr(200)})
		require.NoError(t, err)
		assert.Equal(t, 200, result.Book.PagesRead)
		assert.Equal(t, domain.StatusFinished, result.Book.Status)
	})

	t.Run("backdated session keeps its date", func(t *testing.T) {
		book := env.createBook(t, "user-1", "Backdated", nil)
		date := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

		result, err := env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{
			StartPage: intPtr(1),
			EndPage:   intPtr(10),
			Date:      &date,
		})
		require.NoError(t, err)
		assert.True(t, date.Equal(result.Session.Date))
		assert.True(t, result.Session.CreatedAt.After(date))
	})

	t.Run("rejected session writes nothing", func(t *testing.T) {
		book, err := env.books.CreateBook(ctx, "user-1", CreateBookRequest{
			Title:      "Halfway",
			TotalPages: intPtr(100),
			PagesRead:  50,
		})
		require.NoError(t, err)

		_, err = env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{StartPage: intPtr(51), EndPage: intPtr(120)})
		require.Error(t, err)
		assert.ErrorIs(t, err, domainerrors.ErrValidation)
		reason, ok := progress.ReasonOf(err)
		require.True(t, ok)
		assert.Equal(t, progress.ReasonExceedsBookLength, reason)

		stored, err := env.books.GetBook(ctx, "user-1", book.ID)
		require.NoError(t, err)
		assert.Equal(t, 50, stored.PagesRead)
		assert.Equal(t, book.Revision, stored.Revision)

		sessions, err := env.sessions.ListSessions(ctx, "user-1", book.ID)
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})

	t.Run("missing pages", func(t *testing.T) {
		book := env.createBook(t, "user-1", "Blank", nil)
		_, err := env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{EndPage: intPtr(3)})
		require.Error(t, err)
		reason, ok := progress.ReasonOf(err)
		require.True(t, ok)
		assert.Equal(t, progress.ReasonInvalidRange, reason)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := env.sessions.LogSession(ctx, "user-1", "book-missing", LogSessionRequest{StartPage: intPtr(1), EndPage: intPtr(2)})
		require.Error(t, err)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	})

	t.Run("finished book absorbs further sessions", func(t *testing.T) {
		book, err := env.books.CreateBook(ctx, "user-1", CreateBookRequest{
			Title:      "Reread",
			TotalPages: intPtr(100),
			PagesRead:  100,
		})
		require.NoError(t, err)

		result, err := env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{StartPage: intPtr(1), EndPage: intPtr(30)})
		require.NoError(t, err)
		assert.Equal(t, 100, result.Book.PagesRead)
		assert.Equal(t, domain.StatusFinished, result.Book.Status)
		assert.Equal(t, 100, result.Session.ResultingPagesRead)
	})
}

func TestSessionService_LogSessionTraced(t *testing.T) {
	env := setupServices(t)
	book := env.createBook(t, "user-1", "Traced", intPtr(100))

	_, err := env.sessions.LogSession(context.Background(), "user-1", book.ID, LogSessionRequest{StartPage: intPtr(1), EndPage: intPtr(5)})
	require.NoError(t, err)

	spans := env.spans.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "SessionService.LogSession", spans[0].Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, book.ID, attrs["book.id"].AsString())
	assert.EqualValues(t, 1, attrs["commit.attempts"].AsInt64())
	assert.EqualValues(t, 5, attrs["book.pages_read"].AsInt64())
}

func TestSessionService_RetriesLostRace(t *testing.T) {
	env, racing := setupRacing(t, 0)
	ctx := context.Background()
	book := env.createBook(t, "user-1", "Contended", intPtr(100))

	racingArm(racing, 2)
	result, err := env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{StartPage: intPtr(1), EndPage: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 10, result.Book.PagesRead)

	// The concurrent edits survived alongside the session.
	stored, err := env.books.GetBook(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Author!!", stored.Author)
	assert.Equal(t, 10, stored.PagesRead)

	sessions, err := env.sessions.ListSessions(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestSessionService_RetriesExhausted(t *testing.T) {
	env, racing := setupRacing(t, 0)
	ctx := context.Background()
	book := env.createBook(t, "user-1", "Hot", intPtr(100))

	racingArm(racing, 100)
	_, err := env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{StartPage: intPtr(1), EndPage: intPtr(10)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrCommit)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus())

	// One initial attempt plus three retries.
	assert.Equal(t, 96, racing.races)

	sessions, err := env.sessions.ListSessions(ctx, "user-1", book.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSessionService_ZeroRetriesSurfacesConflict(t *testing.T) {
	env, racing := setupRacing(t, 0)
	ctx := context.Background()
	book := env.createBook(t, "user-1", "No Retry", intPtr(100))

	logger := slog.New(slog.DiscardHandler)
	noRetry := NewSessionService(env.store, progress.NewCoordinator(env.store, logger), validation.New(), telemetry.Noop(), 0, logger)

	racingArm(racing, 1)
	_, err := noRetry.LogSession(ctx, "user-1", book.ID, LogSessionRequest{StartPage: intPtr(1), EndPage: intPtr(10)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	assert.Zero(t, racing.races)
}

func TestSessionService_ConcurrentSessionsStayConsistent(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	book := env.createBook(t, "user-1", "Busy", intPtr(10000))

	logger := slog.New(slog.DiscardHandler)
	patient := NewSessionService(env.store, progress.NewCoordinator(env.store, logger), validation.New(), telemetry.Noop(), 50, logger)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := i*10 + 1
			_, _ = patient.LogSession(ctx, "user-1", book.ID, LogSessionRequest{StartPage: intPtr(start), EndPage: intPtr(start + 9)})
		}()
	}
	wg.Wait()

	stored, err := env.books.GetBook(ctx, "user-1", book.ID)
	require.NoError(t, err)
	sessions, err := env.sessions.ListSessions(ctx, "user-1", book.ID)
	require.NoError(t, err)
	require.NotEmpty(t, sessions)

	total := 0
	for _, s := range sessions {
		total += s.PagesReadThisSession
	}
	assert.Equal(t, total, stored.PagesRead)
	assert.Equal(t, stored.PagesRead, sessions[len(sessions)-1].ResultingPagesRead)
}

func TestSessionService_ListSessions(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()
	book := env.createBook(t, "user-1", "Ledger", intPtr(300))

	for _, pages := range [][2]int{{1, 20}, {21, 40}, {41, 45}} {
		_, err := env.sessions.LogSession(ctx, "user-1", book.ID, LogSessionRequest{StartPage: intPtr(pages[0]), EndPage: intPtr(pages[1])})
		require.NoError(t, err)
	}

	sessions, err := env.sessions.ListSessions(ctx, "user-1", book.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, []int{20, 40, 45}, []int{
		sessions[0].ResultingPagesRead,
		sessions[1].ResultingPagesRead,
		sessions[2].ResultingPagesRead,
	})

	_, err = env.sessions.ListSessions(ctx, "user-2", book.ID)
	require.Error(t, err)

	_, err = env.sessions.ListSessions(ctx, "user-1", "book-missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestSessionService_Stats(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	env.sessions.now = func() time.Time { return now }

	dune := env.createBook(t, "user-1", "Dune", intPtr(100))
	env.createBook(t, "user-1", "Emma", nil)

	yesterday := now.AddDate(0, 0, -1)
	longAgo := now.AddDate(0, -6, 0)
	for _, s := range []struct {
		start, end int
		date       *time.Time
	}{
		{1, 10, nil},
		{11, 30, &yesterday},
		{31, 35, &longAgo},
	} {
		_, err := env.sessions.LogSession(ctx, "user-1", dune.ID, LogSessionRequest{
			StartPage: intPtr(s.start),
			EndPage:   intPtr(s.end),
			Date:      s.date,
		})
		require.NoError(t, err)
	}

	stats, err := env.sessions.Stats(ctx, "user-1", 7)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 35, stats.TotalPages)
	assert.Equal(t, 1, stats.BooksByStatus[domain.StatusReading])
	assert.Equal(t, 1, stats.BooksByStatus[domain.StatusWantToRead])
	assert.Equal(t, 0, stats.BooksByStatus[domain.StatusFinished])

	require.Len(t, stats.PagesPerDay, 7)
	assert.Equal(t, "2026-03-04", stats.PagesPerDay[0].Date)
	assert.Equal(t, DayTotal{Date: "2026-03-09", Pages: 20}, stats.PagesPerDay[5])
	assert.Equal(t, DayTotal{Date: "2026-03-10", Pages: 10}, stats.PagesPerDay[6])

	defaults, err := env.sessions.Stats(ctx, "user-2", 0)
	require.NoError(t, err)
	assert.Zero(t, defaults.TotalSessions)
	assert.Len(t, defaults.PagesPerDay, 30)
}
