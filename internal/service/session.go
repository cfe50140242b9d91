package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
	"github.com/pagetrail/pagetrail-server/internal/progress"
	"github.com/pagetrail/pagetrail-server/internal/store"
	"github.com/pagetrail/pagetrail-server/internal/telemetry"
	"github.com/pagetrail/pagetrail-server/internal/validation"
)

const (
	tracerName = "github.com/pagetrail/pagetrail-server/internal/service"

	defaultStatsDays = 30
	maxStatsDays     = 366
)

// SessionService logs reading sessions and reports on them.
type SessionService struct {
	store       store.Store
	coordinator *progress.Coordinator
	validator   *validation.Validator
	tracer      trace.Tracer
	retries     int
	logger      *slog.Logger
	now         func() time.Time
}

// NewSessionService creates a session service. retries is how many times a
// commit that lost a race is recomputed from fresh state; 0 surfaces the
// first conflict.
func NewSessionService(
	store store.Store,
	coordinator *progress.Coordinator,
	validator *validation.Validator,
	tel *telemetry.Provider,
	retries int,
	logger *slog.Logger,
) *SessionService {
	if tel == nil {
		tel = telemetry.Noop()
	}
	return &SessionService{
		store:       store,
		coordinator: coordinator,
		validator:   validator,
		tracer:      tel.Tracer(tracerName),
		retries:     max(retries, 0),
		logger:      logger,
		now:         time.Now,
	}
}

// LogSessionRequest is one reading interval, inclusive on both pages.
type LogSessionRequest struct {
	StartPage *int       `json:"start_page"`
	EndPage   *int       `json:"end_page"`
	Takeaway  string     `json:"takeaway,omitempty" validate:"max=5000"`
	Date      *time.Time `json:"date,omitempty"`
}

// LogSessionResult is the stored session and the book as the commit left it.
type LogSessionResult struct {
	Session *domain.ReadingSession
	Book    *domain.Book
	// Attempts counts pipeline runs, 1 when the first commit succeeded.
	Attempts int
}

// LogSession validates a session against the book's current progress,
// reconciles it and commits both writes atomically. A commit that loses a
// race with another writer is recomputed from the fresh book.
func (s *SessionService) LogSession(ctx context.Context, ownerID, bookID string, req LogSessionRequest) (*LogSessionResult, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.LogSession",
		trace.WithAttributes(
			attribute.String("user.id", ownerID),
			attribute.String("book.id", bookID),
		))
	defer span.End()

	result, err := s.logSession(ctx, ownerID, bookID, req, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("session.pages", result.Session.PagesReadThisSession),
		attribute.Int("book.pages_read", result.Book.PagesRead),
		attribute.String("book.status", string(result.Book.Status)),
	)
	return result, nil
}

func (s *SessionService) logSession(ctx context.Context, ownerID, bookID string, req LogSessionRequest, span trace.Span) (*LogSessionResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	input := progress.SessionInput{
		StartPage: req.StartPage,
		EndPage:   req.EndPage,
		Takeaway:  req.Takeaway,
		Date:      req.Date,
	}

	for attempt := 1; ; attempt++ {
		span.SetAttributes(attribute.Int("commit.attempts", attempt))

		book, err := s.store.GetBook(ctx, ownerID, bookID)
		if err != nil {
			return nil, storeError(err, "book")
		}

		snap := progress.SnapshotOf(book)
		validated, err := progress.Validate(input, snap)
		if err != nil {
			return nil, err
		}

		rec := progress.Reconcile(snap, validated, s.now())
		session := rec.Session
		err = s.coordinator.Commit(ctx, progress.RefOf(snap), &session, rec.Fields)
		if err == nil {
			committed := book.Clone()
			committed.PagesRead = rec.Fields.PagesRead
			committed.Status = rec.Fields.Status
			committed.Touch(rec.Fields.UpdatedAt)

			s.logger.InfoContext(ctx, "reading session logged",
				"user_id", ownerID,
				"book_id", bookID,
				"session_id", session.ID,
				"pages", session.PagesReadThisSession,
				"pages_read", committed.PagesRead,
				"status", committed.Status,
			)
			return &LogSessionResult{Session: &session, Book: committed, Attempts: attempt}, nil
		}

		if !errors.Is(err, domainerrors.ErrConflict) || attempt > s.retries {
			return nil, err
		}

		span.AddEvent("commit conflict", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.Int64("revision", snap.Revision),
		))
		s.logger.DebugContext(ctx, "retrying reading session after conflict",
			"user_id", ownerID,
			"book_id", bookID,
			"attempt", attempt,
		)
	}
}

// ListSessions returns a book's sessions in commit order.
func (s *SessionService) ListSessions(ctx context.Context, ownerID, bookID string) ([]*domain.ReadingSession, error) {
	sessions, err := s.store.ListSessions(ctx, ownerID, bookID)
	if err != nil {
		return nil, storeError(err, "book")
	}
	if sessions == nil {
		sessions = []*domain.ReadingSession{}
	}
	return sessions, nil
}

// DayTotal is the pages read on one calendar day (UTC).
type DayTotal struct {
	Date  string `json:"date"`
	Pages int    `json:"pages"`
}

// Stats summarises a user's reading.
type Stats struct {
	TotalSessions int                       `json:"total_sessions"`
	TotalPages    int                       `json:"total_pages"`
	BooksByStatus map[domain.BookStatus]int `json:"books_by_status"`
	// PagesPerDay covers the requested window, oldest first, with empty days
	// reported as zero.
	PagesPerDay []DayTotal `json:"pages_per_day"`
}

// Stats aggregates the owner's sessions and books. days selects the
// pages-per-day window ending today; values <= 0 mean 30.
func (s *SessionService) Stats(ctx context.Context, ownerID string, days int) (*Stats, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	days = min(days, maxStatsDays)

	books, err := s.store.ListBooks(ctx, ownerID)
	if err != nil {
		return nil, storeError(err, "books")
	}
	sessions, err := s.store.ListUserSessions(ctx, ownerID)
	if err != nil {
		return nil, storeError(err, "sessions")
	}

	stats := &Stats{
		TotalSessions: len(sessions),
		BooksByStatus: make(map[domain.BookStatus]int, len(domain.Statuses())),
		PagesPerDay:   make([]DayTotal, days),
	}
	for _, status := range domain.Statuses() {
		stats.BooksByStatus[status] = 0
	}
	for _, b := range books {
		stats.BooksByStatus[b.Status]++
	}

	today := truncateDay(s.now())
	first := today.AddDate(0, 0, -(days - 1))
	for i := range stats.PagesPerDay {
		stats.PagesPerDay[i].Date = first.AddDate(0, 0, i).Format(time.DateOnly)
	}

	for _, session := range sessions {
		stats.TotalPages += session.PagesReadThisSession

		day := truncateDay(session.Date)
		if day.Before(first) || day.After(today) {
			continue
		}
		idx := int(day.Sub(first).Hours() / 24)
		stats.PagesPerDay[idx].Pages += session.PagesReadThisSession
	}

	return stats, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
