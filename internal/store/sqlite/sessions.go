package sqlite

import (
	"context"

	"github.com/pagetrail/pagetrail-server/internal/domain"
)

// readingSessionColumns must match the scan order in scanReadingSession.
const readingSessionColumns = `id, book_id, user_id, start_page, end_page,
	pages_read_this_session, takeaway, date, resulting_pages_read, created_at`

func scanReadingSession(scanner rowScanner) (*domain.ReadingSession, error) {
	var rs domain.ReadingSession

	var (
		date      string
		createdAt string
	)

	err := scanner.Scan(
		&rs.ID,
		&rs.BookID,
		&rs.UserID,
		&rs.StartPage,
		&rs.EndPage,
		&rs.PagesReadThisSession,
		&rs.Takeaway,
		&date,
		&rs.ResultingPagesRead,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	rs.Date, err = parseTime(date)
	if err != nil {
		return nil, err
	}
	rs.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

// ListSessions returns a book's ledger in commit order.
func (s *Store) ListSessions(ctx context.Context, ownerID, bookID string) ([]*domain.ReadingSession, error) {
	if _, err := s.GetBook(ctx, ownerID, bookID); err != nil {
		return nil, err
	}
	return s.querySessions(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions
		WHERE book_id = ? AND user_id = ? ORDER BY seq`, bookID, ownerID)
}

// ListUserSessions returns every session the owner has logged, in commit order.
func (s *Store) ListUserSessions(ctx context.Context, ownerID string) ([]*domain.ReadingSession, error) {
	return s.querySessions(ctx,
		`SELECT `+readingSessionColumns+` FROM reading_sessions
		WHERE user_id = ? ORDER BY seq`, ownerID)
}

func (s *Store) querySessions(ctx context.Context, query string, args ...any) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var sessions []*domain.ReadingSession
	for rows.Next() {
		rs, err := scanReadingSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
