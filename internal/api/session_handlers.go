package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/service"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "logSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/books/{id}/sessions",
		Summary:       "Log reading session",
		Description:   "Records pages read and advances the book's progress and status in one commit.",
		Tags:          []string{"Sessions"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleLogSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSessions",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/sessions",
		Summary:     "List reading sessions",
		Description: "Returns a book's sessions, oldest first",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListSessions)
}

// === DTOs ===

// LogSessionRequest is the request body for logging a session.
type LogSessionRequest struct {
	StartPage *int       `json:"start_page,omitempty" doc:"First page read"`
	EndPage   *int       `json:"end_page,omitempty" doc:"Last page read"`
	Takeaway  string     `json:"takeaway,omitempty" doc:"Optional note"`
	Date      *time.Time `json:"date,omitempty" doc:"When the reading happened, defaults to now"`
}

// LogSessionInput wraps the session request for Huma.
type LogSessionInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body LogSessionRequest
}

// SessionResponse is the wire form of a reading session.
type SessionResponse struct {
	ID                   string    `json:"id" doc:"Session ID"`
	BookID               string    `json:"book_id" doc:"Book ID"`
	StartPage            int       `json:"start_page" doc:"First page"`
	EndPage              int       `json:"end_page" doc:"Last page"`
	PagesReadThisSession int       `json:"pages_read_this_session" doc:"Pages covered, both ends inclusive"`
	Takeaway             string    `json:"takeaway,omitempty" doc:"Note"`
	Date                 time.Time `json:"date" doc:"Reading date"`
	ResultingPagesRead   int       `json:"resulting_pages_read" doc:"Book progress after this session"`
	CreatedAt            time.Time `json:"created_at" doc:"Commit time"`
}

// LogSessionResponse holds the committed session and the updated book.
type LogSessionResponse struct {
	Session  SessionResponse `json:"session" doc:"Committed session"`
	Book     BookResponse    `json:"book" doc:"Book after the commit"`
	Attempts int             `json:"attempts" doc:"Commit attempts, more than 1 after a concurrent edit"`
}

// LogSessionOutput wraps the session result for Huma.
type LogSessionOutput struct {
	Body LogSessionResponse
}

// ListSessionsResponse contains a book's sessions.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions" doc:"Sessions in commit order"`
}

// ListSessionsOutput wraps the session list for Huma.
type ListSessionsOutput struct {
	Body ListSessionsResponse
}

// === Handlers ===

func (s *Server) handleLogSession(ctx context.Context, input *LogSessionInput) (*LogSessionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Session.LogSession(ctx, userID, input.ID, service.LogSessionRequest{
		StartPage: input.Body.StartPage,
		EndPage:   input.Body.EndPage,
		Takeaway:  input.Body.Takeaway,
		Date:      input.Body.Date,
	})
	if err != nil {
		return nil, apiError(err)
	}

	return &LogSessionOutput{Body: LogSessionResponse{
		Session:  mapSession(result.Session),
		Book:     mapBook(result.Book),
		Attempts: result.Attempts,
	}}, nil
}

func (s *Server) handleListSessions(ctx context.Context, input *BookIDInput) (*ListSessionsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := s.services.Session.ListSessions(ctx, userID, input.ID)
	if err != nil {
		return nil, apiError(err)
	}

	resp := ListSessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
	for i, session := range sessions {
		resp.Sessions[i] = mapSession(session)
	}
	return &ListSessionsOutput{Body: resp}, nil
}

func mapSession(rs *domain.ReadingSession) SessionResponse {
	return SessionResponse{
		ID:                   rs.ID,
		BookID:               rs.BookID,
		StartPage:            rs.StartPage,
		EndPage:              rs.EndPage,
		PagesReadThisSession: rs.PagesReadThisSession,
		Takeaway:             rs.Takeaway,
		Date:                 rs.Date,
		ResultingPagesRead:   rs.ResultingPagesRead,
		CreatedAt:            rs.CreatedAt,
	}
}
