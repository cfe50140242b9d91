package api

import (
	"net/http"

	"github.com/pagetrail/pagetrail-server/internal/http/response"
	"github.com/pagetrail/pagetrail-server/internal/id"
	"github.com/pagetrail/pagetrail-server/internal/projection"
)

// handleBookStream pushes the caller's filtered book list as server-sent
// events: once on connect, then after every change to the collection.
//
// Query parameters match GET /api/v1/books. EventSource clients that cannot
// set headers pass the token as access_token.
func (s *Server) handleBookStream(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r.Context())
	if err != nil {
		var ok bool
		if userID, ok = s.queryTokenUser(r); !ok {
			response.Unauthorized(w, "Authentication required", s.logger)
			return
		}
	}

	q := r.URL.Query()
	query := projection.Query{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Status:   q.Get("status"),
	}

	events, err := s.feed.Snapshots(r.Context(), userID, query, projection.ParseOrder(q.Get("sort")))
	if err != nil {
		s.logger.Error("Failed to open book feed", "user_id", userID, "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	clientID, err := id.Generate(id.Client)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	s.sseHandler.Stream(w, r, clientID, events)
}
