package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pagetrail/pagetrail-server/internal/http/response"
	"github.com/pagetrail/pagetrail-server/internal/media/images"
)

// handleGetCover serves an uploaded cover. Covers are public so they can be
// used directly in <img> tags; file names are unguessable.
func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	ref := images.Ref{OwnerID: chi.URLParam(r, "owner"), Name: chi.URLParam(r, "name")}
	if !ref.Valid() {
		response.NotFound(w, "cover not found", s.logger)
		return
	}

	f, err := s.covers.Open(ref)
	if err != nil {
		response.NotFound(w, "cover not found", s.logger)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error("Failed to stat cover", "key", ref.Key(), "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	if hash, err := s.covers.Hash(ref); err == nil {
		w.Header().Set("ETag", `"`+hash+`"`)
	}
	w.Header().Set("Cache-Control", CacheOneWeek)
	http.ServeContent(w, r, ref.Name, info.ModTime(), f)
}
