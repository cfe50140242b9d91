package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const writeDeadline = 60 * time.Second

// Handler writes event streams to HTTP clients.
type Handler struct {
	logger            *slog.Logger
	heartbeatInterval time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
	}
}

// Stream sets SSE headers and forwards events until the client goes away
// or the events channel closes.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request, clientID string, events <-chan Event) {
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)

	if err := rc.Flush(); err != nil {
		h.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	clientLogger := h.logger.With(slog.String("client_id", clientID))

	if err := h.send(w, rc, NewConnectedEvent(clientID)); err != nil {
		clientLogger.Warn("failed to send initial connection message", slog.String("error", err.Error()))
		return
	}

	h.pump(r.Context(), w, rc, clientLogger, events)
}

func (h *Handler) pump(ctx context.Context, w http.ResponseWriter, rc *http.ResponseController, log *slog.Logger, events <-chan Event) {
	heartbeatTicker := time.NewTicker(h.heartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				log.Info("stream closed by server")
				return
			}
			if err := h.send(w, rc, event); err != nil {
				log.Info("client disconnected during send")
				return
			}

		case <-heartbeatTicker.C:
			if err := h.send(w, rc, NewHeartbeatEvent()); err != nil {
				log.Info("client disconnected during heartbeat")
				return
			}

		case <-ctx.Done():
			log.Info("client context canceled")
			return
		}
	}
}

// send writes one frame:
//
//	event: <type>
//	data: <json>
func (h *Handler) send(w http.ResponseWriter, rc *http.ResponseController, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonData); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	if err := rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		// Not every ResponseWriter supports deadlines (httptest.ResponseRecorder doesn't).
		h.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}

	return nil
}
