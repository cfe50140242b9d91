package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/pagetrail/pagetrail-server/internal/api"
	"github.com/pagetrail/pagetrail-server/internal/config"
	"github.com/pagetrail/pagetrail-server/internal/logger"
	"github.com/pagetrail/pagetrail-server/internal/media/images"
	"github.com/pagetrail/pagetrail-server/internal/projection"
	"github.com/pagetrail/pagetrail-server/internal/service"
)

// serverVersion is reported in the OpenAPI document.
const serverVersion = "1.0.0"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	h.api.Close()
	return err
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	tel := do.MustInvoke[*TelemetryHandle](i)
	coverStorage := do.MustInvoke[*images.Storage](i)
	feed := do.MustInvoke[*projection.Feed](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Auth:    do.MustInvoke[*service.AuthService](i),
		Book:    do.MustInvoke[*service.BookService](i),
		Session: do.MustInvoke[*service.SessionService](i),
	}

	handler := api.NewServer(storeHandle.Store, services, coverStorage, feed, sseHandle.Manager, api.Options{
		Version:        serverVersion,
		CORSOrigins:    cfg.Server.CORSOrigins,
		LoginRateLimit: cfg.Auth.LoginRateLimit,
		MaxCoverBytes:  cfg.Covers.MaxUploadSize,
		Telemetry:      tel.Provider,
	}, log.Logger)

	// The SSE handler pushes its write deadline forward on every frame.
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr, "public_url", cfg.Server.PublicURL)

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
