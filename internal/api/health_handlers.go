package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagetrail/pagetrail-server/internal/store"
)

// healthProbeUserID never exists; looking it up exercises the store.
const healthProbeUserID = "user_health_probe"

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// HealthResponse contains health check data.
type HealthResponse struct {
	Status      string `json:"status" doc:"Health status (healthy or degraded)"`
	Store       string `json:"store" doc:"Store status"`
	LiveClients int    `json:"live_clients" doc:"Connected live feed clients"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{Status: "healthy", Store: "ok"}

	if _, err := s.store.GetUser(ctx, healthProbeUserID); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("Health check store probe failed", "error", err)
		resp.Status = "degraded"
		resp.Store = "unavailable"
	}

	if s.sseManager != nil {
		resp.LiveClients = s.sseManager.ClientCount()
	}

	return &HealthOutput{Body: resp}, nil
}
