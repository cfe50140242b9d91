package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagetrail/pagetrail-server/internal/service"
)

func (s *Server) registerStatsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Reading stats",
		Description: "Returns session totals, books per status, and pages read per day",
		Tags:        []string{"Sessions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetStats)
}

// StatsInput selects the pages-per-day window.
type StatsInput struct {
	Days int `query:"days" minimum:"0" maximum:"366" doc:"Days in the pages-per-day window ending today, default 30"`
}

// StatsOutput wraps the stats for Huma.
type StatsOutput struct {
	Body *service.Stats
}

func (s *Server) handleGetStats(ctx context.Context, input *StatsInput) (*StatsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := s.services.Session.Stats(ctx, userID, input.Days)
	if err != nil {
		return nil, apiError(err)
	}
	return &StatsOutput{Body: stats}, nil
}
