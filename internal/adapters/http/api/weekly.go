package api

import (
	"context"
	"net/http"
	"strconv"

	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/pkg/logger"
)

// WeeklyDependencies defines the interface for weekly standings.
type WeeklyDependencies interface {
	Weekly(ctx context.Context) ([]service.WeekSummary, error)
	Week(ctx context.Context, week int) (service.WeekSummary, error)
}

// WeeklyHandler handles weekly winners requests.
type WeeklyHandler struct {
	deps   WeeklyDependencies
	logger logger.Logger
}

// NewWeeklyHandler creates a new weekly handler.
func NewWeeklyHandler(deps WeeklyDependencies, log logger.Logger) *WeeklyHandler {
	return &WeeklyHandler{deps: deps, logger: log}
}

// HandleGetWeekly handles GET /api/v1/weekly[?week=N].
func (h *WeeklyHandler) HandleGetWeekly(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_weekly"

	if weekStr := r.URL.Query().Get("week"); weekStr != "" {
		week, err := strconv.Atoi(weekStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		sum, err := h.deps.Week(r.Context(), week)
		if err != nil {
			respondError(r.Context(), w, h.logger, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, sum)
		return
	}

	weeks, err := h.deps.Weekly(r.Context())
	if err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, weeks)
}
