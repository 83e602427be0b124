package api

import (
	"context"
	"net/http"
	"strconv"

	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/domain/standings"
	"github.com/okian/predictor/pkg/logger"
)

// LeaderboardDependencies defines the interface for leaderboard operations
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, limit int) ([]standings.LeaderboardRow, error)
}

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
	logger   logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
		logger:   log,
	}
}

// HandleGetLeaderboard handles GET /api/v1/leaderboard?limit=N&format=csv.
// Without limit every row is returned.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q := r.URL.Query()

	n := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
	}

	format := q.Get("format")
	if format != "" && format != "json" && format != "csv" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	rows, err := h.deps.Leaderboard(r.Context(), n)
	if err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.csv"`)
		if err := service.WriteLeaderboardCSV(w, rows); err != nil {
			h.logger.Warn(r.Context(), "failed to write leaderboard csv", logger.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
