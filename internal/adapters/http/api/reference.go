package api

import (
	"context"
	"net/http"

	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/pkg/logger"
)

// ReferenceDependencies serves fixtures and other read-only contest data.
type ReferenceDependencies interface {
	Fixtures(ctx context.Context) ([]model.FixtureResult, error)
	Teams(ctx context.Context) ([]string, error)
	Weeks(ctx context.Context) ([]int, error)
	Stats(ctx context.Context) (service.Stats, error)
	Outcomes(ctx context.Context) (model.ActualOutcome, error)
}

// ReferenceHandler handles the read-only reference routes.
type ReferenceHandler struct {
	deps   ReferenceDependencies
	logger logger.Logger
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(deps ReferenceDependencies, log logger.Logger) *ReferenceHandler {
	return &ReferenceHandler{deps: deps, logger: log}
}

// HandleFixtures handles GET /api/v1/fixtures.
func (h *ReferenceHandler) HandleFixtures(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.logger, "api.get_fixtures", h.deps.Fixtures)
}

// HandleTeams handles GET /api/v1/teams.
func (h *ReferenceHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.logger, "api.get_teams", h.deps.Teams)
}

// HandleWeeks handles GET /api/v1/weeks.
func (h *ReferenceHandler) HandleWeeks(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.logger, "api.get_weeks", h.deps.Weeks)
}

// HandleStats handles GET /api/v1/stats.
func (h *ReferenceHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.logger, "api.get_stats", h.deps.Stats)
}

// HandleOutcomes handles GET /api/v1/outcomes.
func (h *ReferenceHandler) HandleOutcomes(w http.ResponseWriter, r *http.Request) {
	serve(w, r, h.logger, "api.get_outcomes", h.deps.Outcomes)
}

func serve[T any](w http.ResponseWriter, r *http.Request, log logger.Logger, op string, fn func(context.Context) (T, error)) {
	v, err := fn(r.Context())
	if err != nil {
		respondError(r.Context(), w, log, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
