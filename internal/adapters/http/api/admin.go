package api

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/pkg/logger"
)

// AdminDependencies defines the admin-only operations.
type AdminDependencies interface {
	ImportFixturesCSV(ctx context.Context, r io.Reader) (int, error)
	ImportResultsCSV(ctx context.Context, r io.Reader) (int, error)
	SetOutcomes(ctx context.Context, in service.SeasonPicks) (model.ActualOutcome, error)
	ClearOutcomes(ctx context.Context) error
}

// AdminHandler handles imports and outcome updates.
type AdminHandler struct {
	deps   AdminDependencies
	code   []byte
	logger logger.Logger
}

// NewAdminHandler creates a new admin handler guarded by code.
func NewAdminHandler(deps AdminDependencies, code string, log logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, code: []byte(code), logger: log}
}

// RequireAdmin rejects requests without the configured X-Admin-Code.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "api.require_admin"
		if len(h.code) == 0 {
			respondError(r.Context(), w, h.logger, NewKind(op, ErrAdminDisabled))
			return
		}
		got := []byte(r.Header.Get(AdminCodeHeader))
		if subtle.ConstantTimeCompare(got, h.code) != 1 {
			h.logger.Warn(r.Context(), "admin code rejected",
				logger.String("requestID", RequestIDFromContext(r.Context())),
				logger.String("path", r.URL.Path),
			)
			respondError(r.Context(), w, h.logger, NewKind(op, ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleImportFixtures handles POST /api/v1/admin/fixtures with a CSV body.
func (h *AdminHandler) HandleImportFixtures(w http.ResponseWriter, r *http.Request) {
	h.importCSV(w, r, "api.import_fixtures", h.deps.ImportFixturesCSV)
}

// HandleImportResults handles POST /api/v1/admin/results with a CSV body.
func (h *AdminHandler) HandleImportResults(w http.ResponseWriter, r *http.Request) {
	h.importCSV(w, r, "api.import_results", h.deps.ImportResultsCSV)
}

func (h *AdminHandler) importCSV(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, io.Reader) (int, error)) {
	n, err := fn(r.Context(), http.MaxBytesReader(w, r.Body, maxCSVBody))
	if err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, importedResponse{Imported: n})
}

// HandleSetOutcomes handles PUT /api/v1/admin/outcomes.
func (h *AdminHandler) HandleSetOutcomes(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_outcomes"
	var req service.SeasonPicks
	if err := decodeJSON(w, r, op, &req); err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	out, err := h.deps.SetOutcomes(r.Context(), req)
	if err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleClearOutcomes handles DELETE /api/v1/admin/outcomes.
func (h *AdminHandler) HandleClearOutcomes(w http.ResponseWriter, r *http.Request) {
	const op = "api.clear_outcomes"
	if err := h.deps.ClearOutcomes(r.Context()); err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
