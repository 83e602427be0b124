package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/domain/model"
	"github.com/okian/predictor/pkg/logger"
)

// UserDependencies defines the participant-facing write operations.
type UserDependencies interface {
	SignIn(ctx context.Context, email, name string) (model.User, error)
	UserPredictions(ctx context.Context, email string) (service.UserPredictions, error)
	SaveMatchPicks(ctx context.Context, email string, picks map[string]string) (int, error)
	SaveMetaPrediction(ctx context.Context, email string, in service.SeasonPicks) (model.MetaPrediction, error)
}

// UserHandler handles sign-in and prediction requests.
type UserHandler struct {
	deps   UserDependencies
	logger logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(deps UserDependencies, log logger.Logger) *UserHandler {
	return &UserHandler{deps: deps, logger: log}
}

// HandleSignIn handles POST /api/v1/users.
func (h *UserHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_in"
	var req signInRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	u, err := h.deps.SignIn(r.Context(), req.Email, req.Name)
	if err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleGetPredictions handles GET /api/v1/users/{email}/predictions.
func (h *UserHandler) HandleGetPredictions(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_predictions"
	email, err := emailParam(r, op)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	up, err := h.deps.UserPredictions(r.Context(), email)
	if err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, up)
}

// HandlePutMatches handles PUT /api/v1/users/{email}/predictions/matches.
func (h *UserHandler) HandlePutMatches(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_match_picks"
	email, err := emailParam(r, op)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	var req matchPicksRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	n, err := h.deps.SaveMatchPicks(r.Context(), email, req.Picks)
	if err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, savedResponse{Saved: n})
}

// HandlePutMeta handles PUT /api/v1/users/{email}/predictions/meta.
func (h *UserHandler) HandlePutMeta(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_meta_prediction"
	email, err := emailParam(r, op)
	if err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	var req service.SeasonPicks
	if err := decodeJSON(w, r, op, &req); err != nil {
		respondError(r.Context(), w, h.logger, err)
		return
	}
	p, err := h.deps.SaveMetaPrediction(r.Context(), email, req)
	if err != nil {
		respondError(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func emailParam(r *http.Request, op string) (string, error) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil || email == "" {
		return "", WrapKind(op, ErrBadRequest, err)
	}
	return email, nil
}
