// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/domain/standings"
	"github.com/okian/predictor/pkg/logger"
	"github.com/okian/predictor/pkg/metrics"
)

// Request body limits.
const (
	maxJSONBody = 1 << 20
	maxCSVBody  = 10 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	HealthDependencies
	LeaderboardDependencies
	WeeklyDependencies
	ReferenceDependencies
	UserDependencies
	AdminDependencies
}

// Server wires HTTP routes for the contest API.
type Server struct {
	healthHandler      *HealthHandler
	leaderboardHandler *LeaderboardHandler
	weeklyHandler      *WeeklyHandler
	referenceHandler   *ReferenceHandler
	userHandler        *UserHandler
	adminHandler       *AdminHandler

	corsOrigins []string
	rateLimit   int
	rateWindow  time.Duration
	mcp         http.Handler
	mounts      []func(chi.Router)
}

// Option applies a configuration option to the Server.
type Option func(*serverOptions)

type serverOptions struct {
	adminCode   string
	maxLimit    int
	corsOrigins []string
	rateLimit   int
	rateWindow  time.Duration
	mcp         http.Handler
	mounts      []func(chi.Router)
	logger      logger.Logger
}

// WithAdminCode sets the code expected in the X-Admin-Code header.
// Admin routes answer 503 while it is empty.
func WithAdminCode(code string) Option {
	return func(o *serverOptions) { o.adminCode = code }
}

// WithMaxLimit caps the leaderboard limit parameter.
func WithMaxLimit(n int) Option {
	return func(o *serverOptions) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(o *serverOptions) { o.corsOrigins = origins }
}

// WithRateLimit allows requests per window per client IP. Zero disables it.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(o *serverOptions) {
		o.rateLimit = requests
		o.rateWindow = window
	}
}

// WithMCPHandler mounts a tool server at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(o *serverOptions) { o.mcp = h }
}

// WithRoutes registers extra routes, such as the docs pages.
func WithRoutes(fn func(chi.Router)) Option {
	return func(o *serverOptions) {
		if fn != nil {
			o.mounts = append(o.mounts, fn)
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	o := serverOptions{
		maxLimit:    100,
		corsOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}

	return &Server{
		healthHandler:      NewHealthHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, o.maxLimit, o.logger),
		weeklyHandler:      NewWeeklyHandler(deps, o.logger),
		referenceHandler:   NewReferenceHandler(deps, o.logger),
		userHandler:        NewUserHandler(deps, o.logger),
		adminHandler:       NewAdminHandler(deps, o.adminCode, o.logger),
		corsOrigins:        o.corsOrigins,
		rateLimit:          o.rateLimit,
		rateWindow:         o.rateWindow,
		mcp:                o.mcp,
		mounts:             o.mounts,
	}
}

// Handler builds the router with every route and middleware attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	c := corslib.New(corslib.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", AdminCodeHeader, RequestIDHeader, "Mcp-Session-Id"},
		ExposedHeaders: []string{RequestIDHeader, "Content-Disposition", "Mcp-Session-Id"},
	})
	r.Use(c.Handler)

	if s.rateLimit > 0 && s.rateWindow > 0 {
		r.Use(RateLimitMiddleware(s.rateLimit, s.rateWindow))
	}

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.MetricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
		r.Get("/weekly", s.weeklyHandler.HandleGetWeekly)
		r.Get("/fixtures", s.referenceHandler.HandleFixtures)
		r.Get("/teams", s.referenceHandler.HandleTeams)
		r.Get("/weeks", s.referenceHandler.HandleWeeks)
		r.Get("/stats", s.referenceHandler.HandleStats)
		r.Get("/outcomes", s.referenceHandler.HandleOutcomes)

		r.Post("/users", s.userHandler.HandleSignIn)
		r.Route("/users/{email}/predictions", func(r chi.Router) {
			r.Get("/", s.userHandler.HandleGetPredictions)
			r.Put("/matches", s.userHandler.HandlePutMatches)
			r.Put("/meta", s.userHandler.HandlePutMeta)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminHandler.RequireAdmin)
			r.Post("/fixtures", s.adminHandler.HandleImportFixtures)
			r.Post("/results", s.adminHandler.HandleImportResults)
			r.Put("/outcomes", s.adminHandler.HandleSetOutcomes)
			r.Delete("/outcomes", s.adminHandler.HandleClearOutcomes)
		})
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
	}
	for _, mount := range s.mounts {
		mount(r)
	}

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status != http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// respondError maps err to a status and code and writes it. Server-side
// failures are logged; their details never reach the client.
func respondError(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error(ctx, "request failed",
			logger.String("requestID", RequestIDFromContext(ctx)),
			logger.Error(err),
		)
		metrics.RecordErrorByComponent("api", code)
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrLocked):
		return http.StatusConflict, "locked"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ErrAdminDisabled):
		return http.StatusServiceUnavailable, "admin_disabled"
	case errors.Is(err, standings.ErrDataAccess):
		return http.StatusInternalServerError, "data_access"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return NewKind(op, ErrBadRequest)
	}
	return nil
}

// Shapes shared with the OpenAPI document.
type (
	signInRequest struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}

	matchPicksRequest struct {
		Picks map[string]string `json:"picks"`
	}

	savedResponse struct {
		Saved int `json:"saved"`
	}

	importedResponse struct {
		Imported int `json:"imported"`
	}
)
