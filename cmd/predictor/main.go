package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/predictor/internal/adapters/http/api"
	"github.com/okian/predictor/internal/adapters/http/site"
	"github.com/okian/predictor/internal/adapters/http/swagger"
	mcpadapter "github.com/okian/predictor/internal/adapters/mcp"
	"github.com/okian/predictor/internal/adapters/repository"
	app "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/config"
	"github.com/okian/predictor/pkg/logger"
	"github.com/okian/predictor/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // set by the linker

func main() {
	// A missing .env is fine; real environment variables win anyway.
	_ = godotenv.Load(".env")

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("predictor: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Runtime metrics go to the service registry, next to the contest metrics.
	metrics.GetRegistry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := openService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}

	log.Info(ctx, "server stopped")
	return nil
}

// openService opens the configured store and starts a service over it.
// The caller owns Stop, which also closes the store.
func openService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	cutoff, _, err := cfg.CutoffTime()
	if err != nil {
		return nil, err
	}

	store, err := repository.Open(ctx, repository.Config{
		Backend:     cfg.Store,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	}, repository.WithMaxConns(int32(cfg.DBMaxConns))) //nolint:gosec // validated pool size
	if err != nil {
		return nil, err
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithRubric(cfg.Points),
		app.WithCutoff(cutoff),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// newHandler wires the API, docs, landing page and MCP endpoint into one router.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	opts := []api.Option{
		api.WithLogger(log.Named("api")),
		api.WithAdminCode(cfg.AdminCode),
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithCORSOrigins(cfg.CORSAllowOrigins),
		api.WithRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow),
		api.WithRoutes(func(r chi.Router) {
			swagger.Register(ctx, r)
			site.Register(ctx, r, cfg.AppTitle)
		}),
	}
	if cfg.MCPEnabled {
		tools := mcpadapter.NewTools(svc, cfg.MaxLeaderboardLimit, log.Named("mcp"))
		opts = append(opts, api.WithMCPHandler(mcpadapter.Handler(mcpadapter.NewServer(tools, version))))
	}
	return api.NewServer(svc, opts...).Handler()
}
