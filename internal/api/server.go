// Package api serves the simulation engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nvandessel/polaris/internal/logging"
	"github.com/nvandessel/polaris/internal/models"
	"github.com/nvandessel/polaris/internal/ratelimit"
)

// Simulator is the application surface the HTTP handlers call.
type Simulator interface {
	Simulate(ctx context.Context, text string) (models.SimulationResponse, error)
	Leaders(ctx context.Context) ([]models.LeaderProfile, error)
	History(ctx context.Context, limit int) ([]models.SimulationSummary, error)
	Simulation(ctx context.Context, id string) (models.SimulationResponse, error)
	Health(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	// CORSOrigins lists allowed browser origins. "*" allows any origin.
	CORSOrigins []string

	// SimulateLimiter throttles POST /api/simulate per client IP. Nil disables it.
	SimulateLimiter *ratelimit.Limiter

	Version string
	Logger  *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Simulator, opts Options) *gin.Engine {
	logger := logging.OrDefault(opts.Logger)
	h := &handlers{svc: svc, logger: logger, version: opts.Version}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(opts.CORSOrigins))

	router.GET("/", h.root)
	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.POST("/simulate", rateLimit(opts.SimulateLimiter), h.simulate)
		api.GET("/leaders", h.leaders)
		api.GET("/history", h.history)
		api.GET("/simulations/:id", h.simulation)
	}
	return router
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	logger = logging.OrDefault(logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger.Info("HTTP API shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
