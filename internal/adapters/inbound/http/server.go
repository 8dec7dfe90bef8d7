package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	// RateLimitRPS is the sustained request rate across the process.
	// Zero disables rate limiting.
	RateLimitRPS float64

	// RateLimitBurst is the token bucket size. Defaults to RateLimitRPS.
	RateLimitBurst int

	Logger *slog.Logger
}

// NewRouter wires middleware, health routes and the RPC endpoint.
// Health routes are never rate limited.
func NewRouter(config RouterConfig, rpc *Handler, health *HealthHandler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(Recoverer(logger))

	health.RegisterRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(NewLimiter(config.RateLimitRPS, config.RateLimitBurst), logger))
		rpc.RegisterRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, logger, http.StatusNotFound, CodeNotFound, "no route for "+req.URL.Path, "")
	})
	return r
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Addr is the address to listen on (e.g., ":8080")
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// DrainDelay is how long Shutdown keeps serving after raising
	// ShuttingDown, so that load balancer health checks observe shutting_down
	// before the listener closes. Zero closes immediately.
	DrainDelay time.Duration

	// ShuttingDown is raised by Shutdown. Share it with the HealthHandler.
	ShuttingDown *atomic.Bool

	Logger *slog.Logger
}

// ServerConfigDefaults returns a config with default values.
func ServerConfigDefaults() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		DrainDelay:   5 * time.Second,
		Logger:       slog.Default(),
	}
}

// Server runs the API on an http.Server.
type Server struct {
	server       *http.Server
	drainDelay   time.Duration
	shuttingDown *atomic.Bool
	logger       *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server for handler.
func NewServer(config ServerConfig, handler http.Handler) *Server {
	defaults := ServerConfigDefaults()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.ShuttingDown == nil {
		config.ShuttingDown = new(atomic.Bool)
	}

	return &Server{
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           handler,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
		drainDelay:   config.DrainDelay,
		shuttingDown: config.ShuttingDown,
		logger:       config.Logger.With("component", "http-server"),
	}
}

// Start begins listening. It is non-blocking; a listen or serve failure is
// sent on the returned channel, which is closed when the server stops.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.logger.Error("http server failed to listen", "addr", s.server.Addr, "error", err)
		errCh <- err
		close(errCh)
		return errCh
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		s.logger.Info("starting http server", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown raises ShuttingDown, keeps serving for DrainDelay, then stops
// accepting connections and waits up to timeout for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.shuttingDown.Store(true)
	if s.drainDelay > 0 {
		s.logger.Info("draining before shutdown", "delay", s.drainDelay)
		time.Sleep(s.drainDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
