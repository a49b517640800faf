package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/library-core/internal/audit"
	"github.com/nerrad567/library-core/internal/auth"
	"github.com/nerrad567/library-core/internal/infrastructure/config"
	"github.com/nerrad567/library-core/internal/infrastructure/database"
	"github.com/nerrad567/library-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/library-core/internal/infrastructure/logging"
	"github.com/nerrad567/library-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/library-core/internal/library"
	"github.com/nerrad567/library-core/internal/publisher"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
// Store and Logger are required; everything else may be nil.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Site      config.SiteConfig
	Logger    *logging.Logger
	Store     *library.Store
	DB        *database.DB
	MQTT      *mqtt.Client
	InfluxDB  *influxdb.Client
	Publisher *publisher.Publisher
	Audit     *audit.Recorder
	Auth      *auth.Authenticator
	Version   string
}

// Server is the HTTP API server for the library.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	site        config.SiteConfig
	logger      *logging.Logger
	store       *library.Store
	db          *database.DB
	mqtt        *mqtt.Client
	influx      *influxdb.Client
	publisher   *publisher.Publisher
	audit       *audit.Recorder
	auth        *auth.Authenticator
	version     string
	emptyStatus int
	limiter     *clientLimiter
	startTime   time.Time
	server      *http.Server
	listenAddr  string
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The WebSocket hub is created here and registered as a store notifier, so
// changes are streamed to clients as soon as the server is started.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("library store is required")
	}
	if deps.Security.Auth.Enabled && deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required when auth is enabled")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		site:        deps.Site,
		logger:      deps.Logger,
		store:       deps.Store,
		db:          deps.DB,
		mqtt:        deps.MQTT,
		influx:      deps.InfluxDB,
		publisher:   deps.Publisher,
		audit:       deps.Audit,
		auth:        deps.Auth,
		version:     deps.Version,
		emptyStatus: deps.Config.EmptyCollectionStatus,
		startTime:   time.Now(),
	}
	if s.emptyStatus == 0 {
		s.emptyStatus = http.StatusOK
	}
	if rl := deps.Security.RateLimit; rl.Enabled && rl.RequestsPerMinute > 0 {
		s.limiter = newClientLimiter(rl.RequestsPerMinute, rl.Burst)
	}

	s.hub = NewHub(s.wsCfg, s.logger)
	s.store.AddNotifier(library.NotifierFunc(s.hub.BroadcastChange))

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a background
// goroutine. The listening socket is bound before Start returns, so a port
// conflict is reported here. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.listenAddr = ln.Addr().String()

	go s.hub.Run(srvCtx)
	if s.limiter != nil {
		go s.limiter.run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start serving in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	return s.listenAddr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, limiter pruning)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
