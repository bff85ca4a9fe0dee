package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/plaf203-core/internal/feeding"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/config"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/logging"
	"github.com/nerrad567/plaf203-core/internal/protocol"
	"github.com/nerrad567/plaf203-core/internal/session"
	"github.com/nerrad567/plaf203-core/internal/storage"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Feeder is the engine surface the API drives. *session.Engine satisfies it.
type Feeder interface {
	Status() session.Status
	Attributes() protocol.AttributeSet
	RefreshAttributes(ctx context.Context) error
	ApplySettings(ctx context.Context, s session.Settings) error

	FoodPlans() []feeding.Plan
	SetFoodPlans(ctx context.Context, plans []feeding.Plan) error
	SetFoodPlan(ctx context.Context, plan feeding.Plan) error
	RemoveFoodPlan(ctx context.Context, id int) error

	ManualFeed(ctx context.Context, grains int) error
	ManualFeedQuantity() int
	SetManualFeedQuantity(ctx context.Context, qty int) error

	Reboot(ctx context.Context) error
	FactoryReset(ctx context.Context) error
	ReconnectWifi(ctx context.Context) error
	FormatSDCard(ctx context.Context) error
	UpgradeFirmware(ctx context.Context, fw session.FirmwareUpgrade) error
	ChangeWifi(ctx context.Context, ssid, password string) error
}

// FeedLog lists recorded feeds. *storage.Store satisfies it.
type FeedLog interface {
	ListFeeds(ctx context.Context, filter storage.FeedLogFilter) (*storage.FeedLogPage, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// ConnectionState reports broker connectivity. *mqtt.Client satisfies it.
type ConnectionState interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Feeder  Feeder
	FeedLog FeedLog            // optional: feed log routes return 404 without it
	MQTT    ConnectionState    // optional: reported by /metrics
	DBStats func() sql.DBStats // optional: reported by /metrics
	Checks  map[string]HealthCheck
	Hub     *Hub // If set, the server uses this hub instead of creating its own
	Version string
}

// Server is the HTTP API server for the feeder core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	feeder    Feeder
	feedLog   FeedLog
	mqtt      ConnectionState
	dbStats   func() sql.DBStats
	checks    map[string]HealthCheck
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	ownHub    bool               // true if the hub was created here
	cancel    context.CancelFunc // cancels background goroutines on Close()

	addrMu sync.RWMutex
	addr   net.Addr
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, feeder)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Feeder == nil {
		return nil, fmt.Errorf("feeder is required")
	}
	if deps.Config.Auth.Enabled && deps.Config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("api.auth.jwt_secret is required when auth is enabled")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		feeder:    deps.Feeder,
		feedLog:   deps.FeedLog,
		mqtt:      deps.MQTT,
		dbStats:   deps.DBStats,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		s.ownHub = true
	}
	s.hub.SetSnapshot(deps.Feeder.Status)
	return s, nil
}

// Hub returns the WebSocket hub. Register it as a session listener to
// relay events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (if owned) and launches the HTTP listener
// in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation of background goroutines
//
// Returns:
//   - error: If the listener cannot be opened (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.ownHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.addrMu.Lock()
	s.addr = ln.Addr()
	s.addrMu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String(), "auth", s.cfg.Auth.Enabled)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the address the server is listening on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

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

// HealthCheck verifies the API server is running.
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
