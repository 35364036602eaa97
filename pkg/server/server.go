package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"

	"mercator-hq/webdis/pkg/acl"
	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/config"
	"mercator-hq/webdis/pkg/dispatch"
	"mercator-hq/webdis/pkg/encoder"
	"mercator-hq/webdis/pkg/pool"
	"mercator-hq/webdis/pkg/proxy"
	"mercator-hq/webdis/pkg/proxy/handlers"
	"mercator-hq/webdis/pkg/proxy/middleware"
	"mercator-hq/webdis/pkg/proxy/types"
	"mercator-hq/webdis/pkg/pubsub"
	webdistls "mercator-hq/webdis/pkg/security/tls"
	"mercator-hq/webdis/pkg/telemetry/health"
	"mercator-hq/webdis/pkg/telemetry/metrics"
	"mercator-hq/webdis/pkg/telemetry/tracing"
)

// Options carries the collaborators built by the caller. All are optional.
type Options struct {
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// BackendTLS is used for pool, subscription and readiness connections.
	BackendTLS *tls.Config

	Build health.BuildInfo
}

// Server is the gateway HTTP server.
type Server struct {
	cfg  *config.Config
	opts Options

	acl     *acl.Engine
	pools   *pool.Manager
	bridge  *pubsub.Bridge
	checker *health.Checker
	probe   *redis.Client
	handler http.Handler

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer wires the gateway components for cfg. cfg must already have
// defaults applied and be validated.
func NewServer(cfg *config.Config, opts Options) (*Server, error) {
	engine, err := acl.New(cfg.ACL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile acl: %w", err)
	}

	s := &Server{
		cfg:          cfg,
		opts:         opts,
		acl:          engine,
		pools:        pool.NewManager(cfg, opts.BackendTLS, opts.Metrics),
		bridge:       pubsub.NewBridge(cfg, opts.BackendTLS, opts.Metrics, opts.Tracer),
		checker:      health.New(cfg.Telemetry.Health.CheckTimeout),
		probe:        health.NewBackendClient(cfg, opts.BackendTLS),
		shutdownChan: make(chan struct{}),
	}
	s.checker.RegisterCheck("backend", health.BackendCheck(s.probe))
	s.handler = s.setupRoutes()

	slog.Info("gateway configured",
		"backend", cfg.BackendAddress(),
		"workers", cfg.HTTPThreads,
		"pool_size_per_thread", cfg.PoolSizePerThread,
		"acl_rules", engine.Len(),
		"websockets", cfg.Websockets,
	)
	if cfg.Daemonize || cfg.User != "" || cfg.Group != "" {
		slog.Warn("daemonize, user and group are not supported; use the service manager instead")
	}
	return s, nil
}

// Start listens on the configured address and blocks until ctx is
// canceled, Shutdown is called or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true

	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	tlsConfig, err := webdistls.ServerConfig(&s.cfg.Server.TLS)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	if tlsConfig != nil {
		httpServer.TLSConfig = tlsConfig
		ln = tls.NewListener(ln, tlsConfig)
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting webdis gateway",
			"address", ln.Addr().String(),
			"tls_enabled", tlsConfig != nil,
		)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	case <-s.shutdownChan:
		return nil
	}
}

// Shutdown stops accepting requests, waits for in-flight ones up to the
// configured timeout, then closes subscriptions and backend connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		defer close(s.shutdownChan)

		slog.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		// Streams never finish on their own; end them first so Shutdown
		// does not wait out the timeout.
		s.bridge.Close()

		s.mu.RLock()
		httpServer := s.httpServer
		s.mu.RUnlock()
		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.pools.Close()
		_ = s.probe.Close()

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("webdis gateway stopped")
	})

	return shutdownErr
}

// websocketPaths maps each WebSocket endpoint to its reply format.
var websocketPaths = map[string]command.OutputFormat{
	"/.json": command.FormatJSON,
	"/.raw":  command.FormatRaw,
	"/.msg":  command.FormatMsgPack,
}

// websocketsDisabled answers the WebSocket endpoints when websockets are
// off, instead of running ".json" as a command.
func websocketsDisabled(w http.ResponseWriter, r *http.Request) {
	_ = proxy.WriteErrorResponse(w, types.NewErrorResponse(
		"websockets are disabled; set websockets: true to enable "+r.URL.Path,
		types.ErrorTypeInvalidRequest,
		types.CodeWebSocketsDisabled,
	))
}

// setupRoutes builds the route table and middleware chain.
func (s *Server) setupRoutes() http.Handler {
	cfg := s.cfg

	dispatcher := dispatch.New(s.pools, s.opts.Tracer, s.opts.Metrics)
	enc := encoder.New(encoder.BinaryMode(cfg.JSONBinaryMode))

	commands := &handlers.CommandHandler{
		Parser: command.NewParser(command.Options{
			MaxBodySize:  cfg.HTTPMaxRequestSize,
			MaxURILength: cfg.HTTPMaxURILength,
			DefaultRoot:  cfg.DefaultRoot,
		}),
		ACL:        s.acl,
		Dispatcher: dispatcher,
		Encoder:    enc,
		Streams: &handlers.SSEHandler{
			Bridge:    s.bridge,
			Keepalive: cfg.PubSub.KeepaliveInterval,
		},
		Metrics: s.opts.Metrics,
	}
	mux := NewRouter(commands)

	s.checker.Register(mux, &cfg.Telemetry.Health, s.opts.Build)

	if s.opts.Metrics != nil && cfg.Telemetry.Metrics.IsEnabled() {
		mux.Handle(cfg.Telemetry.Metrics.Path, s.opts.Metrics.Handler())
	}

	for path, format := range websocketPaths {
		if !cfg.Websockets {
			mux.Handle(path, http.HandlerFunc(websocketsDisabled))
			continue
		}
		ws := handlers.NewWebSocketHandler(format)
		ws.ACL = s.acl
		ws.Dispatcher = dispatcher
		ws.Bridge = s.bridge
		ws.Encoder = enc
		ws.Metrics = s.opts.Metrics
		ws.MaxMessageSize = cfg.HTTPMaxRequestSize
		ws.PingInterval = cfg.PubSub.KeepaliveInterval
		mux.Handle(path, ws)
	}

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(middleware.DefaultCORSConfig())(handler)
	handler = tracing.HTTPMiddleware(s.opts.Tracer)(handler)
	handler = middleware.LoggingMiddleware(s.opts.Metrics)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Pools returns the backend connection pools.
func (s *Server) Pools() *pool.Manager {
	return s.pools
}

// Bridge returns the pub/sub bridge.
func (s *Server) Bridge() *pubsub.Bridge {
	return s.bridge
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Health runs the readiness checks.
func (s *Server) Health(ctx context.Context) error {
	if !s.IsRunning() {
		return fmt.Errorf("server is not running")
	}
	status := s.checker.CheckReadiness(ctx)
	if !status.Ready() {
		return fmt.Errorf("backend is not ready: %s", status.Status)
	}
	return nil
}
