package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/weavy/weavy/pkg/audit"
	"github.com/weavy/weavy/pkg/auth"
	"github.com/weavy/weavy/pkg/config"
	"github.com/weavy/weavy/pkg/editor"
	"github.com/weavy/weavy/pkg/httputil"
	"github.com/weavy/weavy/pkg/maintenance"
	"github.com/weavy/weavy/pkg/middleware"
	"github.com/weavy/weavy/pkg/observability"
	"github.com/weavy/weavy/pkg/plugins"
	"github.com/weavy/weavy/pkg/roles"
	"github.com/weavy/weavy/pkg/sso"
	"github.com/weavy/weavy/pkg/storage"
	"github.com/weavy/weavy/pkg/swagger"
	"github.com/weavy/weavy/pkg/users"
)

// app holds the wired server components
type app struct {
	cfg    *config.Config
	logger *observability.Logger

	db    *sql.DB
	redis *redis.Client
	otel  *observability.OTelProviders

	registry *prometheus.Registry
	metrics  *observability.Metrics
	audit    audit.Logger
	health   *observability.HealthChecker

	users    *users.Store
	tokens   *auth.TokenStore
	sessions sso.SessionStore
	limiter  middleware.Limiter
	gate     *sso.Gate

	clientPlugins *plugins.Registry[*plugins.Host]
	editorPlugins *plugins.Registry[*editor.Editor]

	roles *roles.Service

	janitor      *maintenance.Scheduler
	stopListener context.CancelFunc
	listenerDone chan struct{}
	handler      http.Handler
}

// newApp opens storage and builds every component and the HTTP handler.
// The caller must call close.
func newApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	built := false
	defer func() {
		if !built {
			_ = a.close(context.Background())
		}
	}()

	var err error
	a.otel, err = observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if a.db, err = openDatabase(ctx, cfg, logger); err != nil {
		return nil, err
	}
	if cfg.Redis.Enabled() {
		if a.redis, err = storage.OpenRedis(ctx, cfg.Redis.URL); err != nil {
			return nil, err
		}
		logger.Info("Connected to Redis")
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = observability.NewMetrics(a.registry)
	a.health = observability.NewHealthChecker(a.db, a.redis)
	a.health.SetVersion(version)

	dbAudit, err := audit.NewDBLogger(a.db)
	if err != nil {
		return nil, err
	}
	a.audit = audit.NewMultiLogger(dbAudit, audit.NewLogrusLogger(logger))

	a.users = users.NewStore(a.db)
	a.tokens = auth.NewTokenStore(a.db)
	if a.redis != nil {
		a.sessions = sso.NewRedisSessionStore(a.redis)
	} else {
		a.sessions = sso.NewSQLSessionStore(a.db)
	}
	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewLimiter(cfg.RateLimit, a.redis)
	}

	if err := a.setupPlugins(); err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	if err := a.routes(ctx, router); err != nil {
		return nil, err
	}
	a.handler = httputil.Chain(
		httputil.ForwardedHeaders(cfg.Server.TrustProxyHeaders),
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(cfg.Server.AllowedOrigins),
	)(router)

	if a.janitor, err = maintenance.New(cfg.Maintenance.Schedule, logger, a.cleanupTasks()...); err != nil {
		return nil, err
	}
	built = true
	return a, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*sql.DB, error) {
	db, dialect, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := storage.RunMigrations(ctx, db, dialect, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// setupPlugins registers the built-in plugins, applies the configured
// defaults and installs the client editor plugin once so that a bad
// defaults file fails at startup.
func (a *app) setupPlugins() error {
	a.editorPlugins = editor.NewRegistry()
	a.clientPlugins = plugins.NewRegistry[*plugins.Host]("client")
	a.clientPlugins.MustRegister(editor.ClientPlugin(a.editorPlugins))

	if path := a.cfg.Plugins.DefaultsFile; path != "" {
		defaults, err := plugins.LoadDefaults(path)
		if err != nil {
			return err
		}
		unknownClient := a.clientPlugins.ApplyDefaults(defaults)
		unknownEditor := a.editorPlugins.ApplyDefaults(defaults)
		for _, name := range unknownClient {
			if contains(unknownEditor, name) {
				a.logger.WithField("plugin", name).Warn("Plugin defaults name an unknown plugin")
			}
		}
	}

	if _, err := a.clientPlugins.Install(plugins.NewHost(), editor.ClientPluginName, nil); err != nil {
		return fmt.Errorf("invalid plugin configuration: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// routes registers the sign-in gate, the role API, the plugin catalog and
// the API documentation.
// Role routes need a principal; sign-in routes are rate limited.
func (a *app) routes(ctx context.Context, router *mux.Router) error {
	if a.cfg.Observability.OTelEnabled {
		router.Use(observability.TracingMiddleware(a.cfg.Observability.OTelServiceName))
	}
	router.Use(observability.HTTPMetricsMiddleware(a.metrics))
	router.Use(audit.NewMiddleware(a.audit).Handler)
	router.Use(middleware.NewAuthenticator(a.sessions, a.tokens, a.users, a.metrics).Handler)

	signIn := router.NewRoute().Subrouter()
	if a.limiter != nil {
		signIn.Use(middleware.NewRateLimitMiddleware(a.limiter).Handler)
	}
	gate, err := sso.Setup(ctx, signIn, sso.OptionsFromConfig(a.cfg), a.users, a.sessions, a.metrics)
	if err != nil {
		return fmt.Errorf("failed to set up sign-in: %w", err)
	}
	if gate == nil {
		a.logger.Info("Google sign-in not configured, authentication gate disabled")
	}
	a.gate = gate

	api := router.NewRoute().Subrouter()
	api.Use(middleware.RequireAuth)
	a.roles = roles.NewService(roles.NewStore(a.db), a.users, a.metrics, a.roleOptions())
	roles.NewHandlers(a.roles, a.users).RegisterRoutes(api)

	plugins.NewHandlers(a.clientPlugins, a.editorPlugins).RegisterRoutes(router)
	swagger.NewSwaggerHandlers().RegisterRoutes(router)
	return nil
}

// roleOptions picks the role cache mode. With Redis every instance shares
// evictions over pub/sub; on SQLite there is a single instance; on postgres
// without Redis several instances may share the database, so the cache is off.
func (a *app) roleOptions() roles.Options {
	switch {
	case a.redis != nil:
		opts := roles.DefaultOptions()
		opts.Invalidator = roles.NewRedisInvalidator(a.redis)
		return opts
	case storage.Dialect(a.cfg.Database.Driver) == storage.DialectSQLite:
		return roles.DefaultOptions()
	default:
		return roles.Options{}
	}
}

// startBackground starts the cleanup schedule and the role eviction listener
func (a *app) startBackground() {
	a.janitor.Start()

	ctx, cancel := context.WithCancel(context.Background())
	a.stopListener = cancel
	a.listenerDone = make(chan struct{})
	go func() {
		defer close(a.listenerDone)
		defer observability.RecoverPanic(a.logger, "role eviction listener")
		if err := a.roles.Listen(ctx); err != nil {
			a.logger.WithError(err).Error("Role cache eviction listener stopped")
		}
	}()
}

func (a *app) cleanupTasks() []maintenance.Task {
	tasks := []maintenance.Task{
		{Name: "api_tokens", Run: a.tokens.DeleteExpired},
		maintenance.Func("db_stats", func() { a.health.RecordDBStats(a.metrics) }),
	}
	if store, ok := a.sessions.(*sso.SQLSessionStore); ok {
		tasks = append(tasks, maintenance.Task{Name: "sessions", Run: store.DeleteExpired})
	}
	if rl, ok := a.limiter.(*middleware.RateLimiter); ok {
		tasks = append(tasks, maintenance.Func("rate_limiter", rl.Cleanup))
	}
	return tasks
}

// healthHandler serves probes and, when enabled, Prometheus metrics
func (a *app) healthHandler() http.Handler {
	mux := http.NewServeMux()
	observability.RegisterHealthRoutes(mux, a.health)
	if a.cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(mux, a.registry)
	}
	return mux
}

// close stops the background work and releases every connection. Safe on a
// partially built app.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.stopListener != nil {
		a.stopListener()
		select {
		case <-a.listenerDone:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	if a.janitor != nil {
		errs = append(errs, a.janitor.Stop(ctx))
	}
	if a.otel != nil {
		errs = append(errs, observability.ShutdownOTel(ctx, a.otel, a.logger))
	}
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func serve(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           a.healthHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	shutdown.RegisterShutdownFunc(a.close)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveErr := make(chan error, 2)
	listen := func(name string, srv *http.Server) {
		defer observability.RecoverPanic(logger, name)
		logger.WithField("addr", srv.Addr).Infof("Starting %s", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%s failed: %w", name, err)
			cancel()
		}
	}
	go listen("health server", healthServer)
	go listen("HTTP server", server)

	a.startBackground()

	if err := shutdown.WaitForShutdown(ctx); err != nil {
		return err
	}
	select {
	case err := <-serveErr:
		return err
	default:
		logger.Info("Server stopped")
		return nil
	}
}

func migrate(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Migrations complete")
	return nil
}

// cleanup runs one maintenance pass against the SQL stores
func cleanup(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	janitor, err := maintenance.New("", logger,
		maintenance.Task{Name: "api_tokens", Run: auth.NewTokenStore(db).DeleteExpired},
		maintenance.Task{Name: "sessions", Run: sso.NewSQLSessionStore(db).DeleteExpired},
	)
	if err != nil {
		return err
	}
	return janitor.RunOnce(ctx)
}
