package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/Dhairyash-1/auth-system/internal/auth/device"
	httpapi "github.com/Dhairyash-1/auth-system/internal/auth/http"
	"github.com/Dhairyash-1/auth-system/internal/auth/mailer"
	"github.com/Dhairyash-1/auth-system/internal/auth/metrics"
	"github.com/Dhairyash-1/auth-system/internal/auth/oauth"
	"github.com/Dhairyash-1/auth-system/internal/auth/service"
	"github.com/Dhairyash-1/auth-system/internal/auth/store/drivers/sqlite"
	"github.com/Dhairyash-1/auth-system/internal/platform/otel"
	"github.com/Dhairyash-1/auth-system/pkg/cryptox"
	"github.com/Dhairyash-1/auth-system/pkg/httpx"
	"github.com/Dhairyash-1/auth-system/pkg/jwtx"
	"github.com/Dhairyash-1/auth-system/pkg/ratelimit"
	"github.com/Dhairyash-1/auth-system/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	serviceName = "auth-service"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db     *sqlite.Store
	tokens *jwtx.Issuer
	hasher *cryptox.PasswordHasher
	mail   mailer.Sender
	geo    *device.GeoIP // nil without a GeoIP database
	redis  *redis.Client // nil with the in-memory limiter

	registry  *prometheus.Registry // nil when metrics are off
	collector *metrics.Collector

	otelShutdown func(context.Context) error

	// Services
	userService          *service.UserService
	loginService         *service.LoginService
	sessionService       *service.SessionService
	twoFactorService     *service.TwoFactorService
	passwordResetService *service.PasswordResetService
	oauthService         *service.OAuthService
	housekeepingService  *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.cfg.ensureSecrets(app.logger); err != nil {
		return nil, err
	}

	ctx := context.Background()

	shutdown, err := otel.Setup(ctx, otel.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: serviceName,
		Version:     BuildVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.otelShutdown = shutdown

	steps := []func(context.Context) error{
		app.initDatabase,
		app.initCrypto,
		app.initMailer,
		app.initRateLimitStore,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			app.closeResources()
			return nil, err
		}
	}

	app.initMetrics()
	app.initServices()
	if err := app.initHTTP(); err != nil {
		app.closeResources()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion, "env", app.cfg.Env)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeResources()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	if err := app.otelShutdown(ctx); err != nil {
		app.logger.Error("error flushing traces", "error", err)
	}

	if err := app.closeResources(); err != nil {
		app.logger.Error("error closing resources", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Handler returns the routed HTTP handler, for tests that drive the whole
// application without a listener.
func (app *Application) Handler() http.Handler { return app.router }

// closeResources releases everything opened by New. It is safe to call on a
// partially initialized Application.
func (app *Application) closeResources() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.geo != nil {
		errs = append(errs, app.geo.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase(context.Context) error {
	db, err := sqlite.NewStore(sqlite.FileDSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

// initCrypto loads the password pepper and builds the token issuer.
func (app *Application) initCrypto(context.Context) error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewPasswordHasher(pepper)

	tokens, err := jwtx.NewIssuer(jwtx.IssuerConfig{
		Issuer:          app.cfg.JWT.Issuer,
		SessionSecret:   []byte(app.cfg.JWT.Secret),
		TwoFactorSecret: []byte(app.cfg.JWT.TwoFactorSecret),
		AccessTTL:       app.cfg.JWT.AccessExpiry,
		RefreshTTL:      app.cfg.JWT.RefreshExpiry,
		TwoFactorTTL:    app.cfg.JWT.TwoFactorExpiry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	app.tokens = tokens
	return nil
}

func (app *Application) initMailer(context.Context) error {
	if app.cfg.SMTP.Host == "" {
		app.logger.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		app.mail = mailer.LogSender{Logger: app.logger}
		return nil
	}

	sender, err := mailer.NewSMTPSender(app.cfg.smtp())
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}
	app.mail = sender
	return nil
}

// initRateLimitStore connects to Redis when configured. The limiter itself
// is built in initHTTP.
func (app *Application) initRateLimitStore(ctx context.Context) error {
	if app.cfg.RateLimit.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: app.cfg.RateLimit.RedisAddr})
	app.redis = client

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to rate limit redis: %w", err)
	}

	app.logger.Info("rate limiter using redis", "addr", app.cfg.RateLimit.RedisAddr)
	return nil
}

func (app *Application) initMetrics() {
	if !app.cfg.MetricsEnabled {
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.registry = reg
	app.collector = metrics.NewCollector(reg)
}

// serviceMetrics keeps a nil collector from becoming a non-nil interface.
func (app *Application) serviceMetrics() service.Metrics {
	if app.collector == nil {
		return nil
	}
	return app.collector
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	m := app.serviceMetrics()

	app.sessionService = &service.SessionService{
		Store:         app.db,
		Tokens:        app.tokens,
		RotateRefresh: app.cfg.JWT.RotateRefresh,
		Metrics:       m,
	}
	app.userService = &service.UserService{
		Store:    app.db,
		Hasher:   app.hasher,
		Sessions: app.sessionService,
	}
	app.loginService = &service.LoginService{
		Users:    app.userService,
		Sessions: app.sessionService,
		Tokens:   app.tokens,
		Metrics:  m,
	}
	app.twoFactorService = &service.TwoFactorService{
		Store:    app.db,
		Tokens:   app.tokens,
		Sessions: app.sessionService,
		Metrics:  m,
		Issuer:   app.cfg.TOTPIssuer,
	}
	app.passwordResetService = &service.PasswordResetService{
		Store:       app.db,
		Hasher:      app.hasher,
		Mailer:      app.mail,
		Metrics:     m,
		FrontendURL: app.cfg.FrontendURL,
		TTL:         app.cfg.PasswordResetTTL,
	}
	app.oauthService = &service.OAuthService{
		Store:    app.db,
		Sessions: app.sessionService,
		Metrics:  m,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.JWT.RefreshExpiry,
	)
}

func (app *Application) providers() oauth.Registry {
	var providers []oauth.Provider
	if c := app.cfg.Google.oauth(); c.Enabled() {
		providers = append(providers, oauth.NewGoogle(c))
	}
	if c := app.cfg.GitHub.oauth(); c.Enabled() {
		providers = append(providers, oauth.NewGitHub(c))
	}
	for _, p := range providers {
		app.logger.Info("oauth provider enabled", "provider", p.Name())
	}
	return oauth.NewRegistry(providers...)
}

func (app *Application) devices() (*device.Resolver, error) {
	if app.cfg.GeoIPDatabaseFile == "" {
		return &device.Resolver{}, nil
	}
	geo, err := device.OpenGeoIP(app.cfg.GeoIPDatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	app.geo = geo
	return &device.Resolver{Locator: geo}, nil
}

func (app *Application) rateLimiter() *httpx.RateLimiter {
	var st ratelimit.Store = ratelimit.NewMemoryStore()
	if app.redis != nil {
		st = ratelimit.NewRedisStore(app.redis, "auth:ratelimit")
	}
	return httpx.NewRateLimiter(ratelimit.New(st))
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	devices, err := app.devices()
	if err != nil {
		return err
	}

	clientIPs, err := httpx.NewClientIPResolver(app.cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	// Wire services to router
	router.Tokens = app.tokens
	router.UserService = app.userService
	router.LoginService = app.loginService
	router.SessionService = app.sessionService
	router.TwoFactorService = app.twoFactorService
	router.PasswordResetService = app.passwordResetService
	router.OAuthService = app.oauthService
	router.Providers = app.providers()
	router.Devices = devices
	router.ClientIP = clientIPs.ClientIP
	router.RateLimiter = app.rateLimiter()
	router.Limits = app.cfg.RateLimit.Classes()
	router.Cookies = httpapi.Cookies{Secure: app.cfg.IsProduction()}
	router.FrontendURL = app.cfg.FrontendURL
	if app.collector != nil {
		router.Metrics = app.collector
		router.MetricsHandler = metrics.Handler(app.registry)
	}
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
