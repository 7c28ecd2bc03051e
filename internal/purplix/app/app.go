package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/purplix/backend/internal/purplix/cache"
	"github.com/purplix/backend/internal/purplix/captcha"
	"github.com/purplix/backend/internal/purplix/doh"
	"github.com/purplix/backend/internal/purplix/domain"
	"github.com/purplix/backend/internal/purplix/events"
	"github.com/purplix/backend/internal/purplix/geoip"
	httpapi "github.com/purplix/backend/internal/purplix/http"
	"github.com/purplix/backend/internal/purplix/notify"
	"github.com/purplix/backend/internal/purplix/objectstore"
	"github.com/purplix/backend/internal/purplix/service"
	"github.com/purplix/backend/internal/purplix/store/drivers/sqlite"
	"github.com/purplix/backend/pkg/httpx"
	"github.com/purplix/backend/pkg/jwtx"
	"github.com/purplix/backend/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags.
var BuildVersion = "v0.1.0"

const (
	dohTimeout  = 10 * time.Second
	eventBuffer = 16
)

// Application owns every long-lived dependency of the service.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         *sqlite.Store
	cache      cache.Cache
	keyManager *jwtx.KeyManager
	notifier   *notify.Notifier

	sessionService      *service.SessionService
	otpService          *service.OTPService
	accountService      *service.AccountService
	canaryService       *service.CanaryService
	surveyService       *service.SurveyService
	housekeepingService *service.HousekeepingService
	scheduler           *service.Scheduler

	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "purplix",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// New creates an Application with all dependencies initialized.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{cfg: cfg, logger: NewLogger(cfg)}

	db, err := OpenDatabase(cfg, app.logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	if err := app.initCache(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	km, err := InitSessionKeys(ctx, cfg, db, app.logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keyManager = km

	if err := app.initServices(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// OpenDatabase opens the SQLite store and applies pending migrations.
func OpenDatabase(cfg Config, logger *slog.Logger) (*sqlite.Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	logger.Info("database migrations applied", "file", cfg.DatabaseFile)
	return db, nil
}

// Purge runs one housekeeping pass against the configured database.
func Purge(ctx context.Context, cfg Config) (map[string]int64, error) {
	logger := NewLogger(cfg)
	db, err := OpenDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	hk := service.NewHousekeepingService(db, logger, cfg.HousekeepingInterval)
	return hk.Purge(ctx), nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.scheduler.Start()

	app.logger.Info("purplix starting", "addr", app.cfg.Addr, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains HTTP, stops the workers, waits for in-flight
// notifications, wipes the revocation cache and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down purplix...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.scheduler.Stop()
	app.housekeepingService.Stop()
	app.surveyService.Wait()
	app.notifier.Wait()

	if err := app.cache.DeleteAll(ctx); err != nil {
		app.logger.Error("error clearing session cache", "error", err)
	}
	if c, ok := app.cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			app.logger.Error("error closing session cache", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("purplix stopped")
	return nil
}

func (app *Application) initCache(ctx context.Context) error {
	if app.cfg.RedisURL == "" {
		app.cache = cache.NewMemory()
		app.logger.Info("using in-process session cache")
		return nil
	}

	r, err := cache.NewRedis(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to configure redis: %w", err)
	}
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return fmt.Errorf("failed to reach redis: %w", err)
	}
	app.cache = r
	app.logger.Info("using redis session cache")
	return nil
}

func (app *Application) initServices(ctx context.Context) error {
	cfg := app.cfg

	app.notifier = &notify.Notifier{}
	if cfg.SMTPHost != "" {
		app.notifier.Mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		app.logger.Warn("smtp not configured, email notifications disabled")
	}
	if cfg.NtfyURL != "" {
		app.notifier.Pusher = notify.NewNtfy(cfg.NtfyURL)
	}
	webhooks, err := notify.NewSafeClient(cfg.WebhookProxy)
	if err != nil {
		return fmt.Errorf("failed to build webhook client: %w", err)
	}
	app.notifier.Poster = webhooks

	captchas := captcha.New(captcha.Config{
		URL:     cfg.CaptchaURL,
		SiteKey: cfg.CaptchaSiteKey,
		Secret:  cfg.CaptchaSecret,
	})

	var geo service.GeoLocator
	if g := geoip.New(geoip.Config{URL: cfg.ProxyCheckURL, APIKey: cfg.ProxyCheckKey}); g.Enabled() {
		geo = g
	}

	var objects service.ObjectStore
	if cfg.S3Bucket != "" {
		s3, err := objectstore.NewS3(ctx, objectstore.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Folder:          cfg.S3Folder,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return err
		}
		objects = s3
	} else {
		app.logger.Warn("s3 not configured, logo uploads disabled")
	}

	app.sessionService = &service.SessionService{
		Store:    app.db,
		Cache:    app.cache,
		Tokens:   app.keyManager,
		CacheTTL: cfg.SessionCacheTTL,
	}
	app.otpService = &service.OTPService{
		Store:    app.db,
		Sessions: app.sessionService,
		Issuer:   "purplix",
	}
	app.accountService = &service.AccountService{
		Store:                app.db,
		OTP:                  app.otpService,
		Sessions:             app.sessionService,
		Captcha:              captchas,
		Geo:                  geo,
		Notifier:             app.notifier,
		Webhooks:             webhooks,
		SessionDays:          cfg.SessionDays,
		RegistrationDisabled: cfg.RegistrationDisabled,
		FrontendURL:          cfg.FrontendURL,
	}
	app.canaryService = &service.CanaryService{
		Store:        app.db,
		OTP:          app.otpService,
		DNS:          doh.New(cfg.DoHURL, dohTimeout),
		Objects:      objects,
		Notifier:     app.notifier,
		VerifyPrefix: cfg.VerifyPrefix,
		LogoMaxSize:  cfg.LogoMaxSize,
	}
	app.surveyService = &service.SurveyService{
		Store:    app.db,
		Sessions: app.sessionService,
		Captcha:  captchas,
		Geo:      geo,
		Notifier: app.notifier,
		Events:   events.NewHub[domain.SubmissionEvent](eventBuffer),
	}

	app.housekeepingService = service.NewHousekeepingService(app.db, app.logger, cfg.HousekeepingInterval)
	app.scheduler = service.NewScheduler(app.canaryService, app.notifier, app.logger)
	return nil
}

func (app *Application) initHTTP() {
	httpx.GlobalLimit = httpx.ParseRateLimitFromEnv("GLOBAL", httpx.GlobalLimit)
	httpx.StrictLimit = httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit)
	httpx.ModerateLimit = httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		BuildVersion:      BuildVersion,
		Store:             app.db,
		Cache:             app.cache,
		Signer:            app.keyManager,
		Logger:            app.logger,
		TrustProxyHeaders: app.cfg.TrustProxyHeaders,
		SecureCookies:     app.cfg.SecureCookies(),
	})
	router.AccountService = app.accountService
	router.SessionService = app.sessionService
	router.OTPService = app.otpService
	router.CanaryService = app.canaryService
	router.SurveyService = app.surveyService
	router.ApplyRoutes()
	app.router = router

	// No WriteTimeout: survey event streams stay open.
	app.server = &http.Server{
		Addr:              app.cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

// Handler exposes the HTTP handler, mostly for tests.
func (app *Application) Handler() http.Handler { return app.router }
