package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/itsaddyon/MediBridge/internal/config"
	"github.com/itsaddyon/MediBridge/internal/domain/account"
	"github.com/itsaddyon/MediBridge/internal/domain/activitylog"
	"github.com/itsaddyon/MediBridge/internal/domain/bedstatus"
	"github.com/itsaddyon/MediBridge/internal/domain/facility"
	"github.com/itsaddyon/MediBridge/internal/domain/patient"
	"github.com/itsaddyon/MediBridge/internal/domain/referral"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
	"github.com/itsaddyon/MediBridge/internal/platform/auth"
	"github.com/itsaddyon/MediBridge/internal/platform/db"
	"github.com/itsaddyon/MediBridge/internal/platform/events"
	"github.com/itsaddyon/MediBridge/internal/platform/localstore"
	"github.com/itsaddyon/MediBridge/internal/platform/metrics"
	"github.com/itsaddyon/MediBridge/internal/platform/middleware"
	"github.com/itsaddyon/MediBridge/internal/platform/webhook"
	"github.com/itsaddyon/MediBridge/internal/platform/websocket"
)

const (
	// referralTopic is the hub topic carrying referral lifecycle events.
	referralTopic = "referrals"

	facilityRefreshInterval = 15 * time.Minute
	shutdownTimeout         = 10 * time.Second
)

// syncedKeys are relayed to websocket subscribers in local mode. Accounts
// and the activity log never leave the server.
var syncedKeys = []string{
	localstore.KeyPatients,
	localstore.KeyReferrals,
	localstore.KeyHospitals,
}

// repositories is the persistence adapter chosen at startup. Exactly one of
// pool and store is set.
type repositories struct {
	users     account.UserRepository
	patients  patient.Repository
	referrals referral.Repository
	beds      bedstatus.Repository
	activity  activitylog.Repository

	pool  *pgxpool.Pool
	store localstore.Store
}

func pgRepositories(pool *pgxpool.Pool) repositories {
	return repositories{
		users:     account.NewUserRepo(pool),
		patients:  patient.NewRepo(pool),
		referrals: referral.NewRepo(pool),
		beds:      bedstatus.NewRepo(pool),
		activity:  activitylog.NewRepo(pool),
		pool:      pool,
	}
}

func localRepositories(store localstore.Store) repositories {
	return repositories{
		users:     account.NewLocalUserRepo(store),
		patients:  patient.NewLocalRepo(store),
		referrals: referral.NewLocalRepo(store),
		beds:      bedstatus.NewLocalRepo(store),
		activity:  activitylog.NewLocalRepo(store),
		store:     store,
	}
}

// openRepositories connects to PostgreSQL when DATABASE_URL is set and
// otherwise opens the local store.
func openRepositories(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repositories, func(), error) {
	if cfg.LocalMode() {
		if cfg.LocalStoreDir == "" {
			logger.Warn().Msg("no DATABASE_URL or LOCAL_STORE_DIR; records are kept in memory only")
			return localRepositories(localstore.NewMemoryStore()), func() {}, nil
		}
		store, err := localstore.NewFileStore(cfg.LocalStoreDir)
		if err != nil {
			return repositories{}, nil, fmt.Errorf("open local store: %w", err)
		}
		logger.Info().Str("dir", cfg.LocalStoreDir).Msg("running in local mode")
		return localRepositories(store), func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return repositories{}, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("connected to database")
	return pgRepositories(pool), pool.Close, nil
}

// app is the assembled server: routes plus the background pieces that need
// stopping on shutdown.
type app struct {
	echo      *echo.Echo
	hub       *websocket.Hub
	publisher *events.Queue
	logger    zerolog.Logger

	stopWatch func()
	stopRelay func()
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, repos repositories, accountOpts ...account.Option) (*app, error) {
	collector := metrics.NewCollector("medibridge")
	hub := websocket.NewHub(logger)

	// Events
	fanout := events.NewFanout(logger, collector).
		Add("websocket", events.NewHubPublisher(hub, referralTopic))
	if len(cfg.KafkaBrokers) > 0 {
		fanout.Add("kafka", events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaReferralTopic))
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaReferralTopic).Msg("publishing referral events to kafka")
	}
	if cfg.WebhookURL != "" {
		hook, err := webhook.NewPublisher(cfg.WebhookURL, cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
		fanout.Add("webhook", hook)
	}
	publisher := events.NewQueue(fanout, logger, collector)

	a := &app{
		hub:       hub,
		publisher: publisher,
		logger:    logger,
		stopWatch: func() {},
		stopRelay: func() {},
	}

	if repos.store != nil {
		cancels := []func(){hub.Relay(repos.store, syncedKeys...)}
		for _, key := range append(syncedKeys, localstore.KeyUsers, localstore.KeyActivity) {
			cancels = append(cancels, repos.store.Subscribe(key, func(c localstore.Change) {
				collector.LocalStoreWrite(c.Key, string(c.Op))
			}))
		}
		a.stopRelay = func() {
			for _, cancel := range cancels {
				cancel()
			}
		}
	}

	// Services
	tokens := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.TokenTTL)
	accounts := account.NewService(repos.users, tokens, logger, collector, accountOpts...)
	patients := patient.NewService(repos.patients, repos.referrals, logger, collector)
	referrals := referral.NewService(repos.referrals, patients, publisher, logger, collector)
	beds := bedstatus.NewService(repos.beds, logger)
	activityLog := activitylog.NewService(repos.activity, repos.users, logger)

	if cfg.DemoMode {
		u, created, err := accounts.EnsureAccount(ctx, cfg.DemoClinicIdentifier, cfg.DemoClinicPassword, account.DemoClinicName, auth.RoleClinic)
		if err != nil {
			a.stopRelay()
			_ = publisher.Close()
			return nil, fmt.Errorf("provision demo clinic: %w", err)
		}
		logger.Info().Str("user_id", u.ID.String()).Bool("created", created).Msg("demo clinic account ready")
	}

	directory := facility.NewDirectory(facility.NewSource(cfg.FacilitySource, nil), cfg.FacilityFetchTimeout, logger, collector)
	if err := directory.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("facility source unavailable at startup")
	}
	if cfg.FacilitySource != "" {
		watchCtx, cancel := context.WithCancel(context.Background())
		go directory.Watch(watchCtx, facilityRefreshInterval)
		a.stopWatch = cancel
	}

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(collector))
	e.Use(middleware.Activity(logger, activityLog))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"ok":  true,
			"now": time.Now().UTC(),
		})
	})
	if repos.pool != nil {
		e.GET("/health/db", db.HealthHandler(repos.pool))
	}
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))

	// API groups
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	authLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.AuthRateLimitRPS,
		BurstSize:         cfg.AuthRateLimitBurst,
	}
	if authLimitCfg.RequestsPerSecond <= 0 || authLimitCfg.BurstSize <= 0 {
		authLimitCfg = rateLimitCfg
	}

	api := e.Group("/api", middleware.RateLimit(rateLimitCfg))
	authPublic := api.Group("", middleware.RateLimit(authLimitCfg))
	protected := api.Group("", auth.JWTMiddleware(tokens))
	admin := protected.Group("/admin", auth.RequireRole(auth.RoleAdmin))

	accountHandler := account.NewHandler(accounts, cfg.DemoMode)
	accountHandler.RegisterRoutes(authPublic, protected)
	accountHandler.RegisterAdminRoutes(admin)
	activitylog.NewHandler(activityLog).RegisterRoutes(admin)
	patient.NewHandler(patients).RegisterRoutes(protected)
	referral.NewHandler(referrals, logger, cfg.DemoMode).RegisterRoutes(api, protected)
	facility.NewHandler(directory).RegisterRoutes(api)
	bedstatus.NewHandler(beds).RegisterRoutes(protected)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(api)

	a.echo = e
	return a, nil
}

// Close stops background work. The HTTP server is shut down separately.
func (a *app) Close() {
	a.stopWatch()
	a.stopRelay()
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing event publishers")
	}
	a.hub.Close()
}

func runServer(migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	repos, closeRepos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}
	defer closeRepos()

	if migrate && repos.pool != nil {
		count, err := db.NewMigrator(repos.pool, migrationSource(cfg.MigrationsDir)).Up(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Int("applied", count).Msg("migrations up to date")
	}

	a, err := buildApp(ctx, cfg, logger, repos)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer a.Close()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("local_mode", cfg.LocalMode()).Bool("demo_mode", cfg.DemoMode).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
