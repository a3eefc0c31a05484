package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"soc-portal/internal/alert"
	"soc-portal/internal/audit"
	audithandler "soc-portal/internal/audit/handler"
	auditrepo "soc-portal/internal/audit/repository"
	authhandler "soc-portal/internal/auth/handler"
	"soc-portal/internal/auth/service"
	"soc-portal/internal/authgate"
	"soc-portal/internal/config"
	"soc-portal/internal/db"
	downtimehandler "soc-portal/internal/downtime/handler"
	healthhandler "soc-portal/internal/health/handler"
	identityrepo "soc-portal/internal/identity/repository"
	"soc-portal/internal/logging"
	notifhandler "soc-portal/internal/notification/handler"
	notifrepo "soc-portal/internal/notification/repository"
	"soc-portal/internal/policy/engine"
	policyrepo "soc-portal/internal/policy/repository"
	"soc-portal/internal/profile"
	profilehandler "soc-portal/internal/profile/handler"
	rosterhandler "soc-portal/internal/roster/handler"
	"soc-portal/internal/security"
	"soc-portal/internal/server"
	"soc-portal/internal/session"
	"soc-portal/internal/telemetry"
	telemetryotel "soc-portal/internal/telemetry/otel"
	"soc-portal/internal/telemetry/producer"
	userhandler "soc-portal/internal/user/handler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.OTelServiceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()
	if cfg.DatabaseDriver == "sqlite" {
		if err := db.ApplySchema(ctx, conn); err != nil {
			return fmt.Errorf("db schema: %w", err)
		}
	}

	signer, ephemeral, err := security.LoadSessionSigner(cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL())
	if err != nil {
		return fmt.Errorf("session signer: %w", err)
	}
	if ephemeral {
		logger.Warn("JWT keys not configured; using an ephemeral signing key, sessions will not survive a restart")
	}

	identities := identityrepo.NewPostgresRepository(conn)
	activities := auditrepo.NewPostgresRepository(conn)
	notifications := notifrepo.NewPostgresRepository(conn)
	policies := policyrepo.NewPostgresRepository(conn)

	emitters := telemetry.MultiEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafka, err := producer.NewKafkaProducer(brokers, cfg.ActivityKafkaTopic)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn("kafka producer close", zap.Error(err))
			}
		}()
		emitters = append(emitters, kafka)
		logger.Info("activity stream enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.ActivityKafkaTopic))
	}
	events := telemetry.NewQueue(emitters, telemetry.DefaultQueueSize, logger.Named("telemetry"))
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := events.Close(drainCtx); err != nil {
			logger.Warn("activity events not drained", zap.Int64("dropped", events.Dropped()), zap.Error(err))
		}
	}()
	auditLog := audit.NewLogger(activities, events, logger.Named("audit"))

	var alerts alert.Notifier = alert.Nop{}
	if cfg.TelegramEnabled() {
		alerts = alert.NewAsync(alert.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.TelegramBaseURL), logger.Named("alert"))
	}

	var cache authgate.CheckCache = authgate.NewMemoryCache(cfg.CheckCacheTTL())
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		cache = authgate.NewRedisCache(rdb, "", cfg.CheckCacheTTL(), func(err error) {
			logger.Warn("check cache unavailable", zap.Error(err))
		})
	}

	gate := authgate.New(identities, cfg.SessionPolicy(),
		authgate.WithCache(cache),
		authgate.WithVerifier(signer),
		authgate.WithAudit(auditLog),
		authgate.WithAlerts(alerts),
		authgate.WithLogger(logger.Named("authgate")),
		authgate.WithMeter(providers.MeterProvider.Meter("soc-portal/authgate")),
	)

	evaluator, err := engine.NewOPAEvaluator(ctx, policies, logger.Named("policy"))
	if err != nil {
		return fmt.Errorf("policy engine: %w", err)
	}

	if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
		return fmt.Errorf("storage dir: %w", err)
	}
	photos := profile.NewOsPhotoStore(cfg.StorageDir)

	cookies := session.NewWriter(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite, cfg.TokenTTL())
	hasher := security.NewHasher(cfg.BcryptCost)
	authSvc := service.NewAuthService(identities, hasher, signer)

	router := server.NewRouter(server.Deps{
		Logger:        logger.Named("http"),
		Tracer:        providers.Tracer("soc-portal/http"),
		Gate:          gate,
		Cookies:       cookies,
		Policy:        evaluator,
		Health:        healthhandler.NewServer(conn, evaluator, logger.Named("health")),
		Auth:          authhandler.New(authSvc, gate, cookies, auditLog, alerts, logger.Named("auth")),
		Users:         userhandler.New(conn, hasher, cache, auditLog, alerts, logger.Named("users")),
		Activity:      audithandler.New(activities, logger.Named("activity")),
		Notifications: notifhandler.New(notifications, logger.Named("notifications")),
		Roster:        rosterhandler.New(conn, auditLog, alerts, logger.Named("roster")),
		Downtime:      downtimehandler.New(conn, auditLog, alerts, logger.Named("downtime")),
		Profile:       profilehandler.New(photos, identities, auditLog, logger.Named("profile")),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		policy := cfg.SessionPolicy()
		logger.Info("HTTP server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.Duration("session_timeout", policy.Timeout),
			zap.Duration("session_warning", policy.WarningAfter),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}
