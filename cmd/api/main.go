package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/nextlogic/remix-api/internal/config"
	"github.com/nextlogic/remix-api/internal/email"
	adminHandler "github.com/nextlogic/remix-api/internal/handler/admin"
	authHandler "github.com/nextlogic/remix-api/internal/handler/auth"
	contactHandler "github.com/nextlogic/remix-api/internal/handler/contact"
	courseHandler "github.com/nextlogic/remix-api/internal/handler/course"
	"github.com/nextlogic/remix-api/internal/handler/health"
	promhandler "github.com/nextlogic/remix-api/internal/handler/prometheus"
	remixHandler "github.com/nextlogic/remix-api/internal/handler/remix"
	subscriptionHandler "github.com/nextlogic/remix-api/internal/handler/subscription"
	"github.com/nextlogic/remix-api/internal/middleware"
	"github.com/nextlogic/remix-api/internal/repository/postgres"
	redisrepo "github.com/nextlogic/remix-api/internal/repository/redis"
	"github.com/nextlogic/remix-api/internal/router"
	adminService "github.com/nextlogic/remix-api/internal/service/admin"
	authService "github.com/nextlogic/remix-api/internal/service/auth"
	contactService "github.com/nextlogic/remix-api/internal/service/contact"
	courseService "github.com/nextlogic/remix-api/internal/service/course"
	"github.com/nextlogic/remix-api/internal/service/entitlement"
	"github.com/nextlogic/remix-api/internal/service/referral"
	"github.com/nextlogic/remix-api/internal/service/rewrite"
	subscriptionService "github.com/nextlogic/remix-api/internal/service/subscription"
	"github.com/nextlogic/remix-api/internal/service/usage"
	"github.com/nextlogic/remix-api/internal/worker"
	pkgauth "github.com/nextlogic/remix-api/pkg/auth"
	"github.com/nextlogic/remix-api/pkg/logger"
	"github.com/nextlogic/remix-api/pkg/metrics"
	"github.com/nextlogic/remix-api/pkg/security"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	log.Logger = appLogger.Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	rdb, err := redisrepo.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(cfg.Metrics.Namespace, "", registry)

	// Initialize repositories
	base := postgres.NewBaseRepository(db)
	accountRepo := postgres.NewAccountRepository(base)
	referralRepo := postgres.NewReferralRepository(base)
	cohortRepo := postgres.NewCohortRepository(base)
	usageRepo := postgres.NewUsageRepository(base)
	courseRepo := postgres.NewCourseRepository(base)
	contactRepo := postgres.NewContactRepository(base)
	guestQuota := redisrepo.NewGuestQuotaStore(rdb, cfg.Redis.KeyPrefix, cfg.Quota.FreeUses, cfg.Quota.GuestTTL)
	revocations := redisrepo.NewSessionRevocationStore(rdb, cfg.Redis.KeyPrefix)

	jwtSvc, err := pkgauth.NewJWTService(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sessions")
	}

	// Initialize services
	referralSvc := referral.NewService(accountRepo, referralRepo, referral.DefaultReward, appMetrics, appLogger)
	entitlementSvc := entitlement.NewService(accountRepo, cohortRepo, guestQuota, entitlement.Config{
		FreeUses:           cfg.Quota.FreeUses,
		PermissionCacheTTL: cfg.Quota.PermissionCacheTTL,
	}, appMetrics, appLogger)
	usageSvc := usage.NewService(usageRepo, appMetrics, appLogger)
	authSvc := authService.NewService(accountRepo, cohortRepo, referralSvc, revocations,
		security.NewBcryptHasher(bcrypt.DefaultCost), jwtSvc, cfg.Quota.FreeUses, appLogger)
	subscriptionSvc := subscriptionService.NewService(accountRepo, referralSvc,
		subscriptionService.NewStripeVerifier(cfg.Stripe.SecretKey),
		subscriptionService.Config{
			PremiumDuration: time.Duration(cfg.Stripe.PremiumDays) * 24 * time.Hour,
			WebhookSecret:   cfg.Stripe.WebhookSecret,
		}, appLogger)
	courseSvc := courseService.NewService(accountRepo, courseRepo, appLogger)
	contactSvc := contactService.NewService(contactRepo, appLogger)
	adminSvc := adminService.NewService(accountRepo, cohortRepo, usageSvc, entitlementSvc, appLogger)
	gateway := rewrite.NewGeminiGateway(rewrite.Config{
		BaseURL:         cfg.Gemini.BaseURL,
		Model:           cfg.Gemini.Model,
		APIKey:          cfg.Gemini.APIKey,
		Timeout:         cfg.Gemini.Timeout,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
	}, appMetrics, appLogger)

	if err := authSvc.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin account")
	}

	// Initialize handlers
	session := middleware.NewSessionMiddleware(authSvc, cfg.Session.CookieName)
	sessionCookie := middleware.CookieConfig{
		Name:   cfg.Session.CookieName,
		Domain: cfg.Session.CookieDomain,
		Secure: cfg.Session.Secure,
		MaxAge: cfg.Session.TTL,
	}
	guestCookie := middleware.CookieConfig{
		Name:   cfg.Session.GuestCookieName,
		Domain: cfg.Session.CookieDomain,
		Secure: cfg.Session.Secure,
		MaxAge: cfg.Quota.GuestTTL,
	}

	r := router.NewRouter(
		router.RouterConfig{
			RequestTimeout:   cfg.Server.RequestTimeout,
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RPS),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(cfg.CORS.AllowOrigins),
			Security:         middleware.SecurityConfig{HSTS: cfg.Session.Secure, HSTSMaxAge: 31536000},
			MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		},
		health.NewHandler(db, rdb),
		promhandler.New(cfg.Metrics.Namespace, registry),
		authHandler.NewHandler(authSvc, entitlementSvc, session, sessionCookie, guestCookie),
		remixHandler.NewHandler(entitlementSvc, gateway, usageSvc, session, guestCookie, remixHandler.Config{
			AllowGuests:     cfg.Remix.AllowGuests,
			MaxContentChars: cfg.Remix.MaxContentChars,
		}),
		subscriptionHandler.NewHandler(subscriptionSvc, session),
		courseHandler.NewHandler(courseSvc, session),
		contactHandler.NewHandler(contactSvc),
		adminHandler.NewHandler(adminSvc, session),
	)
	r.Setup()

	// Single-instance deployments can skip the separate worker
	if cfg.Mail.DispatchInProcess {
		mailer, err := email.NewMailer(ctx, cfg.Mail, appLogger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize mailer")
		}
		dispatcher := worker.NewMailDispatcher(contactRepo, mailer, worker.MailDispatcherConfig{
			BatchSize:    cfg.Mail.BatchSize,
			PollInterval: cfg.Mail.PollInterval,
			MaxAttempts:  cfg.Mail.MaxAttempts,
			From:         cfg.Mail.From,
			To:           cfg.Mail.To,
		}, appLogger, appMetrics)
		go dispatcher.Start(ctx)
	}

	// Create server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
