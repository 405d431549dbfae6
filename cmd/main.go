package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"ppplay-api/internal/auth"
	"ppplay-api/internal/config"
	"ppplay-api/internal/contentfilter"
	"ppplay-api/internal/database"
	"ppplay-api/internal/events"
	"ppplay-api/internal/handlers"
	"ppplay-api/internal/jobs"
	"ppplay-api/internal/logger"
	"ppplay-api/internal/ratelimit"
	"ppplay-api/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Env)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize JWT
	auth.InitJWT(cfg.Auth.JWTSecret)

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if cfg.Database.MigrateOnStart {
		if cfg.Database.Driver == "postgres" {
			err = database.RunMigrations(cfg.GetDatabaseURL())
		} else {
			err = database.AutoMigrate(db)
		}
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Event bus
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Stream)
		if err := natsPublisher.Connect(ctx); err != nil {
			log.WithError(err).Warn("[Events] NATS unavailable, events will not be published")
		} else {
			defer natsPublisher.Close()
			publisher = natsPublisher
		}
	}

	// Rate limiting
	var limiter ratelimit.Limiter
	var dbLimiter *ratelimit.DBLimiter
	switch cfg.RateLimit.Store {
	case "database":
		dbLimiter = ratelimit.NewDBLimiter(db)
		limiter = dbLimiter
	default:
		memoryLimiter := ratelimit.NewMemoryLimiter(time.Minute)
		defer memoryLimiter.Close()
		limiter = memoryLimiter
	}
	createRule := ratelimit.Rule{Action: "market_create", Limit: cfg.RateLimit.MarketCreateLimit, Window: cfg.RateLimit.MarketCreateWindow}
	commentRule := ratelimit.Rule{Action: "comment", Limit: cfg.RateLimit.CommentLimit, Window: cfg.RateLimit.CommentWindow}
	ipLimiter := ratelimit.NewIPLimiter(cfg.Server.IPRateLimit, cfg.Server.IPRateBurst)

	// Initialize services
	loc := cfg.App.Location
	filter := contentfilter.New()
	ledgerService := services.NewLedgerService(db, cfg.Points)
	notificationService := services.NewNotificationService(db, publisher)
	resolutionService := services.NewMarketResolutionService(db, ledgerService, notificationService, publisher, cfg.Points)
	commentService := services.NewCommentService(db, filter, limiter, commentRule)
	marketService := services.NewMarketService(db, ledgerService, limiter, createRule, filter, publisher, cfg.Points)
	predictionService := services.NewPredictionService(db, ledgerService, publisher, cfg.Points, loc)

	svc := handlers.Services{
		Auth:          services.NewAuthService(db, ledgerService),
		Users:         services.NewUserService(db, ledgerService, filter, cfg.Points, loc),
		Ledger:        ledgerService,
		Markets:       marketService,
		Predictions:   predictionService,
		Attendance:    services.NewAttendanceService(db, ledgerService, notificationService, publisher, cfg.Points, loc),
		Leaderboard:   services.NewLeaderboardService(db, loc),
		Notifications: notificationService,
		Comments:      commentService,
		Admin:         services.NewAdminService(db, ledgerService, notificationService, resolutionService, commentService, publisher, cfg.Points),
		Export:        services.NewExportService(db, loc),
	}

	// Background jobs
	scheduler := jobs.NewScheduler(loc)
	scheduler.Add(jobs.DailyVoteReset(predictionService))
	scheduler.Add(jobs.MarketClosing(marketService))
	scheduler.Add(jobs.IPBucketEviction(ipLimiter, 30*time.Minute))
	if dbLimiter != nil {
		scheduler.Add(jobs.RateLimitPurge(dbLimiter))
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Catch up on markets that expired while the server was down
	if err := scheduler.RunNow(ctx, "close_expired_markets"); err != nil {
		log.WithError(err).Warn("[CRON] initial market close failed")
	}

	allowedOrigins := []string{
		"http://localhost:3000", // Local development
		"http://127.0.0.1:3000",
	}
	if cfg.Server.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.Server.FrontendURL)
	}

	router := handlers.NewRouter(svc, handlers.RouterConfig{
		Allowlist:      auth.NewAllowlist(cfg.Auth.AdminEmails),
		IPLimiter:      ipLimiter,
		AllowedOrigins: allowedOrigins,
		Location:       loc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
