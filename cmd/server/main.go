package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/infrastructure/config"
	"seatwatch-service/internal/infrastructure/oauth"
	"seatwatch-service/internal/infrastructure/persistence"
	"seatwatch-service/internal/interface/httpapi"
	"seatwatch-service/internal/interface/mailer"
	"seatwatch-service/internal/interface/regiojet"
	"seatwatch-service/internal/interface/repository"
	"seatwatch-service/internal/usecase"
	"seatwatch-service/migrations"
	"seatwatch-service/pkg/logger"
	"seatwatch-service/pkg/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Create logger
	log := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	log.Info("Starting Seatwatch Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up PostgreSQL connection and apply migrations
	gormDB, err := persistence.NewPostgresDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", "error", err)
	}
	if err := migrations.Run(sqlDB); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, mongoDB, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	m := metrics.NewMetrics("seatwatch")

	// Set up repositories
	routeRepo := repository.NewGormRouteRepository(gormDB)
	userRepo := repository.NewGormUserRepository(gormDB)
	subscriptionRepo := repository.NewGormSubscriptionRepository(gormDB)
	taskRepo := repository.NewGormTaskRepository(gormDB)
	notificationLog := repository.NewMongoNotificationLogRepository(mongoDB)
	deadLetters := repository.NewMongoDeadLetterRepository(mongoDB)

	// Set up the seat availability checker
	checker := regiojet.NewChecker(&http.Client{}, cfg.ProviderBaseURL, cfg.BookingBaseURL, cfg.CheckerTimeout, cfg.CheckerRetries, log)

	// Set up Gmail OAuth
	gmailOAuth := oauth.NewGmailOAuth(
		cfg.GmailClientID,
		cfg.GmailClientSecret,
		cfg.GmailRefreshToken,
		log,
	)
	tokenSource := gmailOAuth.GetTokenSource(ctx)

	// Set up the Gmail sender
	sender, err := mailer.NewGmailSender(ctx, tokenSource, cfg.EmailFrom, cfg.EmailFromName, cfg.SendTimeout, log)
	if err != nil {
		log.Fatal("Failed to create Gmail sender", "error", err)
	}

	displayLocation, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		log.Fatal("Failed to load display timezone", "timezone", cfg.DisplayTimezone, "error", err)
	}

	// Set up use cases
	monitorService := usecase.NewMonitorService(routeRepo, userRepo, subscriptionRepo, checker, log)
	checkProcessor := usecase.NewCheckProcessor(routeRepo, taskRepo, checker, log, m, cfg.NotifyMaxAttempts, displayLocation)
	notifyProcessor := usecase.NewNotifyProcessor(sender, notificationLog, log, m)

	// Set up the task runner with one worker pool per task kind
	runner := usecase.NewTaskRunner(taskRepo, deadLetters, log, m, cfg.QueuePollInterval, cfg.TaskLease, cfg.RequeueInterval)
	runner.Register(entity.TaskKindRouteCheck, checkProcessor, usecase.RetryPolicy{
		Workers:   cfg.CheckWorkers,
		BaseDelay: cfg.CheckRetryBase,
		MaxDelay:  cfg.CheckRetryCap,
	})
	runner.Register(entity.TaskKindNotification, notifyProcessor, usecase.RetryPolicy{
		Workers:   cfg.NotifyWorkers,
		BaseDelay: cfg.NotifyRetryBase,
		MaxDelay:  cfg.NotifyRetryCap,
	})

	// Start the task runner in a goroutine
	go runner.Run(ctx)

	// Start the scheduler in a goroutine
	scheduler := usecase.NewScheduler(routeRepo, taskRepo, log, m, cfg.SchedulerTick, cfg.CheckInterval, cfg.ClaimBatchLimit, cfg.CheckMaxAttempts)
	go scheduler.Run(ctx)

	// Set up HTTP server
	router := mux.NewRouter()
	handler := httpapi.NewHandler(monitorService, log)
	httpapi.SetupRoutes(router, handler)
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop all goroutines

	// Disconnect from MongoDB
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Seatwatch Service stopped")
}
