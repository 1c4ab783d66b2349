package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/joez89/autism-center-api/internal/config"
	"github.com/joez89/autism-center-api/internal/email"
	"github.com/joez89/autism-center-api/internal/repository/postgres"
	eventService "github.com/joez89/autism-center-api/internal/service/event"
	meetingService "github.com/joez89/autism-center-api/internal/service/meeting"
	notificationService "github.com/joez89/autism-center-api/internal/service/notification"
	internalWorker "github.com/joez89/autism-center-api/internal/worker"
	"github.com/joez89/autism-center-api/pkg/logger"
	messagingRedis "github.com/joez89/autism-center-api/pkg/messaging/redis"
	"github.com/joez89/autism-center-api/pkg/metrics"
	"github.com/joez89/autism-center-api/pkg/worker"
	"github.com/joez89/autism-center-api/pkg/zoom"
)

// WorkerEnv carries deployment-level tuning that overrides the config
// file, set per environment without editing config.yaml.
type WorkerEnv struct {
	OutboxBatchSize int           `envconfig:"OUTBOX_BATCH_SIZE"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL"`
	HealthPort      string        `envconfig:"HEALTH_PORT" default:"8081"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	var env WorkerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		log.Fatal().Err(err).Msg("Failed to process environment")
	}
	if env.OutboxBatchSize > 0 {
		cfg.Outbox.BatchSize = env.OutboxBatchSize
	}
	if env.SweepInterval > 0 {
		cfg.Scheduling.SweepInterval = env.SweepInterval
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	broker, err := messagingRedis.NewRedisBroker(messagingRedis.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		appLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	appointmentRepo := postgres.NewAppointmentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.New("scheduling_worker")

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			MaxRetries:   cfg.Outbox.MaxRetries,
			RetryDelay:   cfg.Outbox.RetryDelay,
		},
		appLogger,
		m,
	)

	meetingSvc := meetingService.NewService(
		zoom.NewClient(zoom.Config{
			BaseURL:      cfg.Zoom.BaseURL,
			AccountID:    cfg.Zoom.AccountID,
			ClientID:     cfg.Zoom.ClientID,
			ClientSecret: cfg.Zoom.ClientSecret,
			Timeout:      cfg.Zoom.Timeout,
		}),
		appointmentRepo,
		appLogger,
		m,
	)

	sweeper := internalWorker.NewSweepWorker(
		appointmentRepo,
		meetingSvc,
		eventService.NewService(outboxRepo),
		cfg.Scheduling.SweepInterval,
		cfg.Scheduling.SweepGrace,
		appLogger,
		m,
	)

	notifier := notificationService.NewService(
		broker,
		email.NewSMTPService(cfg.SMTP),
		cfg.SMTP.NotifyTo,
		appLogger,
	)

	setupHealthCheck(appLogger, env.HealthPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Shutting down...")
		cancel()
	}()

	go sweeper.Start(ctx)
	go func() {
		if err := notifier.Start(ctx); err != nil {
			appLogger.Error(err, "Notification consumer stopped")
		}
	}()

	processor.Start(ctx)
}

func setupHealthCheck(logger *logger.Logger, port string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			logger.ZL.Error().Err(err).Msg("Health check server failed")
			os.Exit(1)
		}
	}()
}
