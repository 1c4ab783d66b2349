package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/joez89/autism-center-api/internal/config"
	appointmentHandler "github.com/joez89/autism-center-api/internal/handler/appointment"
	doctorHandler "github.com/joez89/autism-center-api/internal/handler/doctor"
	healthHandler "github.com/joez89/autism-center-api/internal/handler/health"
	"github.com/joez89/autism-center-api/internal/middleware"
	"github.com/joez89/autism-center-api/internal/repository/postgres"
	"github.com/joez89/autism-center-api/internal/router"
	eventService "github.com/joez89/autism-center-api/internal/service/event"
	meetingService "github.com/joez89/autism-center-api/internal/service/meeting"
	schedulingService "github.com/joez89/autism-center-api/internal/service/scheduling"
	slotService "github.com/joez89/autism-center-api/internal/service/slot"
	"github.com/joez89/autism-center-api/pkg/lock"
	"github.com/joez89/autism-center-api/pkg/logger"
	messagingRedis "github.com/joez89/autism-center-api/pkg/messaging/redis"
	"github.com/joez89/autism-center-api/pkg/metrics"
	"github.com/joez89/autism-center-api/pkg/zoom"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := messagingRedis.NewRedisBroker(messagingRedis.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()
	redisClient := broker.(*messagingRedis.RedisBroker).Client()

	doctorRepo := postgres.NewDoctorRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.New("scheduling")

	slotSvc := slotService.NewService(doctorRepo, appointmentRepo)
	eventSvc := eventService.NewService(outboxRepo)
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

	closedWeekdays := make([]time.Weekday, 0, len(cfg.Scheduling.ClosedWeekdays))
	for _, d := range cfg.Scheduling.ClosedWeekdays {
		closedWeekdays = append(closedWeekdays, time.Weekday(d))
	}

	schedulingSvc := schedulingService.NewService(
		doctorRepo,
		appointmentRepo,
		slotSvc,
		meetingSvc,
		eventSvc,
		lock.NewRedisDoctorLocker(redisClient, cfg.Redis.LockTTL),
		appLogger,
		m,
		schedulingService.Config{
			BusinessStart:  cfg.Scheduling.BusinessStart,
			BusinessEnd:    cfg.Scheduling.BusinessEnd,
			ClosedWeekdays: closedWeekdays,
		},
	)

	r := router.NewRouter(
		middleware.NewAuthMiddleware(cfg.JWT.Secret),
		healthHandler.NewHandler(db, redisClient),
		doctorHandler.NewHandler(doctorRepo, schedulingSvc),
		appointmentHandler.NewHandler(schedulingSvc),
		&appLogger.ZL,
		router.RouterConfig{
			RateLimitRPS:   float64(cfg.Server.RateLimitRPS),
			RateLimitBurst: cfg.Server.RateLimitBurst,
			Timeout:        time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			DoctorCacheTTL: time.Minute,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		appLogger.Info("Starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error(err, "forced shutdown")
	}
}
