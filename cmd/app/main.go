package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fittrack/internal/booking"
	"fittrack/internal/capacity"
	"fittrack/internal/config"
	"fittrack/internal/db"
	"fittrack/internal/email"
	"fittrack/internal/events"
	"fittrack/internal/gym"
	"fittrack/internal/logger"
	"fittrack/internal/membership"
	"fittrack/internal/server"
	"fittrack/internal/user"
	"fittrack/internal/wallet"

	"github.com/redis/go-redis/v9"
)

// @title FitTrack API
// @version 1.0
// @description Gym class booking with memberships, weekly quotas and seat capacity.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	logger.Info("starting FitTrack")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("failed to run migrations: %v", err)
	}
	logger.Info("migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable, emails will queue once it is", "addr", cfg.RedisAddr, "error", err)
	}

	mail := email.New(rdb, email.Config{
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
		SMTPHost: cfg.SMTPHost,
		SMTPPort: cfg.SMTPPort,
		SMTPUser: cfg.SMTPUser,
		SMTPPass: cfg.SMTPPass,
	})

	userRepo := user.NewRepository(database)
	gymRepo := gym.NewRepository(database)
	membershipRepo := membership.NewRepository(database)
	tx := db.NewTxRunner(database)

	var publisher events.Publisher = events.NopPublisher{}
	var consumer *events.Consumer
	if cfg.RabbitMQURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("failed to connect to broker", "error", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		consumer = events.NewConsumer(cfg.RabbitMQURL, email.NewNotifier(mail, user.NewRecipients(userRepo)))
	} else {
		logger.Info("RABBITMQ_URL not set, booking events are not published")
	}

	lifecycle := membership.NewLifecycle(membershipRepo, cfg.WeekLocation, nil)
	ledger := capacity.NewLedger(capacity.NewStore())

	gymService := gym.NewService(gymRepo)
	walletService := wallet.NewService(wallet.NewRepository(database), tx)
	membershipService := membership.NewService(membershipRepo, lifecycle, tx, walletService, gymService)
	bookingService := booking.NewService(booking.NewRepository(database), gymRepo, lifecycle, ledger, tx, publisher)

	srv := server.New(cfg, server.Handlers{
		User:       user.NewHandler(user.NewService(userRepo, cfg.JWTSecret)),
		Gym:        gym.NewHandler(gymService),
		Membership: membership.NewHandler(membershipService),
		Booking:    booking.NewHandler(bookingService),
		Wallet:     wallet.NewHandler(walletService),
	}, map[string]server.HealthCheck{
		"database": database.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}, mail)

	var workers sync.WaitGroup
	run := func(fn func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			fn(ctx)
		}()
	}
	run(mail.Start)
	run(membership.NewSweeper(membershipService, cfg.MembershipSweepInterval).Start)
	if consumer != nil {
		run(consumer.Run)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	logger.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("background workers did not stop in time")
	}

	logger.Info("server stopped")
}
