package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/nekogravitycat/port-booking-backend/internal/app"
	"github.com/nekogravitycat/port-booking-backend/internal/config"
	"github.com/nekogravitycat/port-booking-backend/internal/db"
	"github.com/nekogravitycat/port-booking-backend/internal/logger"
	"github.com/nekogravitycat/port-booking-backend/internal/notify"
	"github.com/nekogravitycat/port-booking-backend/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.IsProduction, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		zl.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	container, err := app.NewContainer(ctx, app.Config{App: cfg, DBPool: pool, Logger: zl})
	if err != nil {
		zl.Fatal("failed to init container", zap.Error(err))
	}
	defer func() { _ = container.Close() }()

	handler := worker.NewHandler(container.Bookings, container.Refunds, zl.Named("worker"))

	// Expiry tasks always arrive through asynq, events only when it is the backend.
	srv := asynq.NewServer(app.RedisQueueOpt(cfg), asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{"default": 1},
		Logger:      zl.Named("asynq").Sugar(),
	})
	if err := srv.Start(worker.NewServeMux(handler)); err != nil {
		zl.Fatal("failed to start asynq server", zap.Error(err))
	}
	zl.Info("worker started", zap.String("notify_backend", cfg.NotifyBackend))

	if cfg.NotifyBackend == "amqp" {
		consumer, err := notify.NewAMQPConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, []string{"#"})
		if err != nil {
			zl.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer func() { _ = consumer.Close() }()

		go func() {
			if err := consumer.Run(ctx, handler.HandleEvent); err != nil {
				zl.Error("amqp consumer stopped", zap.Error(err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	zl.Info("shutdown signal received")
	srv.Shutdown()
	zl.Info("worker exited gracefully")
}
