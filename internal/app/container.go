package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nekogravitycat/port-booking-backend/internal/api"
	"github.com/nekogravitycat/port-booking-backend/internal/auth"
	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/cancellation"
	"github.com/nekogravitycat/port-booking-backend/internal/config"
	"github.com/nekogravitycat/port-booking-backend/internal/db"
	"github.com/nekogravitycat/port-booking-backend/internal/foodorder"
	"github.com/nekogravitycat/port-booking-backend/internal/notify"
	"github.com/nekogravitycat/port-booking-backend/internal/refund"
	"github.com/nekogravitycat/port-booking-backend/internal/station"
	"github.com/nekogravitycat/port-booking-backend/internal/throttle"
	"github.com/nekogravitycat/port-booking-backend/internal/user"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	App    *config.Config
	DBPool *pgxpool.Pool
	Logger *zap.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router   *gin.Engine
	Bookings booking.Service
	Refunds  refund.Service

	closers []func() error
}

// RedisQueueOpt points asynq at the queue database.
func RedisQueueOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	}
}

// NewContainer initializes all modules and returns the container.
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	c := &Container{}
	log := cfg.Logger

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.App.JWTSecret, cfg.App.JWTIssuer, cfg.App.JWTAccessTokenTTL)
	txManager := db.NewTxManager(cfg.DBPool, cfg.App.TxMaxRetries, log)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.App.RedisAddr,
		Password: cfg.App.RedisPassword,
		DB:       cfg.App.RedisThrottleDB,
	})
	c.closers = append(c.closers, redisClient.Close)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// Expiry jobs always go through asynq; events follow NotifyBackend.
	queue := notify.NewAsynqDispatcher(RedisQueueOpt(cfg.App))
	c.closers = append(c.closers, queue.Close)
	var events notify.Dispatcher = queue
	if cfg.App.NotifyBackend == "amqp" {
		pub, err := notify.NewAMQPPublisher(cfg.App.AMQPURL, cfg.App.AMQPExchange)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		c.closers = append(c.closers, pub.Close)
		events = pub
	}

	policy := booking.DefaultPolicy()
	policy.PlatformFee = cfg.App.PlatformFee
	policy.ExpiryGrace = cfg.App.ExpiryGrace

	// Station and User Modules
	stationService := station.NewService(station.NewPgxRepository(cfg.DBPool))
	userRepo := user.NewPgxRepository(cfg.DBPool)

	// Booking Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool)
	c.Bookings = booking.NewService(booking.Deps{
		Repo:     bookingRepo,
		Stations: stationService,
		Tx:       txManager,
		Events:   events,
		Expiry:   queue,
		Logger:   log.Named("booking"),
	}, policy)
	availability := booking.NewAvailabilityService(bookingRepo, stationService, policy, nil)

	// Refund Module
	refundRepo := refund.NewPgxRepository(cfg.DBPool)
	c.Refunds = refund.NewService(refundRepo, txManager, log.Named("refund"), nil)

	// Food Order Module
	orderRepo := foodorder.NewPgxRepository(cfg.DBPool)
	orders := foodorder.NewService(orderRepo, foodorder.NewMatcher(orderRepo), nil)

	// Cancellation Module
	cancellations := cancellation.NewService(cancellation.Deps{
		Bookings:   c.Bookings,
		Refunds:    refundRepo,
		FoodOrders: orders,
		Users:      userRepo,
		Throttle:   throttle.NewWindow(redisClient, 24*time.Hour),
		Events:     events,
		Logger:     log.Named("cancellation"),
	}, cfg.App.CancelLimitPerDay)

	// Router
	c.Router = api.NewRouter(api.Config{
		IsProduction:  cfg.App.IsProduction,
		ProdOrigins:   cfg.App.ProdOrigins,
		Logger:        log,
		JWTManager:    jwtManager,
		Users:         userRepo,
		Bookings:      c.Bookings,
		Availability:  availability,
		Cancellations: cancellations,
	})

	return c, nil
}

// Close releases the Redis and broker connections in reverse order.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}
