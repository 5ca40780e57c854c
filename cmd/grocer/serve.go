package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/flicky/grocer/internal/cart"
	"github.com/flicky/grocer/internal/handler"
	"github.com/flicky/grocer/internal/metrics"
	"github.com/flicky/grocer/internal/middleware"
	"github.com/flicky/grocer/internal/repository"
	"github.com/flicky/grocer/internal/seed"
	"github.com/flicky/grocer/internal/service"
	"github.com/flicky/grocer/internal/telemetry"
	"github.com/flicky/grocer/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the order event worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := boot()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("shutdown tracing", "error", err)
		}
	}()

	// PostgreSQL
	dbPool, err := connectDB(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	log.Info("connected to PostgreSQL")

	if err := migrate(ctx, dbPool, log); err != nil {
		return err
	}

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	defer amqpConn.Close()

	publishCh, err := amqpConn.Channel()
	if err != nil {
		return fmt.Errorf("open RabbitMQ channel: %w", err)
	}
	defer publishCh.Close()

	if err := worker.SetupRabbitMQ(publishCh); err != nil {
		return fmt.Errorf("setup RabbitMQ: %w", err)
	}

	consumeCh, err := amqpConn.Channel()
	if err != nil {
		return fmt.Errorf("open RabbitMQ consumer channel: %w", err)
	}
	defer consumeCh.Close()
	if err := consumeCh.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	reviewRepo := repository.NewReviewRepository(dbPool)

	if cfg.SeedOnStart {
		if _, err := seed.Products(ctx, productRepo, log); err != nil {
			return err
		}
	}

	// Services
	carts := cart.NewRedisStore(redisClient, cfg.Session.CartTTL)
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, redisClient)
	cartSvc := service.NewCartService(productRepo)
	reviewSvc := service.NewReviewService(reviewRepo)
	orderSvc := service.NewOrderService(orderRepo, userRepo, worker.NewPublisher(publishCh), log)

	// Worker
	orderWorker := worker.NewOrderEventWorker(consumeCh, productSvc, redisClient, log)
	if err := orderWorker.Start(ctx); err != nil {
		return fmt.Errorf("start order worker: %w", err)
	}

	// Router
	gin.SetMode(gin.ReleaseMode)
	router := &handler.Router{
		Auth:    handler.NewAuthHandler(authSvc),
		Product: handler.NewProductHandler(productSvc, reviewSvc),
		Review:  handler.NewReviewHandler(reviewSvc),
		Cart:    handler.NewCartHandler(cartSvc, carts),
		Order:   handler.NewOrderHandler(orderSvc, carts),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": dbPool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			"rabbitmq": func(context.Context) error {
				if amqpConn.IsClosed() {
					return amqp.ErrClosed
				}
				return nil
			},
		}),
		JWTSecret:   cfg.JWT.Secret,
		Session:     cfg.Session,
		AuthLimiter: middleware.NewIPRateLimiter(cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst),
		ServiceName: cfg.Telemetry.ServiceName,
		Metrics:     metrics.Handler(),
		Log:         log,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("server error", "error", err)
	}

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	orderWorker.Stop()
	cancel()
	log.Info("server stopped")
	return nil
}
