package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/cache"
	"github.com/fjod/pos_cart/cart-service/internal/calc"
	"github.com/fjod/pos_cart/cart-service/internal/config"
	"github.com/fjod/pos_cart/cart-service/internal/delivery"
	carthttp "github.com/fjod/pos_cart/cart-service/internal/http"
	"github.com/fjod/pos_cart/cart-service/internal/master"
	"github.com/fjod/pos_cart/cart-service/internal/payment"
	"github.com/fjod/pos_cart/cart-service/internal/poller"
	"github.com/fjod/pos_cart/cart-service/internal/recovery"
	"github.com/fjod/pos_cart/cart-service/internal/repository"
	"github.com/fjod/pos_cart/cart-service/internal/service"
	"github.com/fjod/pos_cart/cart-service/internal/tranlog"
	"github.com/fjod/pos_cart/pkg/circuitbreaker"
	"github.com/fjod/pos_cart/pkg/logger"
	"github.com/fjod/pos_cart/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.App.Name, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer l.Sync() //nolint:errcheck

	if err := run(cfg, l); err != nil {
		l.Fatal("cart service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, l *zap.Logger) error {
	var wg sync.WaitGroup
	ctx := context.Background()
	m := metrics.New("cart", prometheus.DefaultRegisterer)

	// MongoDB: carts, counters, transaction logs
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background()) //nolint:errcheck
	if err := repository.CreateIndexes(ctx, mongoDB); err != nil {
		return err
	}
	l.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	// Redis: cart and terminal caches
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	// PostgreSQL: delivery ledger
	creds := &delivery.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
	ledger, err := delivery.NewPostgresRepository(creds)
	if err != nil {
		return err
	}
	defer ledger.Close()
	if err := ledger.RunMigrations(creds); err != nil {
		return err
	}
	l.Info("delivery ledger migrations completed")

	// Kafka publish path guarded by one breaker
	bus := tranlog.NewKafkaBus(cfg.Kafka.TranlogTopic, cfg.Kafka.Brokers...)
	defer bus.Close()
	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:             "tranlog",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		CoolDown:         cfg.Breaker.CoolDown,
		OnStateChange: func(name, from, to string) {
			l.Warn("circuit breaker state changed", zap.String("name", name), zap.String("from", from), zap.String("to", to))
			m.ObserveBreaker(name, from, to)
		},
	})
	publisher := tranlog.NewPublisher(repository.NewTranlogRepository(mongoDB), ledger, bus, breaker,
		tranlog.Config{Consumers: cfg.Delivery.Consumers, PublishTimeout: cfg.Delivery.PublishTimeout}, m, l)

	discountRounding, err := calc.ParseRoundMethod(cfg.Calc.DiscountRounding)
	if err != nil {
		return fmt.Errorf("DISCOUNT_ROUND_METHOD: %w", err)
	}
	taxRounding, err := calc.ParseRoundMethod(cfg.Calc.TaxRounding)
	if err != nil {
		return fmt.Errorf("TAX_ROUND_METHOD: %w", err)
	}
	masterClient := master.NewClient(cfg.MasterData.BaseURL, cfg.MasterData.Timeout)
	terminals := master.NewCachedTerminals(masterClient,
		cache.NewRedisTerminalCache(redisClient, cfg.Redis.TerminalTTL), l)

	carts := service.NewCartService(service.Deps{
		Carts:     repository.NewCartRepository(mongoDB),
		Counters:  repository.NewCounterRepository(mongoDB),
		Cache:     cache.NewRedisCartCache(redisClient, cfg.Redis.CartTTL),
		Items:     masterClient,
		Payments:  masterClient,
		Taxes:     masterClient,
		Settings:  masterClient,
		Terminals: terminals,
		Methods:   payment.NewDefaultRegistry(),
		Finalizer: publisher,
		Metrics:   m,
		Logger:    l,
	}, calc.Policy{
		CurrencyDigits:   cfg.Calc.CurrencyDigits,
		DiscountRounding: discountRounding,
		TaxRounding:      taxRounding,
	})
	deliveries := service.NewDeliveryService(ledger, m, l)

	// Background workers: recovery sweep and acknowledgement consumer
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	sweeper := recovery.NewSweeper(ledger, publisher, recovery.Config{
		Interval:  cfg.Recovery.Interval,
		Lookback:  cfg.Recovery.Lookback,
		MinAge:    cfg.Recovery.MinAge,
		Retention: cfg.Recovery.Retention,
		BatchSize: cfg.Recovery.BatchSize,
	}, m, l)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(workersCtx)
	}()

	ackPoller := poller.NewPoller(deliveries, l, cfg.Kafka.AckTopic, cfg.Kafka.AckGroupID, cfg.Kafka.Brokers...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ackPoller.Run(workersCtx)
	}()

	// HTTP API
	healthChecks := map[string]func(*http.Request) error{
		"mongo":    func(r *http.Request) error { return mongoDB.Client().Ping(r.Context(), nil) },
		"redis":    func(r *http.Request) error { return redisClient.Ping(r.Context()).Err() },
		"postgres": func(r *http.Request) error { return ledger.Ping(r.Context()) },
	}
	router := carthttp.NewRouter(
		carthttp.RouterConfig{RequestTimeout: cfg.App.RequestTimeout, MaxRequestBodySize: 1 << 20},
		carthttp.NewCartHandler(carts, cfg.App.RequestTimeout, l),
		carthttp.NewDeliveryHandler(deliveries, sweeper, cfg.App.RequestTimeout, l),
		carthttp.HealthHandler(healthChecks),
		m, l)
	srv := &http.Server{
		Addr:         ":" + cfg.App.HTTPPort,
		Handler:      otelhttp.NewHandler(router, cfg.App.Name),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		l.Info("cart service listening", zap.String("port", cfg.App.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("http server error", zap.Error(err))
		}
	}()

	// gRPC health endpoint for orchestrators
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.App.HealthPort))
	if err != nil {
		return fmt.Errorf("listen health port: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(cfg.App.Name, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			l.Error("grpc health server stopped", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down cart service")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	stopWorkers()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		l.Info("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		l.Warn("background workers did not stop in time")
	}

	ackPoller.Close()
	l.Info("cart service stopped")
	return nil
}
