package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_checkout/internal/cart"
	"github.com/fjod/go_checkout/internal/inventory"
	"github.com/fjod/go_checkout/internal/payment"
	"github.com/fjod/go_checkout/internal/publisher"
	"github.com/fjod/go_checkout/internal/repository"
	"github.com/fjod/go_checkout/internal/saga"
	transport "github.com/fjod/go_checkout/internal/transport/http"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Postgres repository.Credentials

	MongoURI string
	MongoDB  string

	RedisAddr string

	KafkaBrokers []string

	// When empty the service runs with in-process fakes, useful for local
	// development and demos.
	InventoryServiceAddr string
	PaymentServiceAddr   string
}

func loadConfig() *Config {
	pgPort, err := strconv.Atoi(getEnv("POSTGRES_PORT", "5432"))
	if err != nil {
		log.Fatalf("invalid POSTGRES_PORT: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Postgres: repository.Credentials{
			Host:              getEnv("POSTGRES_HOST", "localhost"),
			Port:              pgPort,
			User:              getEnv("POSTGRES_USER", "checkout"),
			Password:          getEnv("POSTGRES_PASSWORD", "checkout"),
			DBName:            getEnv("POSTGRES_DB", "checkout"),
			MigrationsDirPath: getEnv("MIGRATIONS_DIR", "./internal/repository/migrations"),
		},
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:              getEnv("MONGO_DB", "checkout"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:         strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		InventoryServiceAddr: getEnv("INVENTORY_SERVICE_ADDR", ""),
		PaymentServiceAddr:   getEnv("PAYMENT_SERVICE_ADDR", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()

	repo, err := repository.NewRepository(&cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(&cfg.Postgres); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := cart.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	cartRepo := cart.NewMongoRepository(mongoClient.Database(cfg.MongoDB))
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create cart indexes: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	cartService := cart.NewService(cartRepo, cart.NewRedisCache(redisClient))

	inventoryClient := buildInventoryClient(cfg)
	paymentClient := buildPaymentClient(cfg)

	registry := prometheus.NewRegistry()
	metrics := saga.NewMetrics(registry)

	orchestrator := saga.NewOrchestrator(
		saga.DefaultConfig(),
		cartService,
		inventoryClient,
		paymentClient,
		repo,
		repo,
		metrics,
	)

	poller := publisher.NewOutboxPoller(repo, cfg.KafkaBrokers...)
	go poller.Run(ctx)

	router := transport.NewRouter(orchestrator, cartService, repo, registry, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("checkout service starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}

func buildInventoryClient(cfg *Config) inventory.Client {
	if cfg.InventoryServiceAddr != "" {
		return inventory.NewHTTPClient(cfg.InventoryServiceAddr, 5*time.Second)
	}

	log.Println("INVENTORY_SERVICE_ADDR not set, using in-process inventory with demo stock")
	store := inventory.NewMemoryStore()
	store.SetStock("SKU-COFFEE", 100)
	store.SetStock("SKU-MUG", 50)
	store.SetStock("SKU-GRINDER", 10)
	return store
}

func buildPaymentClient(cfg *Config) payment.Client {
	if cfg.PaymentServiceAddr != "" {
		return payment.NewHTTPClient(cfg.PaymentServiceAddr, 30*time.Second)
	}

	log.Println("PAYMENT_SERVICE_ADDR not set, using simulated payment gateway")
	return payment.NewSimulatedGateway()
}
