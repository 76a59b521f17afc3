package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sondregut/pvelite/internal/analytics"
	"github.com/sondregut/pvelite/internal/cart"
	"github.com/sondregut/pvelite/internal/catalog"
	"github.com/sondregut/pvelite/internal/checkout"
	"github.com/sondregut/pvelite/internal/checkout/publisher"
	"github.com/sondregut/pvelite/internal/httpapi"
	"github.com/sondregut/pvelite/internal/kvstore"
	"github.com/sondregut/pvelite/internal/notify"
	"github.com/sondregut/pvelite/internal/payment"
	"github.com/sondregut/pvelite/internal/poller"
	"github.com/sondregut/pvelite/internal/vault"
	"github.com/sondregut/pvelite/internal/waitlist"
)

type Config struct {
	HTTPPort string
	StoreURL string

	RedisAddr     string
	RedisPassword string

	CatalogDBPath         string
	CatalogMigrationsPath string

	PostgresHost           string
	PostgresPort           int
	PostgresUser           string
	PostgresPassword       string
	PostgresDB             string
	CheckoutMigrationsPath string

	MongoURI string
	MongoDB  string

	KafkaBrokers []string

	PaymentBaseURL string
	PaymentAPIKey  string

	VaultCDNBaseURL string
	AdminToken      string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		StoreURL: getEnv("STORE_URL", "http://localhost:3000"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "internal/catalog/migrations"),

		PostgresHost:           getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:           getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:           getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:       getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:             getEnv("POSTGRES_DB", "pvelite"),
		CheckoutMigrationsPath: getEnv("CHECKOUT_MIGRATIONS_PATH", "internal/checkout/migrations"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "pvelite"),

		KafkaBrokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},

		PaymentBaseURL: getEnv("PAYMENT_BASE_URL", "https://pay.example.com"),
		PaymentAPIKey:  getEnv("PAYMENT_API_KEY", ""),

		VaultCDNBaseURL: getEnv("VAULT_CDN_BASE_URL", "https://cdn.example.com/vault"),
		AdminToken:      getEnv("ADMIN_TOKEN", ""),

		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("invalid value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the cart store and the session lookup
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	store := kvstore.NewRedisStore(redisClient)

	carts := cart.NewManager(store, notify.LogNotifier{})

	// Product catalog on SQLite
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		log.Fatalf("Failed to run catalog migrations: %v", err)
	}

	// Checkout sessions on Postgres
	creds := &checkout.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.CheckoutMigrationsPath,
	}
	checkoutRepo, err := checkout.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer checkoutRepo.Close()
	if err := checkoutRepo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run checkout migrations: %v", err)
	}

	// Vault and waitlist on MongoDB
	mongoDB, err := vault.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	vaultRepo := vault.NewMongoRepository(mongoDB)
	waitlistRepo := waitlist.NewMongoRepository(mongoDB)
	if err := vaultRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create vault indexes: %v", err)
	}
	if err := waitlistRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create waitlist indexes: %v", err)
	}

	payments := payment.NewHostedClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey, 15*time.Second)

	selfURL := getEnv("SELF_URL", "http://localhost:"+cfg.HTTPPort)
	checkoutSvc := checkout.NewService(
		checkoutRepo,
		carts,
		catalogRepo,
		payments,
		selfURL+"/api/v1/checkout/callback",
		selfURL+"/api/v1/checkout/callback",
	)

	vaultSvc := vault.NewService(vaultRepo, vault.PublicBaseSigner{BaseURL: cfg.VaultCDNBaseURL})
	analyticsSvc := analytics.NewService(checkoutRepo)

	// Background workers: outbox publisher and the cart-clear consumer
	outboxPoller := publisher.NewOutboxPoller(checkoutRepo, cfg.KafkaBrokers...)
	defer outboxPoller.Close()
	go outboxPoller.Run(ctx)

	cartPoller := poller.New(carts, cfg.KafkaBrokers...)
	defer cartPoller.Close()
	go cartPoller.Run(ctx)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Cart:           httpapi.NewCartHandler(carts),
		Catalog:        httpapi.NewCatalogHandler(catalogRepo),
		Checkout:       httpapi.NewCheckoutHandler(checkoutSvc, cfg.StoreURL),
		Vault:          httpapi.NewVaultHandler(vaultSvc, waitlistRepo),
		Analytics:      httpapi.NewAnalyticsHandler(analyticsSvc, waitlistRepo, cfg.AdminToken),
		Sessions:       store,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "pvelite-server"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
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
