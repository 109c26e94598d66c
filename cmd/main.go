package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"order-ingest/internal/api"
	"order-ingest/internal/catalog"
	"order-ingest/internal/config"
	"order-ingest/internal/idempotency"
	"order-ingest/internal/pricing"
	"order-ingest/internal/ratelimit"
	"order-ingest/internal/repository"
	"order-ingest/internal/service"
	"order-ingest/internal/webhook"
	"order-ingest/migrations"
)

func connectDB(cfg config.DBConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", dsn)
		if err == nil {
			err = db.Ping()
			if err == nil {
				log.Printf("connected to DB %s", cfg.Database)
				return db, nil
			}
		}
		log.Printf("retry %d: failed to connect to DB %s (%s:%s): %v", i+1, cfg.Database, cfg.Host, cfg.Port, err)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %v", cfg.Database, cfg.Host, cfg.Port, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Webhook.Secret == "" {
		log.Fatal("WEBHOOK_SECRET not set")
	}

	db, err := connectDB(cfg.DB)
	if err != nil {
		log.Fatal(err)
	}

	if err := migrations.AutoMigrateOrders(3, db); err != nil {
		log.Fatalf("failed to migrate orders table: %v", err)
	}
	if err := migrations.AutoMigrateOrderItems(3, db); err != nil {
		log.Fatalf("failed to migrate order_items table: %v", err)
	}
	if err := migrations.AutoMigratePaymentEvents(3, db); err != nil {
		log.Fatalf("failed to migrate payment_events table: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	kafkaWriter := config.NewKafkaWriter("order-topic")

	cat := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, rdb, cfg.Catalog.CacheTTL)
	pricer := pricing.NewValidator(cat, cfg.Pricing.TaxRateBps)

	limiter := ratelimit.New(rdb, map[string]ratelimit.Policy{
		ratelimit.ActionOrderCreate: {
			MaxAttempts: cfg.RateLimit.OrderCreateMaxAttempts,
			Window:      cfg.RateLimit.OrderCreateWindow,
			Lockout:     cfg.RateLimit.OrderCreateLockout,
			FailOpen:    cfg.RateLimit.OrderCreateFailOpen,
		},
	})

	orderRepo := repository.NewOrderRepository(db)
	eventStore := idempotency.NewStore(db)
	verifier := webhook.NewVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance)

	ingest := service.NewIngestService(orderRepo, pricer, limiter, kafkaWriter)
	reconciler := service.NewReconciler(verifier, eventStore, pricer, orderRepo, kafkaWriter)
	handler := api.NewHandler(ingest, reconciler)

	e := echo.New()

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(20),
				Burst:     40,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
	}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiterWithConfig(limiterConfig))

	handler.Register(e)

	e.Logger.Fatal(e.Start(cfg.HTTPAddr))
}
