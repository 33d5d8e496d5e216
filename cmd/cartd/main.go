package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/rocketshoes-cart/internal/catalog"
	"github.com/fjod/go_cart/rocketshoes-cart/internal/config"
	"github.com/fjod/go_cart/rocketshoes-cart/internal/domain"
	h "github.com/fjod/go_cart/rocketshoes-cart/internal/http"
	"github.com/fjod/go_cart/rocketshoes-cart/internal/notify"
	s "github.com/fjod/go_cart/rocketshoes-cart/internal/service"
	"github.com/fjod/go_cart/rocketshoes-cart/internal/storage"
	"github.com/fjod/go_cart/rocketshoes-cart/pkg/circuitbreaker"
	"github.com/fjod/go_cart/rocketshoes-cart/pkg/logger"
	"github.com/fjod/go_cart/rocketshoes-cart/pkg/tracing"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "cartd", Env: cfg.AppEnv, Level: cfg.LogLevel})

	if err := run(cfg, log); err != nil {
		log.Error("cartd stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	tp, err := tracing.InitTracerProvider(ctx, "cartd", cfg.TraceExporter)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	client, err := catalog.NewClient(cfg.APIBaseURL, catalog.Options{
		Timeout: cfg.RequestTimeout,
		Breaker: circuitbreaker.Config{
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		},
		Logger: log,
	})
	if err != nil {
		return err
	}

	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kn := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.NotifyTopic, log, cfg.KafkaBrokers...), log)
		defer func() {
			if err := kn.Close(); err != nil {
				log.Error("failed to close kafka notifier", "error", err)
			}
		}()
		notifiers = append(notifiers, kn)
		log.Info("publishing notifications to kafka", "topic", cfg.NotifyTopic, "brokers", cfg.KafkaBrokers)
	}

	cart := s.NewCartStore(ctx, s.Deps{
		Stock:    client,
		Catalog:  client,
		Store:    store,
		Notifier: notifiers,
		Logger:   log,
	}, s.WithStorageKey(cfg.StorageKey))

	cart.Subscribe(func(c domain.Cart) {
		log.Info("cart updated", "entries", len(c))
	})
	log.Info("cart loaded", "entries", len(cart.Cart()), "backend", cfg.StoreBackend)

	handler := h.NewCartHandler(cart, log)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(handler, log, cfg.RequestTimeout*2),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("cart API listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down cart API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("cart API stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.DurableStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("connected to redis", "addr", cfg.RedisAddr)
		return storage.NewRedisStore(client), func() { client.Close() }, nil

	case config.BackendMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to mongodb", "db", cfg.MongoDBName)
		return storage.NewMongoStore(db), func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.Error("failed to disconnect mongodb", "error", err)
			}
		}, nil

	case config.BackendMemory:
		log.Warn("using in-memory store, the cart will not survive a restart")
		return storage.NewMemoryStore(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
