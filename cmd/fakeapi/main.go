package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/rocketshoes-cart/internal/config"
	"github.com/fjod/go_cart/rocketshoes-cart/internal/fakeapi"
	"github.com/fjod/go_cart/rocketshoes-cart/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "fakeapi", Env: cfg.AppEnv, Level: cfg.LogLevel})

	seed, err := fakeapi.LoadSeed(cfg.FakeAPISeed)
	if err != nil {
		log.Error("failed to load seed", "path", cfg.FakeAPISeed, "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.FakeAPIPort,
		Handler:     fakeapi.NewServer(seed, log).Router(),
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("fake stock/catalog API listening", "port", cfg.FakeAPIPort,
			"products", len(seed.Products), "stock", len(seed.Stock))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
}
