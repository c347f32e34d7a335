package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/mkorolev/docbrief/internal/adapters/http"
	"github.com/mkorolev/docbrief/internal/bootstrap"
	"github.com/mkorolev/docbrief/internal/config"
	"github.com/mkorolev/docbrief/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.New("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		app.Sessions,
		app.Ask,
		app.Records,
		app.Exporter,
		app.Deliverer,
		app.Storage,
		app.Metrics,
		httpadapter.Options{
			AuthToken:       cfg.AuthToken,
			MaxFileBytes:    cfg.MaxFileBytes,
			RateLimitRPS:    cfg.APIRateLimitRPS,
			RateLimitBurst:  cfg.APIRateLimitBurst,
			MaxConcurrent:   cfg.APIMaxConcurrent,
			WhatsAppEnabled: cfg.WhatsAppEnabled,
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err)
	}
}
