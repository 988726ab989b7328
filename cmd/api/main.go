package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acme/scatter-gather/internal/api"
	"github.com/acme/scatter-gather/internal/api/handlers"
	"github.com/acme/scatter-gather/internal/app"
	"github.com/acme/scatter-gather/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())

	cfg := container.Config
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), cfg.Telemetry.ShutdownTimeout)
		defer scancel()
		_ = shutdown(sctx)
	}()

	if err := container.EnsureTopics(ctx); err != nil {
		log.Fatalf("failed to ensure kafka topics: %v", err)
	}

	server := api.NewServer(cfg.HTTP, handlers.NewHandlerSet(container))

	log.Printf("listening on port %d", cfg.HTTP.Port)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("server terminated: %v", err)
	}
}
