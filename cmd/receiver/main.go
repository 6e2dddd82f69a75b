package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/A-ESxARG/receiver/internal/app"
	"github.com/A-ESxARG/receiver/internal/config"
	"github.com/A-ESxARG/receiver/internal/observability"
	"github.com/A-ESxARG/receiver/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.Setup(ctx, observability.Config{
		ServiceName:  cfg.Name,
		OTelEndpoint: cfg.OTelEndpoint,
		OTelDisabled: cfg.OTelDisabled,
	})
	if err != nil {
		log.Fatalf("tracing setup: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	if err := app.Run(ctx, cfg, app.Options{Logger: telemetry.WrapLogger(log.Default())}); err != nil {
		log.Printf("%v", err)
		stop()
		os.Exit(1)
	}
}
