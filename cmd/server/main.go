package main

import (
	"context"
	"log"

	"invoice-engine/internal/adapters/cli"
	"invoice-engine/internal/config"
	"invoice-engine/internal/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Setup(cfg.LoggerConfig()); err != nil {
		log.Fatalf("logger: %v", err)
	}

	if err := cli.Serve(context.Background(), cfg); err != nil {
		l := logger.WithComponent("server")
		l.Fatal().Err(err).Msg("server stopped")
	}
}
