package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"quantaverse/client/internal/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to an optional YAML config file")
	flag.Parse()

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}
