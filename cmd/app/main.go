package main

import (
	"flag"
	"fmt"
	"log"

	"CoinPulse/internal/di"
	"CoinPulse/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(configPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Printf("coinpulse env=%s symbols=%v sources=%v journal=%s", cfg.Environment, cfg.Market.Symbols, cfg.Sources.Order, cfg.Backend.Type)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	// Blocks until SIGINT or SIGTERM.
	return app.Run()
}
