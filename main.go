package main

import (
	"edumentor_backend/internal/app"
	"edumentor_backend/internal/config"
	"edumentor_backend/pkg/configwatcher"
	"edumentor_backend/pkg/logger"
	"flag"
	"log"
	"path/filepath"
)

func main() {
	configDir := flag.String("config", "configs", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	go configwatcher.WatchConfig(filepath.Join(*configDir, "config.yaml"), application.ApplyConfig)

	application.Run()
}
