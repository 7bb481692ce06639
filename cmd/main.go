package main

import (
	"log"
	"os"

	"github.com/inboxpilot/core/internal/api"
	"github.com/inboxpilot/core/internal/cli"
	"github.com/inboxpilot/core/internal/config"
	"github.com/inboxpilot/core/internal/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// CLI command if arguments given, server otherwise
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	router, scheduler, err := api.SetupRouter(db, cfg)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}
	defer scheduler.Stop()

	log.Printf("Starting InboxPilot server on port %s", cfg.APIPort)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Database path: %s", cfg.DatabasePath)
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
