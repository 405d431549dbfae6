package main

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"ppplay-api/internal/config"
	"ppplay-api/internal/database"
	"ppplay-api/internal/logger"
)

func main() {
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [-steps N] up|down|status")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.App.LogLevel, cfg.App.Env)

	if cfg.Database.Driver != "postgres" {
		log.Fatalf("Versioned migrations need DB_DRIVER=postgres, got %q", cfg.Database.Driver)
	}
	url := cfg.GetDatabaseURL()

	switch flag.Arg(0) {
	case "up":
		err = database.RunMigrations(url)
	case "down":
		err = database.MigrateDown(url, *steps)
	case "status":
		var version uint
		var dirty bool
		version, dirty, err = database.MigrationStatus(url)
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}
