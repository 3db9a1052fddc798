package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"wellstep/internal/config"
	"wellstep/migrations"
	"wellstep/pkg/database"
	"wellstep/pkg/logging"
	"wellstep/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	dir := migrations.Direction(*direction)
	if dir != migrations.Up && dir != migrations.Down {
		fmt.Fprintf(os.Stderr, "Unknown direction %q, expected up or down\n", *direction)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("wellstep-migrate", "1.0.0", cfg.Logging.Options())
	defer logger.Sync()

	db, err := database.NewPostgresDB(cfg.Database.Postgres(), logger, metrics.NewCollector("wellstep_migrate"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Connected to database successfully")

	applied, err := db.Migrate(context.Background(), dir)
	for _, name := range applied {
		fmt.Printf("Applied migration: %s\n", name)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		db.Close()
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
