package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/aihub/lotr-chat/internal/config"
	"github.com/aihub/lotr-chat/internal/database"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	action := flag.String("action", "up", "Migration action: up, down, version, goto, force")
	version := flag.Int("version", -1, "Target version for goto/force")
	path := flag.String("path", "", "Migrations directory (default: database.migrations_path)")
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	migrationsPath := cfg.Database.MigrationsPath
	if *path != "" {
		migrationsPath = *path
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	mm, err := database.NewMigrationManager(db, migrationsPath, logger)
	if err != nil {
		logger.Fatalf("Failed to create migration manager: %v", err)
	}

	code := run(mm, *action, *version)
	if err := mm.Close(); err != nil {
		logger.Warnf("Close migrator: %v", err)
	}
	os.Exit(code)
}

func run(mm *database.MigrationManager, action string, version int) int {
	switch action {
	case "up":
		if err := mm.Up(); err != nil {
			fmt.Fprintf(os.Stderr, "Migration up failed: %v\n", err)
			return 1
		}

	case "down":
		if err := mm.Down(); err != nil {
			fmt.Fprintf(os.Stderr, "Migration down failed: %v\n", err)
			return 1
		}

	case "version", "status":
		v, dirty, err := mm.Version()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get version: %v\n", err)
			return 1
		}
		fmt.Printf("Current version: %d", v)
		if dirty {
			fmt.Printf(" (dirty - manual intervention required)")
		}
		fmt.Println()

	case "goto":
		if version < 0 {
			fmt.Fprintln(os.Stderr, "Version must be specified for goto action")
			return 2
		}
		if err := mm.Goto(uint(version)); err != nil {
			fmt.Fprintf(os.Stderr, "Migration to version %d failed: %v\n", version, err)
			return 1
		}

	case "force":
		if version < 0 {
			fmt.Fprintln(os.Stderr, "Version must be specified for force action")
			return 2
		}
		if err := mm.ForceVersion(version); err != nil {
			fmt.Fprintf(os.Stderr, "Force version failed: %v\n", err)
			return 1
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", action)
		fmt.Fprintln(os.Stderr, "Available actions: up, down, version, goto, force")
		return 2
	}
	return 0
}
