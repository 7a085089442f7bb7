package main

import (
	"context"
	"flag"
	"log"

	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/db"
	"github.com/mini-rodalies-3d/tripaudit/internal/static"
)

func main() {
	cfg := config.Load()

	// Command line flags
	dbPath := flag.String("db", cfg.DatabasePath, "Path to SQLite database")
	corpusDir := flag.String("corpus-dir", cfg.CorpusDir, "Directory containing corridor sheet CSV files")
	force := flag.Bool("force", true, "Import even when the manifest is fresh")
	flag.Parse()

	// Initialize database
	database, err := db.Connect(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	log.Printf("Connected to database: %s", *dbPath)

	// Ensure schema exists (creates tables if needed)
	ctx := context.Background()
	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	if !*force {
		if err := static.RefreshIfStale(ctx, *corpusDir, cfg.StaticRefreshDays, database); err != nil {
			log.Fatalf("Corpus refresh failed: %v", err)
		}
		return
	}

	n, err := static.ImportCorpus(ctx, *corpusDir, database)
	if err != nil {
		log.Fatalf("Import failed after %d sheets: %v", n, err)
	}
	log.Printf("Import complete! %d sheets", n)
}
