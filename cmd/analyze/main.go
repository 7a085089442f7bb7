package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/mini-rodalies-3d/tripaudit/internal/audit"
	"github.com/mini-rodalies-3d/tripaudit/internal/cache"
	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
	"github.com/mini-rodalies-3d/tripaudit/internal/db"
	"github.com/mini-rodalies-3d/tripaudit/internal/halts"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
	"github.com/mini-rodalies-3d/tripaudit/internal/speed"
	"github.com/mini-rodalies-3d/tripaudit/internal/static"
	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

func main() {
	// Command line flags
	train := flag.String("train", "", "Train number (required)")
	code := flag.String("code", "", "Train code; taken from the catalog when empty")
	from := flag.String("from", "", "Origin station code (required)")
	to := flag.String("to", "", "Destination station code (required)")
	date := flag.String("date", time.Now().UTC().Format("2006-01-02"), "Trip date (YYYY-MM-DD)")
	csvPath := flag.String("telemetry", "", "Speedometer CSV export")
	feedDir := flag.String("feed-dir", "", "Directory of recorded GTFS-realtime snapshots (instead of -telemetry)")
	vehicle := flag.String("vehicle", "", "Vehicle ID to follow in -feed-dir")
	corpusDir := flag.String("corpus-dir", "", "Read corpus sheets from this directory instead of the database")
	noSave := flag.Bool("no-save", false, "Print the report without storing it")
	out := flag.String("out", "", "Write the JSON report to this file instead of stdout")
	flag.Parse()

	if *train == "" || *from == "" || *to == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *csvPath == "" && (*feedDir == "" || *vehicle == "") {
		log.Fatal("Either -telemetry or -feed-dir with -vehicle is required")
	}

	ctx := context.Background()

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Configuration and Network Catalog
	// ═══════════════════════════════════════════════════════
	cfg := config.Load()
	catalog, err := static.LoadCatalog(cfg.CatalogDir)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Database and Historical Corpus
	// ═══════════════════════════════════════════════════════
	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	history, err := loadCorpus(ctx, database, *corpusDir, cfg.CorpusDir)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Telemetry
	// ═══════════════════════════════════════════════════════
	var samples []telemetry.Sample
	if *csvPath != "" {
		samples, err = telemetry.LoadCSV(*csvPath)
	} else {
		samples, err = telemetry.LoadFeedRecording(*feedDir, *vehicle)
	}
	if err != nil {
		log.Fatalf("Failed to load telemetry: %v", err)
	}
	log.Printf("Telemetry loaded: %d samples", len(samples))

	// ═══════════════════════════════════════════════════════
	// PHASE 4: Audit
	// ═══════════════════════════════════════════════════════
	report, err := audit.Run(audit.Input{
		Input: halts.Input{
			Identity:   network.TrainIdentity{Number: *train, Code: *code, From: *from, To: *to},
			Samples:    samples,
			Catalog:    catalog,
			Corpus:     history,
			Tolerances: cfg.Tolerances,
		},
		Date:      *date,
		BrakeFeel: speed.DefaultBrakeFeel(),
	})
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	// ═══════════════════════════════════════════════════════
	// PHASE 5: Persist and Print
	// ═══════════════════════════════════════════════════════
	if !*noSave {
		runID, err := database.SaveReport(ctx, report)
		if err != nil {
			log.Fatalf("Failed to save report: %v", err)
		}
		report.ID = runID
		log.Printf("Run saved: %s", runID)
		invalidateCache(ctx, cfg, runID)
	}

	if err := writeReport(report, *out); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}

// loadCorpus prefers an explicit directory, then the imported sheets, then
// the configured corpus directory
func loadCorpus(ctx context.Context, database *db.DB, flagDir, cfgDir string) (*corpus.Corpus, error) {
	if flagDir != "" {
		return corpus.LoadDir(flagDir)
	}
	c, err := database.LoadCorpus(ctx)
	if err != nil {
		return nil, err
	}
	if c.Len() > 0 {
		log.Printf("Corpus loaded: %d sheets from database", c.Len())
		return c, nil
	}
	log.Printf("Warning: no imported corpus, reading %s", cfgDir)
	c, err = corpus.LoadDir(cfgDir)
	if err != nil {
		log.Printf("Warning: running without history: %v", err)
		return corpus.New(), nil
	}
	return c, nil
}

func invalidateCache(ctx context.Context, cfg *config.Config, runID string) {
	if !cfg.RedisEnabled {
		return
	}
	rc, err := cache.NewReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ReportCacheTTL)
	if err != nil {
		log.Printf("Warning: cache not invalidated: %v", err)
		return
	}
	defer rc.Close()
	if err := rc.InvalidateRun(ctx, runID); err != nil {
		log.Printf("Warning: cache not invalidated: %v", err)
	}
}

func writeReport(report *audit.Report, path string) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
