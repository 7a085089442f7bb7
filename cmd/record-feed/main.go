package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/feed"
)

func main() {
	log.Println("Starting feed recorder...")

	// Load configuration
	cfg := config.Load()

	vehicle := flag.String("vehicle", "", "Vehicle ID or label to follow (required)")
	dir := flag.String("dir", "", "Snapshot directory (default FEED_DIR/<vehicle>/<date>)")
	interval := flag.Duration("interval", cfg.PollInterval, "Poll interval")
	flag.Parse()

	if *vehicle == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *dir == "" {
		*dir = filepath.Join(cfg.FeedDir, *vehicle, time.Now().UTC().Format("2006-01-02"))
	}
	log.Printf("Config loaded: feed=%s, poll_interval=%v, dir=%s", cfg.GTFSVehiclePositionsURL, *interval, *dir)

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Start Recording Loop
	// ═══════════════════════════════════════════════════════
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := feed.NewRecorder(cfg.GTFSVehiclePositionsURL, *dir, *vehicle)
	done := make(chan error, 1)
	go func() {
		done <- recorder.Run(ctx, *interval)
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Graceful Shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Println("Shutting down...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Fatalf("Recorder failed: %v", err)
		}
	}

	log.Printf("Recording saved in %s; audit it with: analyze -feed-dir %s -vehicle %s", *dir, *dir, *vehicle)
}
