// Package feed records one vehicle's GTFS-realtime positions to disk so a
// trip can later be audited from its odometer and speed readings.
package feed

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// Recorder polls a VehiclePositions feed and keeps one snapshot per new
// reading of the followed vehicle
type Recorder struct {
	client    *http.Client
	url       string
	dir       string
	vehicleID string
	last      uint64
}

// NewRecorder creates a recorder writing snapshots into dir
func NewRecorder(url, dir, vehicleID string) *Recorder {
	return &Recorder{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		url:       url,
		dir:       dir,
		vehicleID: vehicleID,
	}
}

// Poll fetches the feed once. It reports whether a snapshot was written.
func (r *Recorder) Poll(ctx context.Context) (bool, error) {
	feed, err := r.fetchFeed(ctx)
	if err != nil {
		return false, err
	}

	entity := findVehicle(feed, r.vehicleID)
	if entity == nil {
		log.Printf("Feed: vehicle %s not in feed", r.vehicleID)
		return false, nil
	}

	ts := entity.GetVehicle().GetTimestamp()
	if ts == 0 {
		ts = feed.GetHeader().GetTimestamp()
	}
	if ts == 0 {
		ts = uint64(time.Now().Unix())
	}
	if ts == r.last {
		return false, nil
	}

	snapshot := &gtfs.FeedMessage{
		Header: feed.Header,
		Entity: []*gtfs.FeedEntity{entity},
	}
	body, err := proto.Marshal(snapshot)
	if err != nil {
		return false, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// zero padded so lexical order is time order
	path := filepath.Join(r.dir, fmt.Sprintf("%012d.pb", ts))
	if err := os.WriteFile(path, body, 0644); err != nil {
		return false, fmt.Errorf("failed to write snapshot: %w", err)
	}
	r.last = ts

	pos := entity.GetVehicle().GetPosition()
	log.Printf("Feed: %s odometer=%.0f speed=%.1f", r.vehicleID, pos.GetOdometer(), pos.GetSpeed())
	return true, nil
}

// Run polls every interval until ctx is cancelled
func (r *Recorder) Run(ctx context.Context, interval time.Duration) error {
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("failed to create feed dir: %w", err)
	}

	if _, err := r.Poll(ctx); err != nil {
		log.Printf("Feed poll error: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.Poll(ctx); err != nil {
				log.Printf("Feed poll error: %v", err)
			}
		case <-ctx.Done():
			log.Println("Recording loop stopped")
			return nil
		}
	}
}

// findVehicle matches the vehicle descriptor id or label
func findVehicle(feed *gtfs.FeedMessage, vehicleID string) *gtfs.FeedEntity {
	for _, entity := range feed.Entity {
		desc := entity.GetVehicle().GetVehicle()
		if desc == nil {
			continue
		}
		if strings.EqualFold(desc.GetId(), vehicleID) || strings.EqualFold(desc.GetLabel(), vehicleID) {
			return entity
		}
	}
	return nil
}

// fetchFeed fetches a GTFS-RT feed from the recorder URL
func (r *Recorder) fetchFeed(ctx context.Context) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}

	return feed, nil
}
