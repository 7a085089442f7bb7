package telemetry

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// LoadFeedRecording builds samples from a directory of GTFS-RT
// VehiclePositions snapshots (*.pb), one snapshot per tick. The vehicle is
// matched on its descriptor id or label. Distance comes from the odometer
// (meters) and speed from the reported m/s value.
func LoadFeedRecording(dir, vehicleID string) ([]Sample, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.pb"))
	if err != nil {
		return nil, fmt.Errorf("failed to list feed snapshots: %w", err)
	}
	sort.Strings(paths)

	var samples []Sample
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
		}

		feed := &gtfs.FeedMessage{}
		if err := proto.Unmarshal(body, feed); err != nil {
			log.Printf("Warning: skipping snapshot %s: failed to parse protobuf: %v", filepath.Base(path), err)
			continue
		}

		if s, ok := vehicleSample(feed, vehicleID); ok {
			samples = append(samples, s)
		}
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: vehicle %s in %s", ErrNoSamples, vehicleID, dir)
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	fromOdometer(samples)

	log.Printf("Telemetry: loaded %d feed samples for vehicle %s", len(samples), vehicleID)
	return samples, nil
}

// vehicleSample extracts the reading for one vehicle from a snapshot.
// CumulativeDistance temporarily holds the raw odometer value.
func vehicleSample(feed *gtfs.FeedMessage, vehicleID string) (Sample, bool) {
	for _, entity := range feed.Entity {
		vehicle := entity.GetVehicle()
		if vehicle == nil || vehicle.Position == nil {
			continue
		}
		desc := vehicle.GetVehicle()
		if desc == nil {
			continue
		}
		if !strings.EqualFold(desc.GetId(), vehicleID) && !strings.EqualFold(desc.GetLabel(), vehicleID) {
			continue
		}
		if vehicle.Position.Odometer == nil {
			continue
		}

		s := Sample{
			Speed:              float64(vehicle.Position.GetSpeed()) * 3.6,
			CumulativeDistance: vehicle.Position.GetOdometer(),
		}
		ts := vehicle.GetTimestamp()
		if ts == 0 && feed.Header != nil {
			ts = feed.Header.GetTimestamp()
		}
		if ts > 0 {
			s.Timestamp = time.Unix(int64(ts), 0).UTC()
		}
		return s, true
	}
	return Sample{}, false
}

// fromOdometer rebases odometer readings to the trip start and derives increments
func fromOdometer(samples []Sample) {
	start := samples[0].CumulativeDistance
	var prev float64
	for i := range samples {
		// odometer resets never move the trip backwards
		cum := max(samples[i].CumulativeDistance-start, prev)
		samples[i].DistanceIncrement = cum - prev
		samples[i].CumulativeDistance = cum
		prev = cum
	}
}
