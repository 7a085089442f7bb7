package telemetry

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02-01-2006 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// columns locates the fields of a speedometer export
type columns struct {
	date, time, speed, distance, cumulative int
}

// LoadCSV reads a speedometer export from disk
func LoadCSV(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads speedometer rows. Column names are matched loosely
// (any header containing "speed", "dist", "date", "time"). A file whose
// first row is numeric is read positionally as Date, Speed, Distance.
// Rows whose speed or distance is not numeric are skipped.
func ParseCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoSamples
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry header: %w", err)
	}

	cols := columns{date: 0, time: -1, speed: 1, distance: 2, cumulative: -1}
	var pending [][]string
	if isDataRow(first) {
		pending = append(pending, first)
	} else {
		cols, err = detectColumns(first)
		if err != nil {
			return nil, err
		}
	}

	var samples []Sample
	haveCumulative := cols.cumulative >= 0
	skipped := 0
	parse := func(record []string) {
		s, ok := parseRecord(record, cols)
		if !ok {
			skipped++
			return
		}
		samples = append(samples, s)
	}

	for _, record := range pending {
		parse(record)
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		parse(record)
	}

	if skipped > 0 {
		log.Printf("Telemetry: skipped %d malformed rows", skipped)
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	switch {
	case !haveCumulative:
		Accumulate(samples)
	case cols.distance == -1:
		for i := 1; i < len(samples); i++ {
			samples[i].DistanceIncrement = max(0, samples[i].CumulativeDistance-samples[i-1].CumulativeDistance)
		}
	}
	return samples, nil
}

func detectColumns(header []string) (columns, error) {
	cols := columns{date: -1, time: -1, speed: -1, distance: -1, cumulative: -1}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(name, "cumulative"):
			cols.cumulative = i
		case strings.Contains(name, "speed"):
			if cols.speed == -1 {
				cols.speed = i
			}
		case strings.Contains(name, "dist"):
			if cols.distance == -1 {
				cols.distance = i
			}
		case strings.Contains(name, "date"):
			if cols.date == -1 {
				cols.date = i
			}
		case strings.Contains(name, "time"):
			if cols.time == -1 {
				cols.time = i
			}
		}
	}
	if cols.speed == -1 || (cols.distance == -1 && cols.cumulative == -1) {
		return cols, fmt.Errorf("failed to find speed and distance columns in %v", header)
	}
	return cols, nil
}

func isDataRow(record []string) bool {
	if len(record) < 3 {
		return false
	}
	_, okSpeed := parseFinite(strings.TrimSpace(record[1]))
	_, okDist := parseFinite(strings.TrimSpace(record[2]))
	return okSpeed && okDist
}

func parseRecord(record []string, cols columns) (Sample, bool) {
	speed, ok := parseFinite(field(record, cols.speed))
	if !ok || speed < 0 {
		return Sample{}, false
	}

	var s Sample
	s.Speed = speed

	if cols.distance >= 0 {
		inc, ok := parseFinite(field(record, cols.distance))
		if !ok || inc < 0 {
			return Sample{}, false
		}
		s.DistanceIncrement = inc
	}
	if cols.cumulative >= 0 {
		cum, ok := parseFinite(field(record, cols.cumulative))
		if !ok {
			return Sample{}, false
		}
		s.CumulativeDistance = cum
	}

	stamp := field(record, cols.date)
	if t := field(record, cols.time); t != "" {
		stamp = strings.TrimSpace(stamp + " " + t)
	}
	s.Timestamp = parseTimestamp(stamp)
	return s, true
}

// parseFinite parses a reading, rejecting the NaN and Inf spellings ParseFloat accepts
func parseFinite(v string) (float64, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func field(record []string, i int) string {
	if i >= 0 && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
