package static

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mini-rodalies-3d/tripaudit/internal/network"
)

// LoadCatalog reads dir/catalog.json and, when dir/timetable.zip exists,
// fills in published halt lists from it
func LoadCatalog(dir string) (*network.Catalog, error) {
	cat, err := network.Load(filepath.Join(dir, "catalog.json"))
	if err != nil {
		return nil, err
	}

	zipPath := filepath.Join(dir, "timetable.zip")
	if _, err := os.Stat(zipPath); err != nil {
		return cat, nil
	}
	trains, err := LoadTimetable(zipPath)
	if err != nil {
		log.Printf("Warning: timetable not applied: %v", err)
		return cat, nil
	}
	log.Printf("Timetable: %d trains updated", MergeTimetable(cat, trains))
	return cat, nil
}

// stopTime is one row of stop_times.txt
type stopTime struct {
	tripID   string
	stopID   string
	sequence int
	passing  bool
}

// LoadTimetable reads the published halt list of every trip in a GTFS zip.
// The train number is the trip's short name (trip_id when absent) and halts
// are the stop codes in stop sequence. Stops served with neither pickup nor
// drop-off are pass-through points and are left out.
func LoadTimetable(zipPath string) ([]network.Train, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		files[f.Name] = f
	}
	for _, name := range []string{"trips.txt", "stop_times.txt"} {
		if _, ok := files[name]; !ok {
			return nil, fmt.Errorf("failed to load timetable: %s missing from %s", name, zipPath)
		}
	}

	stopCodes := map[string]string{}
	if f, ok := files["stops.txt"]; ok {
		if stopCodes, err = parseStops(f); err != nil {
			log.Printf("Warning: failed to parse stops.txt: %v", err)
		}
	}

	numbers, err := parseTrips(files["trips.txt"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse trips.txt: %w", err)
	}
	stopTimes, err := parseStopTimes(files["stop_times.txt"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse stop_times.txt: %w", err)
	}

	byTrip := make(map[string][]stopTime)
	for _, st := range stopTimes {
		byTrip[st.tripID] = append(byTrip[st.tripID], st)
	}

	tripIDs := make([]string, 0, len(numbers))
	for id := range numbers {
		tripIDs = append(tripIDs, id)
	}
	sort.Strings(tripIDs)

	trains := make([]network.Train, 0, len(tripIDs))
	for _, id := range tripIDs {
		times := byTrip[id]
		if len(times) == 0 {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i].sequence < times[j].sequence })

		halts := make([]string, 0, len(times))
		for _, st := range times {
			if st.passing {
				continue
			}
			code := st.stopID
			if c := stopCodes[st.stopID]; c != "" {
				code = c
			}
			halts = append(halts, strings.ToUpper(code))
		}
		trains = append(trains, network.Train{Number: numbers[id], Halts: halts})
	}

	log.Printf("Timetable: loaded %d trains from %s", len(trains), zipPath)
	return trains, nil
}

// MergeTimetable adds published halt lists to the catalog. Trains the
// catalog already lists keep their code; their halts are filled in only
// when the catalog has none. Returns the number of trains changed.
func MergeTimetable(cat *network.Catalog, trains []network.Train) int {
	changed := 0
	for _, t := range trains {
		existing, ok := cat.Train(t.Number)
		if !ok {
			cat.AddTrain(t)
			changed++
			continue
		}
		if len(existing.Halts) == 0 && len(t.Halts) > 0 {
			existing.Halts = t.Halts
			cat.AddTrain(existing)
			changed++
		}
	}
	return changed
}

func parseStops(f *zip.File) (map[string]string, error) {
	codes := make(map[string]string)
	err := readCSV(f, func(record []string, idx map[string]int) {
		if code := getField(record, idx, "stop_code"); code != "" {
			codes[getField(record, idx, "stop_id")] = code
		}
	})
	return codes, err
}

func parseTrips(f *zip.File) (map[string]string, error) {
	numbers := make(map[string]string)
	err := readCSV(f, func(record []string, idx map[string]int) {
		id := getField(record, idx, "trip_id")
		if id == "" {
			return
		}
		number := getField(record, idx, "trip_short_name")
		if number == "" {
			number = id
		}
		numbers[id] = number
	})
	return numbers, err
}

func parseStopTimes(f *zip.File) ([]stopTime, error) {
	var stopTimes []stopTime
	err := readCSV(f, func(record []string, idx map[string]int) {
		seq, err := strconv.Atoi(getField(record, idx, "stop_sequence"))
		if err != nil {
			return
		}
		stopTimes = append(stopTimes, stopTime{
			tripID:   getField(record, idx, "trip_id"),
			stopID:   getField(record, idx, "stop_id"),
			sequence: seq,
			passing:  getField(record, idx, "pickup_type") == "1" && getField(record, idx, "drop_off_type") == "1",
		})
	})
	return stopTimes, err
}

// readCSV calls fn for every well-formed record of a zipped CSV file
func readCSV(f *zip.File, fn func(record []string, idx map[string]int)) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return err
	}
	idx := makeIndex(header)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			continue
		}
		fn(record, idx)
	}
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int)
	for i, h := range header {
		// GTFS files often start with a UTF-8 BOM
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
