package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrStationNotInSheet is returned when a queried station is not a sheet column
var ErrStationNotInSheet = errors.New("station not in sheet")

// Row is one past run as recorded: a record label and one raw cell per
// sheet station. Cells are kept verbatim so blank and zero stay distinct.
type Row struct {
	Record string   `json:"record"`
	Cells  []string `json:"cells"`
}

// Sheet is the past-run matrix for one corridor and direction.
// Each cell holds the distance covered from the previous column's station.
type Sheet struct {
	Name     string   `json:"name"`
	Stations []string `json:"stations"`
	Rows     []Row    `json:"rows"`
}

// LoadSheet reads a sheet CSV; the sheet name is the file name without extension
func LoadSheet(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseSheet(name, f)
}

// ParseSheet reads a sheet. The first row holds a label cell followed by
// station codes; every later row holds a record label followed by cells.
func ParseSheet(name string, r io.Reader) (*Sheet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("sheet %s has no station columns", name)
	}

	sheet := &Sheet{Name: strings.ToUpper(strings.TrimSpace(name))}
	for _, h := range header[1:] {
		sheet.Stations = append(sheet.Stations, strings.ToUpper(strings.TrimSpace(h)))
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet row: %w", err)
		}
		if len(record) == 0 {
			continue
		}

		row := Row{
			Record: strings.TrimSpace(record[0]),
			Cells:  make([]string, len(sheet.Stations)),
		}
		for i := range sheet.Stations {
			if i+1 < len(record) {
				row.Cells[i] = strings.TrimSpace(record[i+1])
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	return sheet, nil
}

// StationIndex returns the column of a station, or -1
func (s *Sheet) StationIndex(station string) int {
	station = strings.ToUpper(strings.TrimSpace(station))
	for i, st := range s.Stations {
		if st == station {
			return i
		}
	}
	return -1
}

// parseCell reads a numeric cell; blank or malformed cells read as 0
func parseCell(v string) float64 {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func isBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}
