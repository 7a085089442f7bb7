package network

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

var (
	// ErrUnknownCorridor is returned when no corridor matches the train
	ErrUnknownCorridor = errors.New("unknown corridor")
	// ErrStationNotOnCorridor is returned when a trip endpoint or halt is not on its corridor
	ErrStationNotOnCorridor = errors.New("station not on corridor")
)

// Catalog is the read-only network reference: stations, corridors,
// directional sections and signal tables per variant.
type Catalog struct {
	Stations  map[string]Station
	Corridors map[string][]string

	sections  map[Variant]map[string]Section
	signals   map[Variant]map[string][]Signal
	trains    map[string]Train
	overrides []OverrideRule

	thbVSH     map[string]bool
	seStations map[string]bool
	neStations map[string]bool
}

// catalogFile is the on-disk JSON layout of a catalog
type catalogFile struct {
	Stations   []Station             `json:"stations"`
	Corridors  map[string][]string   `json:"corridors"`
	Sections   map[Variant][]Section `json:"sections"`
	Signals    map[Variant][]Signal  `json:"signals"`
	Trains     []Train               `json:"trains"`
	StationSet map[string][]string   `json:"station_sets"`
}

// Load reads a catalog JSON file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := New()
	for _, st := range file.Stations {
		c.AddStation(st)
	}
	for name, stations := range file.Corridors {
		c.AddCorridor(name, stations)
	}
	for variant, sections := range file.Sections {
		for _, s := range sections {
			c.AddSection(variant, s)
		}
	}
	for variant, signals := range file.Signals {
		c.AddSignals(variant, signals...)
	}
	for _, t := range file.Trains {
		c.AddTrain(t)
	}
	c.thbVSH = toSet(file.StationSet["THB_VSH"])
	c.seStations = toSet(file.StationSet["SE"])
	c.neStations = toSet(file.StationSet["NE"])

	log.Printf("Catalog loaded: %d stations, %d corridors, %d trains",
		len(c.Stations), len(c.Corridors), len(c.trains))
	return c, nil
}

// New returns an empty catalog carrying the default section overrides
func New() *Catalog {
	return &Catalog{
		Stations:   make(map[string]Station),
		Corridors:  make(map[string][]string),
		sections:   make(map[Variant]map[string]Section),
		signals:    make(map[Variant]map[string][]Signal),
		trains:     make(map[string]Train),
		overrides:  DefaultOverrides(),
		thbVSH:     map[string]bool{},
		seStations: map[string]bool{},
		neStations: map[string]bool{},
	}
}

// AddStation registers a station
func (c *Catalog) AddStation(st Station) {
	st.Code = strings.ToUpper(strings.TrimSpace(st.Code))
	c.Stations[st.Code] = st
}

// AddCorridor registers an ordered station list under a corridor name
func (c *Catalog) AddCorridor(name string, stations []string) {
	ordered := make([]string, 0, len(stations))
	for _, s := range stations {
		ordered = append(ordered, strings.ToUpper(strings.TrimSpace(s)))
	}
	c.Corridors[strings.ToUpper(name)] = ordered
}

// AddSection registers a directed section for a variant
func (c *Catalog) AddSection(variant Variant, s Section) {
	if c.sections[variant] == nil {
		c.sections[variant] = make(map[string]Section)
	}
	s.Start, s.End, _ = SplitSection(s.Name)
	c.sections[variant][s.Name] = s
}

// AddSignals appends signals to their sections for a variant, preserving order
func (c *Catalog) AddSignals(variant Variant, signals ...Signal) {
	if c.signals[variant] == nil {
		c.signals[variant] = make(map[string][]Signal)
	}
	for _, sig := range signals {
		c.signals[variant][sig.Section] = append(c.signals[variant][sig.Section], sig)
	}
}

// AddTrain registers a timetable entry keyed by normalized train number
func (c *Catalog) AddTrain(t Train) {
	c.trains[NormalizeTrainNumber(t.Number)] = t
}

// SetOverrides replaces the section override rules
func (c *Catalog) SetOverrides(rules []OverrideRule) {
	c.overrides = rules
}

// Train looks up a timetable entry by train number
func (c *Catalog) Train(number string) (Train, bool) {
	t, ok := c.trains[NormalizeTrainNumber(number)]
	return t, ok
}

// CorridorNames returns all corridor names in sorted order
func (c *Catalog) CorridorNames() []string {
	names := make([]string, 0, len(c.Corridors))
	for name := range c.Corridors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StationsForCorridor returns the ordered station codes of a corridor
func (c *Catalog) StationsForCorridor(corridor string) ([]string, error) {
	stations, ok := c.Corridors[strings.ToUpper(corridor)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCorridor, corridor)
	}
	return stations, nil
}

// Section returns a directed section for a variant
func (c *Catalog) Section(variant Variant, name string) (Section, bool) {
	s, ok := c.sections[variant][name]
	return s, ok
}

// SectionsSpanning returns the section names "A-B" between two stations
// of a corridor in travel order.
func (c *Catalog) SectionsSpanning(corridor, from, to string) ([]string, error) {
	stations, err := c.StationsForCorridor(corridor)
	if err != nil {
		return nil, err
	}
	fromIdx := indexOf(stations, strings.ToUpper(from))
	toIdx := indexOf(stations, strings.ToUpper(to))
	if fromIdx == -1 || toIdx == -1 || fromIdx >= toIdx {
		return nil, fmt.Errorf("%w: %s-%s on %s", ErrStationNotOnCorridor, from, to, corridor)
	}

	sections := make([]string, 0, toIdx-fromIdx)
	for i := fromIdx; i < toIdx; i++ {
		sections = append(sections, stations[i]+"-"+stations[i+1])
	}
	return sections, nil
}

// SignalsForSection returns the ordered signals of a section, with any
// override rule that applies to the train substituted in.
func (c *Catalog) SignalsForSection(section string, variant Variant, id TrainIdentity, positions map[string]float64) []Signal {
	for _, rule := range c.overrides {
		if rule.Section == section && rule.Applies != nil && rule.Applies(id, positions) {
			return rule.Signals
		}
	}
	return c.signals[variant][section]
}

// ResolveRoute derives the corridor, variant and scheduled halt list for a trip
func (c *Catalog) ResolveRoute(id TrainIdentity) (*Route, error) {
	code := strings.TrimSpace(id.Code)
	var published []string
	if t, ok := c.Train(id.Number); ok {
		if code == "" {
			code = t.Code
		}
		published = t.Halts
	}
	if code == "" {
		return nil, fmt.Errorf("%w: no train code for %q", ErrUnknownCorridor, id.Number)
	}

	direction := Direction(code)
	if direction == "" {
		return nil, fmt.Errorf("%w: invalid train code %q", ErrUnknownCorridor, code)
	}
	base := baseCorridor(code, id.From, id.To, c.thbVSH, c.seStations, c.neStations)
	corridor := direction + base

	stations, err := c.StationsForCorridor(corridor)
	if err != nil {
		return nil, err
	}

	from := strings.ToUpper(strings.TrimSpace(id.From))
	to := strings.ToUpper(strings.TrimSpace(id.To))
	fromIdx := indexOf(stations, from)
	toIdx := indexOf(stations, to)
	if fromIdx == -1 || toIdx == -1 || fromIdx >= toIdx {
		return nil, fmt.Errorf("%w: %s-%s on %s", ErrStationNotOnCorridor, from, to, corridor)
	}

	schedule, err := scheduleWithin(stations[fromIdx:toIdx+1], published)
	if err != nil {
		return nil, fmt.Errorf("%w: train %s on %s", err, id.Number, corridor)
	}

	sections, err := c.SectionsSpanning(corridor, from, to)
	if err != nil {
		return nil, err
	}

	return &Route{
		Corridor:  corridor,
		Direction: direction,
		Variant:   variantFor(base),
		Schedule:  schedule,
		Sections:  sections,
	}, nil
}

// scheduleWithin keeps the published halts that fall inside the trip's
// station span, in span order. Without published halts every station stops.
func scheduleWithin(span, published []string) ([]string, error) {
	if len(published) == 0 {
		out := make([]string, len(span))
		copy(out, span)
		return out, nil
	}

	wanted := make(map[string]bool, len(published))
	for _, h := range published {
		code := strings.ToUpper(strings.TrimSpace(h))
		if indexOf(span, code) == -1 {
			continue
		}
		wanted[code] = true
	}

	// Endpoints are always part of the schedule
	wanted[span[0]] = true
	wanted[span[len(span)-1]] = true

	var out []string
	for _, st := range span {
		if wanted[st] {
			out = append(out, st)
		}
	}
	if len(out) < 2 {
		return nil, ErrStationNotOnCorridor
	}
	return out, nil
}

// SplitSection splits "A-B" into its endpoints
func SplitSection(name string) (string, string, bool) {
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, s := range list {
		m[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return m
}
