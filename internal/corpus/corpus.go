// Package corpus holds past-run distance sheets used as the prior when
// matching a new trip's halts to stations.
package corpus

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Corpus is a set of sheets keyed by corridor name
type Corpus struct {
	mu     sync.RWMutex
	sheets map[string]*Sheet
}

// New creates a corpus from already parsed sheets
func New(sheets ...*Sheet) *Corpus {
	c := &Corpus{sheets: make(map[string]*Sheet)}
	for _, s := range sheets {
		c.Add(s)
	}
	return c
}

// LoadDir reads every *.csv file in dir as a sheet
func LoadDir(dir string) (*Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus dir: %w", err)
	}

	c := New()
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		sheet, err := LoadSheet(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Printf("Warning: skipping sheet %s: %v", e.Name(), err)
			continue
		}
		c.Add(sheet)
	}

	log.Printf("Corpus loaded: %d sheets from %s", c.Len(), dir)
	return c, nil
}

// Add registers or replaces a sheet
func (c *Corpus) Add(s *Sheet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sheets[strings.ToUpper(s.Name)] = s
}

// Sheet returns the sheet for a corridor
func (c *Corpus) Sheet(name string) (*Sheet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sheets[strings.ToUpper(name)]
	return s, ok
}

// Names returns sheet names in sorted order
func (c *Corpus) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.sheets))
	for n := range c.sheets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of sheets
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sheets)
}
