package tides

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed stations.yaml
var defaultCatalog []byte

// Station is a tide prediction station. Two stations are the same station if
// their IDs match.
type Station struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Region string  `json:"region" yaml:"region"`
	Lat    float64 `json:"lat" yaml:"lat"`
	Long   float64 `json:"long" yaml:"long"`
	TZ     string  `json:"tz" yaml:"tz"`
}

func (s Station) Equal(o Station) bool {
	return s.ID == o.ID
}

// Location loads the station's time zone, falling back to UTC.
func (s Station) Location() *time.Location {
	if s.TZ == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Catalog is the fixed, ordered list of known stations.
type Catalog struct {
	Stations []Station `yaml:"stations"`
}

// DefaultCatalog is the catalog compiled into the binary.
var DefaultCatalog = mustParseCatalog(defaultCatalog)

// LoadCatalog reads a catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func mustParseCatalog(data []byte) *Catalog {
	c, err := ParseCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) validate() error {
	if len(c.Stations) == 0 {
		return fmt.Errorf("catalog has no stations")
	}
	seen := make(map[string]bool, len(c.Stations))
	for _, s := range c.Stations {
		if s.ID == "" {
			return fmt.Errorf("station %q has no id", s.Name)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate station id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// Default is the station used when nothing has been chosen yet.
func (c *Catalog) Default() Station {
	return c.Stations[0]
}

// Lookup finds a station by ID.
func (c *Catalog) Lookup(id string) (Station, bool) {
	for _, s := range c.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}
