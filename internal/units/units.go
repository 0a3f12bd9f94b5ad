// Package units loads the counties a crawl covers from a YAML file.
package units

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
)

// File is the on-disk units document.
type File struct {
	Query    string   `yaml:"query"`
	State    string   `yaml:"state"`
	Counties []County `yaml:"counties"`
}

// County is one search location, biased to its centroid.
type County struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Load reads and validates a units file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "units: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a units document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "units: parse")
	}
	f.Query = strings.TrimSpace(f.Query)
	f.State = strings.ToUpper(strings.TrimSpace(f.State))

	seen := make(map[string]struct{}, len(f.Counties))
	for i, c := range f.Counties {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, eris.Errorf("units: county %d has no name", i)
		}
		if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return nil, eris.Errorf("units: county %q has out of range coordinates %v,%v", c.Name, c.Lat, c.Lon)
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return nil, eris.Errorf("units: county %q listed twice", c.Name)
		}
		seen[key] = struct{}{}
		f.Counties[i] = c
	}
	return &f, nil
}

// Selection narrows and overrides what a File produces.
type Selection struct {
	// Query and State replace the file's values when set.
	Query string
	State string
	// Counties keeps only the named counties, case-insensitively.
	Counties []string
}

// WorkUnits expands the file into one unit per selected county, in file
// order.
func (f *File) WorkUnits(sel Selection) ([]crawler.WorkUnit, error) {
	query := f.Query
	if q := strings.TrimSpace(sel.Query); q != "" {
		query = q
	}
	state := f.State
	if s := strings.TrimSpace(sel.State); s != "" {
		state = strings.ToUpper(s)
	}
	if query == "" {
		return nil, eris.New("units: query is required")
	}
	if state == "" {
		return nil, eris.New("units: state is required")
	}

	want := make(map[string]bool, len(sel.Counties))
	for _, name := range sel.Counties {
		want[strings.ToLower(strings.TrimSpace(name))] = false
	}

	out := make([]crawler.WorkUnit, 0, len(f.Counties))
	for _, c := range f.Counties {
		key := strings.ToLower(c.Name)
		if len(want) > 0 {
			if _, ok := want[key]; !ok {
				continue
			}
			want[key] = true
		}
		out = append(out, crawler.WorkUnit{
			Query:         query,
			LocationLabel: c.Name,
			StateCode:     state,
			Latitude:      c.Lat,
			Longitude:     c.Lon,
		})
	}
	for name, found := range want {
		if !found {
			return nil, eris.Errorf("units: county %q not in file", name)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("units: no counties selected")
	}
	return out, nil
}
