package geocode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
)

// Cache maps raw address strings to the components returned for them. It is
// monotonic: an address is stored once and never replaced or evicted. Every
// new entry rewrites the whole backing file before Put returns.
type Cache struct {
	mu      sync.RWMutex
	path    string
	entries map[string][]crawler.AddressComponent
}

// OpenCache loads the cache stored at path. A missing file starts an empty
// cache; an empty path keeps the cache in memory only.
func OpenCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string][]crawler.AddressComponent)}
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read geocode cache: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c.entries); err != nil {
		return nil, fmt.Errorf("decode geocode cache %s: %w", path, err)
	}
	if c.entries == nil {
		c.entries = make(map[string][]crawler.AddressComponent)
	}
	return c, nil
}

// Get returns the cached components for address.
func (c *Cache) Get(address string) ([]crawler.AddressComponent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comps, ok := c.entries[address]
	return comps, ok
}

// Put stores comps under address unless an entry already exists, and
// persists the cache. It reports whether the entry was added. A persistence
// failure leaves the entry in memory and is returned.
func (c *Cache) Put(address string, comps []crawler.AddressComponent) (bool, error) {
	if comps == nil {
		comps = []crawler.AddressComponent{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[address]; ok {
		return false, nil
	}
	c.entries[address] = comps
	return true, c.persistLocked()
}

// Len reports the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// persistLocked writes sorted, indented JSON to a temp file and renames it
// over the cache file so readers never observe a partial write.
func (c *Cache) persistLocked() error {
	if c.path == "" {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.entries); err != nil {
		return fmt.Errorf("encode geocode cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace geocode cache: %w", err)
	}
	return nil
}
