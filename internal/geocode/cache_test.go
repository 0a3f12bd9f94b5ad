package geocode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
)

func comps(pairs ...string) []crawler.AddressComponent {
	var out []crawler.AddressComponent
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, crawler.AddressComponent{LongName: pairs[i+1], ShortName: pairs[i+1], Types: []string{pairs[i]}})
	}
	return out
}

func TestCacheRoundTripIndependentOfInsertOrder(t *testing.T) {
	t.Parallel()

	entries := map[string][]crawler.AddressComponent{
		"12 Elm St":   comps("street_number", "12", "route", "Elm St"),
		"9 Oak Ave":   comps("locality", "Shelbyville"),
		"1 Main St":   comps("postal_code", "62701"),
		"nowhere, XX": {},
	}
	orders := [][]string{
		{"12 Elm St", "9 Oak Ave", "1 Main St", "nowhere, XX"},
		{"nowhere, XX", "1 Main St", "9 Oak Ave", "12 Elm St"},
	}

	var files []string
	for i, order := range orders {
		path := filepath.Join(t.TempDir(), "cache", "geocode_cache.json")
		c, err := OpenCache(path)
		require.NoError(t, err)
		for _, addr := range order {
			added, err := c.Put(addr, entries[addr])
			require.NoError(t, err)
			require.True(t, added)
		}

		reloaded, err := OpenCache(path)
		require.NoError(t, err, "order %d", i)
		require.Equal(t, len(entries), reloaded.Len())
		for addr, want := range entries {
			got, ok := reloaded.Get(addr)
			require.True(t, ok, addr)
			require.Equal(t, want, got)
		}
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		files = append(files, string(raw))
	}
	require.Equal(t, files[0], files[1], "file contents are sorted and stable")
	require.True(t, strings.HasSuffix(files[0], "}\n"))
	require.Contains(t, files[0], "\n  \"1 Main St\": [")
}

func TestCacheIsMonotonic(t *testing.T) {
	t.Parallel()

	c, err := OpenCache(filepath.Join(t.TempDir(), "geocode_cache.json"))
	require.NoError(t, err)

	added, err := c.Put("12 Elm St", comps("route", "Elm St"))
	require.NoError(t, err)
	require.True(t, added)

	added, err = c.Put("12 Elm St", comps("route", "Different Rd"))
	require.NoError(t, err)
	require.False(t, added)

	got, _ := c.Get("12 Elm St")
	require.Equal(t, "Elm St", got[0].LongName)
}

func TestOpenCacheEdgeCases(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := OpenCache(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	require.Zero(t, c.Len())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	c, err = OpenCache(empty)
	require.NoError(t, err)
	require.Zero(t, c.Len())

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))
	_, err = OpenCache(corrupt)
	require.Error(t, err)

	mem, err := OpenCache("")
	require.NoError(t, err)
	added, err := mem.Put("a", nil)
	require.NoError(t, err)
	require.True(t, added)
	got, ok := mem.Get("a")
	require.True(t, ok)
	require.Empty(t, got)
}

func TestCacheLoadsOriginalFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "geocode_cache.json")
	legacy := `{
  "12 Elm St, Springfield": [
    {"long_name": "12", "short_name": "12", "types": ["street_number"]},
    {"long_name": "Elm Street", "short_name": "Elm St", "types": ["route"]}
  ]
}
`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))
	c, err := OpenCache(path)
	require.NoError(t, err)
	got, ok := c.Get("12 Elm St, Springfield")
	require.True(t, ok)
	require.Equal(t, "route", got[1].Type())
	require.Equal(t, "Elm Street", got[1].LongName)
}
