// Package checkpoint persists which work units finished so an interrupted
// crawl can resume without repeating them.
package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// Ledger is an append-only set of completed unit keys backed by a text file
// with one key per line.
type Ledger struct {
	mu   sync.Mutex
	path string
	done map[string]struct{}
}

// PathFor returns the ledger file for one query and state inside dir, so
// crawls for different queries never share completion state.
func PathFor(dir, query, state string) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(query), "_"), "_")
	if slug == "" {
		slug = "crawl"
	}
	if state = strings.ToUpper(strings.TrimSpace(state)); state != "" {
		slug += "_" + state
	}
	return filepath.Join(dir, slug+".done")
}

// Open loads the ledger at path. A missing file is a cold start.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}
	l := &Ledger{path: path, done: make(map[string]struct{})}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if key := strings.TrimSpace(scanner.Text()); key != "" {
			l.done[key] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return l, nil
}

// Path returns the backing file.
func (l *Ledger) Path() string {
	return l.path
}

// Contains reports whether key was marked done.
func (l *Ledger) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[key]
	return ok
}

// Len reports the number of completed keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.done)
}

// MarkDone appends key to the ledger file and syncs it. Keys already present
// are not written twice.
func (l *Ledger) MarkDone(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, "\r\n") {
		return fmt.Errorf("invalid ledger key %q", key)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.done[key]; ok {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open ledger for append: %w", err)
	}
	if _, err := f.WriteString(key + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	l.done[key] = struct{}{}
	return nil
}
