package checksums

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// FileName is the name of the checksum map file kept in the staging folder
	FileName = "checksums.csv"
	// TempPrefix names the temporary file Save writes before renaming it into place
	TempPrefix = ".webinsync-checksums-"
)

// Map records the checksum that was stripped from each staged file name
type Map struct {
	entries map[string]string
	dirty   bool
}

// New returns an empty, clean map
func New() *Map {
	return &Map{entries: make(map[string]string)}
}

// Load reads a checksum map file. A missing file yields an empty map.
func Load(path string) (*Map, error) {
	m := New()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to open checksum file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Names never contain a comma; the checksum is everything after the first one
		name, sum, _ := strings.Cut(line, ",")
		m.entries[name] = sum
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checksum file: %w", err)
	}

	return m, nil
}

// Set records the checksum for name and marks the map dirty
func (m *Map) Set(name, checksum string) {
	m.entries[name] = checksum
	m.dirty = true
}

// Delete forgets name and marks the map dirty if it was present
func (m *Map) Delete(name string) {
	if _, ok := m.entries[name]; !ok {
		return
	}
	delete(m.entries, name)
	m.dirty = true
}

// Get returns the checksum recorded for name
func (m *Map) Get(name string) (string, bool) {
	sum, ok := m.entries[name]
	return sum, ok
}

// Has reports whether name was ever stripped of a checksum
func (m *Map) Has(name string) bool {
	_, ok := m.entries[name]
	return ok
}

// Len returns the number of entries
func (m *Map) Len() int {
	return len(m.entries)
}

// Dirty reports whether the map changed since it was loaded or last saved
func (m *Map) Dirty() bool {
	return m.dirty
}

// Names returns all recorded names in sorted order
func (m *Map) Names() []string {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the map to path, replacing any existing file atomically
func (m *Map) Save(path string) error {
	lines := make([]string, 0, len(m.entries))
	for _, name := range m.Names() {
		lines = append(lines, name+","+m.entries[name])
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp checksum file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.WriteString(strings.Join(lines, "\n")); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write checksum file: %w", err)
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace checksum file: %w", err)
	}

	m.dirty = false
	return nil
}

// SaveIfDirty saves the map only when it changed, reporting whether it wrote
func (m *Map) SaveIfDirty(path string) (bool, error) {
	if !m.dirty {
		return false, nil
	}
	if err := m.Save(path); err != nil {
		return false, err
	}
	return true, nil
}
