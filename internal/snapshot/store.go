package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// File names inside the data directory
const (
	HarvestFile  = "dividend_harvest.json"  // ResultSet envelope, mtime is the staleness signal
	UniverseFile = "qualified_universe.json" // qualified ticker universe
	LatestFile   = "latest.json"             // plain record array for dashboards
)

// ErrNotFound is returned when a snapshot file does not exist
var ErrNotFound = errors.New("snapshot not found")

// Store reads and atomically writes JSON snapshots in one directory.
// Readers see either the previous file or the new one, never a partial write.
// ⭐ SSOT: all snapshot file IO goes through this store
type Store struct {
	dir    string
	logger *logger.Logger
}

// NewStore creates the directory if needed
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: log}, nil
}

// Dir returns the snapshot directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path of a snapshot file
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Entry is a snapshot read back from disk
type Entry struct {
	Data    []byte
	ModTime time.Time
}

// Age returns how old the entry is at now
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.ModTime)
}

// Read returns the file bytes and modification time
func (s *Store) Read(name string) (*Entry, error) {
	path := s.Path(name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Entry{Data: data, ModTime: info.ModTime()}, nil
}

// ReadJSON decodes a snapshot into dest
func (s *Store) ReadJSON(name string, dest interface{}) (*Entry, error) {
	entry, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(entry.Data, dest); err != nil {
		return entry, &CorruptError{Name: name, Err: err}
	}
	return entry, nil
}

// WriteJSON marshals v as indented JSON and writes it atomically.
// It returns the exact bytes written.
func (s *Store) WriteJSON(name string, v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	if err := s.WriteAtomic(name, data); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteAtomic writes data to a temp file in the same directory, then renames it
func (s *Store) WriteAtomic(name string, data []byte) error {
	target := s.Path(name)

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"file":  target,
		"bytes": len(data),
	}).Debug("Snapshot written")
	return nil
}

// Remove deletes a snapshot; a missing file is not an error
func (s *Store) Remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// CorruptError reports a snapshot that exists but cannot be decoded
type CorruptError struct {
	Name string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("snapshot %s is corrupt: %v", e.Name, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// IsFresh reports whether a snapshot written at modTime is younger than ttl at now
func IsFresh(modTime time.Time, ttl time.Duration, now time.Time) bool {
	if modTime.IsZero() || ttl <= 0 {
		return false
	}
	return now.Sub(modTime) < ttl
}
