package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	DefaultStorageFileName = ".tokenmint-records.json"
)

// Storage handles persistence of mint records. An empty file path keeps
// records in memory only.
type Storage struct {
	filePath string
	mu       sync.RWMutex
	records  map[string]*MintRecord
}

// recordFile represents the JSON structure for storage
type recordFile struct {
	Records map[string]*MintRecord `json:"records"`
}

// NewStorage creates a new storage instance, loading any existing file
func NewStorage(filePath string) (*Storage, error) {
	storage := &Storage{
		filePath: filePath,
		records:  make(map[string]*MintRecord),
	}

	if filePath == "" {
		return storage, nil
	}

	if err := storage.load(); err != nil {
		// A missing file is created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load records: %w", err)
		}
	}

	return storage, nil
}

// DefaultPath returns the record file location in the user's home directory
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultStorageFileName), nil
}

// load reads records from the storage file
func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file recordFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal records: %w", err)
	}

	s.records = file.Records
	if s.records == nil {
		s.records = make(map[string]*MintRecord)
	}

	return nil
}

// saveLocked writes records to the storage file. Callers hold mu.
func (s *Storage) saveLocked() error {
	if s.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(recordFile{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// update runs fn with exclusive access to the record map and persists the
// result when fn reports a change. A failed save restores the map, so memory
// never holds records the file does not.
func (s *Storage) update(fn func(records map[string]*MintRecord) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*MintRecord, len(s.records))
	for key, r := range s.records {
		snapshot[key] = r.clone()
	}

	changed, err := fn(s.records)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := s.saveLocked(); err != nil {
		s.records = snapshot
		return err
	}
	return nil
}

// view runs fn with shared access to the record map
func (s *Storage) view(fn func(records map[string]*MintRecord)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.records)
}

// Count returns the total number of records
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// FilePath returns the storage file path
func (s *Storage) FilePath() string {
	return s.filePath
}
