package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/radarweather/radar-service/internal/models"
)

// PayloadStore holds the most recent payload in memory and mirrors it to a
// fixed JSON file. One slot, replaced wholesale; never partially updated.
type PayloadStore struct {
	mu      sync.RWMutex
	path    string
	payload *models.RadarPayload
}

// NewPayloadStore creates a PayloadStore persisting to path.
func NewPayloadStore(path string) *PayloadStore {
	return &PayloadStore{path: path}
}

// Get returns the in-memory payload, if one has been set or loaded.
func (s *PayloadStore) Get() (models.RadarPayload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return models.RadarPayload{}, false
	}
	return *s.payload, true
}

// Set replaces the in-memory payload.
func (s *PayloadStore) Set(p models.RadarPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = &p
}

// Persist writes p to the JSON file via a sibling temp file and rename, so a
// reader never observes a truncated payload. Callers treat failure as
// log-and-continue; the response does not depend on it.
func (s *PayloadStore) Persist(p models.RadarPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create payload dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit payload: %w", err)
	}
	return nil
}

// Load restores the persisted payload into memory. Returns false when no
// file exists; an unreadable or corrupt file is an error the caller may
// ignore (the slot simply starts cold).
func (s *PayloadStore) Load() (models.RadarPayload, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.RadarPayload{}, false, nil
		}
		return models.RadarPayload{}, false, fmt.Errorf("read payload file: %w", err)
	}
	var p models.RadarPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.RadarPayload{}, false, fmt.Errorf("parse payload file: %w", err)
	}
	s.mu.Lock()
	s.payload = &p
	s.mu.Unlock()
	return p, true, nil
}
