package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/radarweather/radar-service/internal/models"
)

func testPayload() models.RadarPayload {
	return models.RadarPayload{
		Timestamp: "2026-08-23T12:00:00Z",
		Metadata: models.Metadata{
			Units:    "dBZ",
			LongName: "Reflectivity at Lowest Altitude",
			Source:   "https://example.com/radar.grib2.gz",
		},
		Points: []models.RadarPoint{
			{Lat: 35.5, Lon: -97.5, Value: 42.5},
			{Lat: 36.0, Lon: -98.0, Value: 0},
		},
	}
}

// TestPayloadStoreGetSet verifies the in-memory slot semantics: empty until
// set, then returns the last payload wholesale.
func TestPayloadStoreGetSet(t *testing.T) {
	store := NewPayloadStore(filepath.Join(t.TempDir(), "reflectivity.json"))

	if _, ok := store.Get(); ok {
		t.Fatal("Get() on empty store reported a payload")
	}

	want := testPayload()
	store.Set(want)
	got, ok := store.Get()
	if !ok {
		t.Fatal("Get() after Set reported no payload")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	// Second Set replaces, never merges.
	replacement := models.RadarPayload{Timestamp: "2026-08-23T13:00:00Z"}
	store.Set(replacement)
	got, _ = store.Get()
	if len(got.Points) != 0 || got.Timestamp != replacement.Timestamp {
		t.Errorf("Get() after replacement = %+v, want %+v", got, replacement)
	}
}

// TestPayloadStorePersistLoad verifies the disk round trip, including
// directory creation and restoration into memory.
func TestPayloadStorePersistLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts", "reflectivity.json")
	want := testPayload()

	if err := NewPayloadStore(path).Persist(want); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	// No temp file debris next to the committed payload.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("artifact dir has %d entries, want 1: %v", len(entries), entries)
	}

	// Fresh store simulates a restart.
	restarted := NewPayloadStore(path)
	got, ok, err := restarted.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !ok {
		t.Fatal("Load() reported no payload")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if inMem, ok := restarted.Get(); !ok || !reflect.DeepEqual(inMem, want) {
		t.Errorf("Get() after Load = %+v ok=%v, want payload restored", inMem, ok)
	}
}

// TestPayloadStoreLoad_Missing verifies an absent file is a cold start, not
// an error.
func TestPayloadStoreLoad_Missing(t *testing.T) {
	store := NewPayloadStore(filepath.Join(t.TempDir(), "missing.json"))
	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if ok {
		t.Error("Load() reported a payload for a missing file")
	}
}

// TestPayloadStoreLoad_Corrupt verifies a truncated file surfaces an error
// and leaves the in-memory slot empty.
func TestPayloadStoreLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflectivity.json")
	if err := os.WriteFile(path, []byte(`{"timestamp": "202`), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store := NewPayloadStore(path)
	_, ok, err := store.Load()
	if err == nil {
		t.Fatal("Load() on corrupt file returned nil error")
	}
	if ok {
		t.Error("Load() on corrupt file reported a payload")
	}
	if _, ok := store.Get(); ok {
		t.Error("Get() after failed Load reported a payload")
	}
}

// TestPayloadStorePersist_FieldNames verifies the on-disk JSON uses the wire
// field names clients depend on.
func TestPayloadStorePersist_FieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflectivity.json")
	if err := NewPayloadStore(path).Persist(testPayload()); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("parse persisted payload: %v", err)
	}
	for _, key := range []string{"timestamp", "metadata", "points"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("persisted payload missing %q key", key)
		}
	}
	var meta map[string]string
	if err := json.Unmarshal(raw["metadata"], &meta); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if meta["long_name"] != "Reflectivity at Lowest Altitude" {
		t.Errorf("metadata long_name = %q, want snake_case key with label", meta["long_name"])
	}
}
