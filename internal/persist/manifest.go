package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProvenanceType is the manifest's `type` field, naming where a loaded
// index came from.
type ProvenanceType string

const (
	TypeProject   ProvenanceType = "package"
	TypeLocal     ProvenanceType = "local"
	TypeSDK       ProvenanceType = "sdk"
	TypeFramework ProvenanceType = "framework"
	TypeHosted    ProvenanceType = "hosted"
	TypeGit       ProvenanceType = "git"
)

// Manifest is the manifest.json sidecar spec.md §6 describes.
type Manifest struct {
	Type       ProvenanceType `json:"type"`
	Name       string         `json:"name"`
	Version    string         `json:"version,omitempty"`
	SourcePath string         `json:"sourcePath"`
	IndexedAt  time.Time      `json:"indexedAt"`

	// IndexedPaths records the exact set of indexable source paths at
	// save time, used by the cache-validity check (spec.md §4.4): a
	// mismatch against the current enumeration forces a full re-index.
	IndexedPaths []string `json:"indexedPaths,omitempty"`
}

func manifestPath(dir string) string { return filepath.Join(dir, "manifest.json") }
func dbPath(dir string) string       { return filepath.Join(dir, "index") }

// WriteManifest writes dir/manifest.json atomically (write-temp, rename).
func WriteManifest(dir string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := manifestPath(dir) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write manifest temp: %w", err)
	}
	if err := os.Rename(tmp, manifestPath(dir)); err != nil {
		return fmt.Errorf("rename manifest: %w", err)
	}
	return nil
}

// ReadManifest reads dir/manifest.json. Returns os.ErrNotExist (wrapped)
// when absent — callers treat that as a cache miss.
func ReadManifest(dir string) (Manifest, error) {
	b, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}
