package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultRetention = 30 * 24 * time.Hour

// diskEntry is the on-disk JSON document for one cached vector.
type diskEntry struct {
	Vector    []float32         `json:"vector"`
	ModelID   string            `json:"model_id"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DiskTier stores one JSON file per vector under basePath, sharded by the
// first two key characters. Expired entries are deleted lazily on read.
type DiskTier struct {
	basePath  string
	retention time.Duration
	logger    *slog.Logger
}

func NewDiskTier(basePath string, retention time.Duration, logger *slog.Logger) (*DiskTier, error) {
	if basePath == "" {
		basePath = "./data/embedding_cache"
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DiskTier{basePath: basePath, retention: retention, logger: logger}, nil
}

func (t *DiskTier) path(key string) string {
	shard := "00"
	if len(key) >= 2 {
		shard = key[:2]
	}
	return filepath.Join(t.basePath, shard, key+".json")
}

func (t *DiskTier) Get(_ context.Context, key string) ([]float32, bool) {
	path := t.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("cache_disk_read_failed", "key", key, "error", err)
		}
		return nil, false
	}

	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt file: drop it so the slot heals on the next write.
		t.logger.Warn("cache_disk_entry_corrupt", "key", key, "error", err)
		_ = os.Remove(path)
		return nil, false
	}

	if time.Since(entry.CreatedAt) > t.retention {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Vector, true
}

func (t *DiskTier) Put(_ context.Context, key string, vector []float32, modelID string, metadata map[string]string) {
	entry := diskEntry{
		Vector:    vector,
		ModelID:   modelID,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		t.logger.Warn("cache_disk_encode_failed", "key", key, "error", err)
		return
	}

	path := t.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.logger.Warn("cache_disk_write_failed", "key", key, "error", err)
		return
	}
	// Write-then-rename keeps concurrent readers from seeing partial files.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.logger.Warn("cache_disk_write_failed", "key", key, "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		t.logger.Warn("cache_disk_write_failed", "key", key, "error", err)
		_ = os.Remove(tmp)
	}
}

// Entries counts cached files. It walks the shard tree on every call, which
// is acceptable for a stats endpoint.
func (t *DiskTier) Entries() int64 {
	var count int64
	_ = filepath.WalkDir(t.basePath, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			count++
		}
		return nil
	})
	return count
}
