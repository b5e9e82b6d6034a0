package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"clipminer/internal/textutil"
)

// Stage names namespace the cache tree so artifact types never collide.
const (
	StageSearch      = "search"
	StageClips       = "clips"
	StageAnalysis    = "analysis"
	StageTranscripts = "transcripts"
	StageFinal       = "final"
)

// Store is a write-once, path-keyed JSON cache for expensive intermediate
// artifacts. Reads that fail for any reason (missing file, corrupt JSON) are
// treated as misses; the caller recomputes and re-puts, self-healing the
// entry. There is no eviction.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a cache store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Key builds a composite cache key for stages keyed by (word, slug).
func Key(word, slug string) string {
	return textutil.SanitizeToken(word) + "/" + textutil.SanitizeToken(slug)
}

// Get looks up the entry for (stage, key) and decodes it into value.
// It returns false on any read or decode failure.
func (s *Store) Get(stage, key string, value any) bool {
	data, err := os.ReadFile(s.entryPath(stage, key))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, value); err != nil {
		// Corrupt entry; the caller recomputes and overwrites it.
		return false
	}
	return true
}

// Put stores value under (stage, key). Writes go through a temp file and
// rename so a crash never leaves a half-written entry behind.
func (s *Store) Put(stage, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("cache put %s/%s: encode: %w", stage, key, err)
	}

	path := s.entryPath(stage, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache put %s/%s: ensure dir: %w", stage, key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return fmt.Errorf("cache put %s/%s: temp file: %w", stage, key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache put %s/%s: write: %w", stage, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache put %s/%s: close: %w", stage, key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache put %s/%s: rename: %w", stage, key, err)
	}
	return nil
}

// Has reports whether an entry exists without decoding it.
func (s *Store) Has(stage, key string) bool {
	info, err := os.Stat(s.entryPath(stage, key))
	return err == nil && !info.IsDir()
}

func (s *Store) entryPath(stage, key string) string {
	parts := []string{s.root, textutil.SanitizeToken(stage)}
	for _, segment := range strings.Split(key, "/") {
		parts = append(parts, textutil.SanitizeToken(segment))
	}
	last := len(parts) - 1
	parts[last] += ".json"
	return filepath.Join(parts...)
}
