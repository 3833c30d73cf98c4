// Package cache keeps a durable, per-collection snapshot of the last
// successful fetch, for offline reads and cheap change detection. One JSON
// file per collection URL; replacement is atomic via rename, so a failed
// write never corrupts the previous snapshot.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samber/mo"
)

// Snapshot is the cached state of one remote collection. Items are stored
// as raw JSON so the cache stays agnostic of events vs contacts.
type Snapshot struct {
	CollectionURL  string            `json:"collectionUrl"`
	Items          []json.RawMessage `json:"items"`
	CollectionEtag string            `json:"collectionEtag,omitempty"`
	LastUpdated    time.Time         `json:"lastUpdated"`
}

// Stats describes the cache without mutating it.
type Stats struct {
	Collections int
	Items       int
	ApproxBytes int64
	LastUpdated time.Time
}

// Store is a directory-backed snapshot store. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	dir   string
	index map[string]Snapshot
}

// Open loads existing snapshots from dir, creating it when absent.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	s := &Store{dir: dir, index: make(map[string]Snapshot)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil || snap.CollectionURL == "" {
			// Corrupt snapshots are ignored; the next sync rewrites them.
			continue
		}
		s.index[snap.CollectionURL] = snap
	}
	return s, nil
}

func (s *Store) path(collectionURL string) string {
	sum := sha1.Sum([]byte(collectionURL))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

// Get returns the snapshot for a collection URL, or None when the
// collection has never been cached.
func (s *Store) Get(collectionURL string) mo.Option[Snapshot] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.index[collectionURL]
	if !ok {
		return mo.None[Snapshot]()
	}
	return mo.Some(snap)
}

// Put replaces the collection's snapshot wholesale. On any failure the
// previous snapshot stays untouched.
func (s *Store) Put(collectionURL string, items []json.RawMessage, collectionEtag string) error {
	snap := Snapshot{
		CollectionURL:  collectionURL,
		Items:          items,
		CollectionEtag: collectionEtag,
		LastUpdated:    time.Now().UTC(),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(collectionURL)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.index[collectionURL] = snap
	return nil
}

// Clear removes every snapshot.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}
	s.index = make(map[string]Snapshot)
	return nil
}

// Stats reports collection/item counts, approximate size and the most
// recent update time.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Collections: len(s.index)}
	for _, snap := range s.index {
		stats.Items += len(snap.Items)
		for _, item := range snap.Items {
			stats.ApproxBytes += int64(len(item))
		}
		if snap.LastUpdated.After(stats.LastUpdated) {
			stats.LastUpdated = snap.LastUpdated
		}
	}
	return stats
}
