package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Root      string
	IndexFile string
	// MaxEntries bounds the store with LRU eviction. Zero keeps every entry.
	MaxEntries int
}

type diskEntry struct {
	File       string    `json:"file"`
	Size       int64     `json:"size"`
	AccessedAt time.Time `json:"accessed_at"`
}

type diskIndex struct {
	Entries map[string]diskEntry `json:"entries"`
}

// Store is the device-local cache backend: one file per key plus a JSON
// index. It does not interpret values, so expired cache entries stay on disk
// until overwritten or cleared.
type Store struct {
	mu sync.Mutex

	dataDir   string
	indexPath string

	maxEntries int
	now        func() time.Time

	entries map[string]diskEntry
}

func New(cfg Config) (*Store, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, fmt.Errorf("root is required")
	}
	if cfg.MaxEntries < 0 {
		cfg.MaxEntries = 0
	}
	indexFile := strings.TrimSpace(cfg.IndexFile)
	if indexFile == "" {
		indexFile = "index.json"
	}

	s := &Store{
		dataDir:    filepath.Join(root, "data"),
		indexPath:  filepath.Join(root, indexFile),
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
		entries:    map[string]diskEntry{},
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, err
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	if err := s.reconcileLocked(); err != nil {
		return nil, err
	}
	if err := s.persistIndexLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, fmt.Errorf("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	raw, err := os.ReadFile(filepath.Join(s.dataDir, ent.File))
	if err != nil {
		if os.IsNotExist(err) {
			s.removeEntryLocked(key, ent)
			return nil, false, s.persistIndexLocked()
		}
		return nil, false, err
	}
	if s.maxEntries > 0 {
		ent.AccessedAt = s.now()
		s.entries[key] = ent
		if err := s.persistIndexLocked(); err != nil {
			return nil, false, err
		}
	}
	return raw, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("key is required")
	}
	file := hashedName(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(filepath.Join(s.dataDir, file), value); err != nil {
		return err
	}
	s.entries[key] = diskEntry{
		File:       file,
		Size:       int64(len(value)),
		AccessedAt: s.now(),
	}
	s.evictLocked()
	return s.persistIndexLocked()
}

func (s *Store) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.entries[key]; ok {
		s.removeEntryLocked(key, ent)
		return s.persistIndexLocked()
	}
	return nil
}

// Clear removes every entry and its data file.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ent := range s.entries {
		_ = os.Remove(filepath.Join(s.dataDir, ent.File))
	}
	s.entries = map[string]diskEntry{}
	return s.persistIndexLocked()
}

// Keys lists stored keys in lexical order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) loadIndex() error {
	raw, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = map[string]diskEntry{}
			return nil
		}
		return err
	}
	var idx diskIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		// An unreadable index only loses cached data, so start empty.
		s.entries = map[string]diskEntry{}
		return nil
	}
	if idx.Entries == nil {
		idx.Entries = map[string]diskEntry{}
	}
	s.entries = idx.Entries
	return nil
}

func (s *Store) reconcileLocked() error {
	for key, ent := range s.entries {
		if _, err := os.Stat(filepath.Join(s.dataDir, ent.File)); err != nil {
			if os.IsNotExist(err) {
				s.removeEntryLocked(key, ent)
				continue
			}
			return err
		}
	}
	s.evictLocked()
	return nil
}

func (s *Store) evictLocked() {
	if s.maxEntries <= 0 {
		return
	}
	for len(s.entries) > s.maxEntries {
		key, ent, ok := s.leastRecentlyUsedLocked()
		if !ok {
			return
		}
		s.removeEntryLocked(key, ent)
	}
}

func (s *Store) leastRecentlyUsedLocked() (string, diskEntry, bool) {
	var (
		oldestKey string
		oldest    diskEntry
		found     bool
	)
	for key, ent := range s.entries {
		if !found || ent.AccessedAt.Before(oldest.AccessedAt) ||
			(ent.AccessedAt.Equal(oldest.AccessedAt) && key < oldestKey) {
			oldestKey, oldest, found = key, ent, true
		}
	}
	return oldestKey, oldest, found
}

func (s *Store) removeEntryLocked(key string, ent diskEntry) {
	delete(s.entries, key)
	_ = os.Remove(filepath.Join(s.dataDir, ent.File))
}

func (s *Store) persistIndexLocked() error {
	raw, err := json.MarshalIndent(diskIndex{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.indexPath, raw)
}

func writeFileAtomic(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hashedName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + ".json"
}
