// Package peercache persists known peers to a single pretty-printed JSON
// file, keyed by node id. See spec.md §4.2.
package peercache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/clawnet/clawnet/internal/clawerr"
)

// PeerRecord is a cached peer, as described in spec.md §3.
type PeerRecord struct {
	NodeID       string            `json:"node_id"`
	Name         string            `json:"name"`
	Capabilities []string          `json:"capabilities"`
	LastSeen     int64             `json:"last_seen"`
	TTL          int64             `json:"ttl"`
	Addresses    []string          `json:"addresses"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the record is expired as of now.
func (r PeerRecord) Expired(now time.Time) bool {
	return now.Unix() > r.LastSeen+r.TTL
}

// Store is a file-backed peer cache. Every call reads the underlying
// file and every change rewrites it; this is acceptable given low call rates and small
// file size (spec.md §4.2). Writes are atomic via temp-file + rename so
// other processes always observe a consistent snapshot.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store backed by path. The file need not exist yet; it is
// created on the first write.
func New(path string) *Store {
	return &Store{path: path}
}

// Upsert unconditionally replaces the record for peer.NodeID.
func (s *Store) Upsert(peer PeerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return err
	}
	records[peer.NodeID] = peer
	return s.writeLocked(records)
}

// List returns all records, sorted by LastSeen descending. If
// includeExpired is false, expired records are omitted.
func (s *Store) List(includeExpired bool) ([]PeerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]PeerRecord, 0, len(records))
	for _, r := range records {
		if !includeExpired && r.Expired(now) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen > out[j].LastSeen })
	return out, nil
}

// PruneExpired removes expired records and returns the removed count.
// The file is written only if something was removed.
func (s *Store) PruneExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	removed := 0
	for id, r := range records {
		if r.Expired(now) {
			delete(records, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.writeLocked(records); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) readLocked() (map[string]PeerRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]PeerRecord), nil
		}
		return nil, clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("read peer cache %s: %w", s.path, err))
	}
	if len(data) == 0 {
		return make(map[string]PeerRecord), nil
	}

	var records map[string]PeerRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("decode peer cache %s: %w", s.path, err))
	}
	if records == nil {
		records = make(map[string]PeerRecord)
	}
	return records, nil
}

// writeLocked atomically replaces the cache file's contents: write to a
// temp file in the same directory, then rename over the target. This
// survives a crash mid-write without ever leaving a truncated file.
func (s *Store) writeLocked(records map[string]PeerRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return clawerr.Wrap(clawerr.KindInvalidInput, fmt.Errorf("encode peer cache: %w", err))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("create peer cache dir %s: %w", dir, err))
	}

	tmp, err := os.CreateTemp(dir, ".peers-*.json.tmp")
	if err != nil {
		return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("create temp peer cache file: %w", err))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("write temp peer cache file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("close temp peer cache file: %w", err))
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return clawerr.Wrap(clawerr.KindResourceUnavailable, fmt.Errorf("replace peer cache file: %w", err))
	}
	return nil
}
