// Package store holds the caller-owned snapshot of the full record set:
// an explicit cache that is optimistically patched after each successful
// write and fully replaced on reload. It is a cache only; the repository
// owns the durable copy and the snapshot may be stale.
package store

import (
	"context"
	"sync"

	"assettrack-api/internal/models"
	"assettrack-api/internal/repository"
)

// Snapshot is a mutex-guarded copy of the record set. Last write wins;
// there is no cross-record transactionality.
type Snapshot struct {
	mu      sync.RWMutex
	repo    repository.AssetRepository
	records []models.AssetRecord
	loaded  bool
}

// NewSnapshot wraps a repository with an empty, unloaded snapshot.
func NewSnapshot(repo repository.AssetRepository) *Snapshot {
	return &Snapshot{repo: repo, records: []models.AssetRecord{}}
}

// Loaded reports whether at least one reload has succeeded.
func (s *Snapshot) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Reload fully replaces the snapshot from the repository. On failure the
// previous contents are kept and the error surfaces to the caller.
func (s *Snapshot) Reload(ctx context.Context) error {
	records, err := s.repo.FetchAll(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.loaded = true
	return nil
}

// Records returns a copy of the cached record set.
func (s *Snapshot) Records() []models.AssetRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AssetRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Get looks a cached record up by identity.
func (s *Snapshot) Get(id string) (models.AssetRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.AssetRecord{}, false
}

// ApplyLocalPatch replaces the cached record with the same identity, or
// appends it when absent. Call only after the backend write succeeded.
func (s *Snapshot) ApplyLocalPatch(records ...models.AssetRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		replaced := false
		for i := range s.records {
			if s.records[i].ID == rec.ID {
				s.records[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			s.records = append(s.records, rec)
		}
	}
}

// Remove drops the identified records from the cache.
func (s *Snapshot) Remove(ids ...string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, rec := range s.records {
		if !drop[rec.ID] {
			kept = append(kept, rec)
		}
	}
	s.records = kept
}
