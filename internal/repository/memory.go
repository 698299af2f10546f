package repository

import (
	"context"
	"sync"

	"assettrack-api/internal/history"
	"assettrack-api/internal/models"
)

// MemoryRepository is the in-process driver used by tests and local dev.
// It mirrors the grouped-file driver's partition semantics, including
// independent concurrent partition writes, so the contract can be exercised
// without a cloud backend.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]models.AssetRecord
	order   []string
	engine  *history.Engine

	failures map[string]error
}

// NewMemory returns an empty in-memory repository.
func NewMemory(engine *history.Engine) *MemoryRepository {
	return &MemoryRepository{
		records:  map[string]models.AssetRecord{},
		engine:   engine,
		failures: map[string]error{},
	}
}

// FailPartition makes every subsequent write touching the given site fail
// with err. Test hook for partition-independence behavior.
func (r *MemoryRepository) FailPartition(site string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, site)
		return
	}
	r.failures[site] = err
}

// Seed inserts records verbatim, bypassing the history engine. Lets tests
// stage backend contents that predate the current schema.
func (r *MemoryRepository) Seed(records ...models.AssetRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if _, exists := r.records[rec.ID]; !exists {
			r.order = append(r.order, rec.ID)
		}
		r.records[rec.ID] = rec
	}
}

// FetchAll returns every record in insertion order with defaults applied.
func (r *MemoryRepository) FetchAll(ctx context.Context) ([]models.AssetRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.AssetRecord, 0, len(r.order))
	for _, id := range r.order {
		rec := r.records[id].Clone()
		rec.ApplyDefaults()
		out = append(out, rec)
	}
	return out, nil
}

// AddMany finalizes drafts and writes them grouped by site, each group an
// independent branch as in the grouped-file driver.
func (r *MemoryRepository) AddMany(ctx context.Context, drafts []models.AssetRecord) (BatchReport, error) {
	finalized := make([]models.AssetRecord, 0, len(drafts))
	for _, draft := range drafts {
		finalized = append(finalized, r.engine.Create(draft))
	}
	groups, order := groupBySite(finalized)

	report := runPartitions(order, partitionMembers(groups), func(site string) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.failures[site]; err != nil {
			return err
		}
		for _, rec := range groups[site] {
			if _, exists := r.records[rec.ID]; !exists {
				r.order = append(r.order, rec.ID)
			}
			r.records[rec.ID] = rec
		}
		return nil
	})
	return report, report.Err()
}

// UpdateOne merges the patch into the stored record.
func (r *MemoryRepository) UpdateOne(ctx context.Context, id string, patch models.AssetPatch) (models.AssetRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[id]
	if !ok {
		return models.AssetRecord{}, ErrNotFound
	}
	if err := r.failures[current.Site]; err != nil {
		return models.AssetRecord{}, err
	}
	current.ApplyDefaults()
	updated, _ := r.engine.ApplyUpdate(current, patch)
	r.records[id] = updated
	return updated, nil
}

// DeleteMany removes records grouped by site, branches independent.
func (r *MemoryRepository) DeleteMany(ctx context.Context, records []models.AssetRecord) (BatchReport, error) {
	groups, order := groupBySite(records)

	report := runPartitions(order, partitionMembers(groups), func(site string) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.failures[site]; err != nil {
			return err
		}
		for _, rec := range groups[site] {
			if _, exists := r.records[rec.ID]; exists {
				delete(r.records, rec.ID)
				for i, id := range r.order {
					if id == rec.ID {
						r.order = append(r.order[:i], r.order[i+1:]...)
						break
					}
				}
			}
		}
		return nil
	})
	return report, report.Err()
}
