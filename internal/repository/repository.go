// Package repository is the durable store contract for asset records,
// independent of backend shape. Two production drivers exist: an S3
// grouped-file store (one JSON array per site) and a DynamoDB flat table
// keyed by record id. A memory driver serves tests and local development.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"assettrack-api/internal/models"
)

// Driver identifies a concrete repository backend.
type Driver string

const (
	// DriverS3 stores one JSON-array object per site in a bucket.
	DriverS3 Driver = "s3"
	// DriverDynamoDB stores one item per record in a flat table.
	DriverDynamoDB Driver = "dynamodb"
	// DriverMemory is the in-process driver for tests and local dev.
	DriverMemory Driver = "memory"
)

// batchLimit matches the cloud batch-write item cap.
const batchLimit = 25

// opTimeout bounds every backend call; the source never specified one, so
// the repository boundary adds it defensively.
const opTimeout = 15 * time.Second

// ErrNotFound is returned when a targeted identity does not exist.
var ErrNotFound = errors.New("asset not found")

// ConfigError signals required backend configuration missing at first use.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("storage backend not configured: %s missing", e.Missing)
}

// IsConfigError reports whether err is a backend configuration failure.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// PartitionResult reports the outcome of one independent partition or batch
// write. Error is empty on success. RecordIDs lists the identities the write
// covered, so callers can reconcile partial outcomes without knowing how the
// driver labels its partitions.
type PartitionResult struct {
	Partition string   `json:"partition"`
	Count     int      `json:"count"`
	RecordIDs []string `json:"recordIds,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// BatchReport aggregates per-partition outcomes of a grouped write. One
// partition failing never rolls back or blocks its siblings.
type BatchReport struct {
	Succeeded []PartitionResult `json:"succeeded"`
	Failed    []PartitionResult `json:"failed"`
}

// Err folds the report into a single error, nil when nothing failed.
func (r BatchReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Partition, f.Error))
	}
	return fmt.Errorf("%d partition(s) failed: %s", len(r.Failed), strings.Join(parts, "; "))
}

// AssetRepository is the store contract. Writes surface their errors;
// reads treat a missing backend entity as zero results. Concurrent updates
// to one identity race and the last write wins.
type AssetRepository interface {
	// FetchAll returns every stored record with status and history
	// defaulted when the backend omits them.
	FetchAll(ctx context.Context) ([]models.AssetRecord, error)
	// AddMany persists drafts, finalizing each through the history engine
	// before dispatch. Partition writes are independent.
	AddMany(ctx context.Context, drafts []models.AssetRecord) (BatchReport, error)
	// UpdateOne merges a patch into the identified record and writes the
	// result back, relocating it when the partition key changed.
	UpdateOne(ctx context.Context, id string, patch models.AssetPatch) (models.AssetRecord, error)
	// DeleteMany removes the given records by identity.
	DeleteMany(ctx context.Context, records []models.AssetRecord) (BatchReport, error)
}

// SanitizePartitionKey maps a site name to a storage-safe partition key:
// every character outside [A-Za-z0-9_-] becomes '_'.
func SanitizePartitionKey(site string) string {
	var b strings.Builder
	b.Grow(len(site))
	for _, r := range site {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// groupBySite buckets records per partition attribute, keeping first-seen
// partition order for deterministic reports.
func groupBySite(records []models.AssetRecord) (map[string][]models.AssetRecord, []string) {
	groups := map[string][]models.AssetRecord{}
	order := []string{}
	for _, rec := range records {
		if _, seen := groups[rec.Site]; !seen {
			order = append(order, rec.Site)
		}
		groups[rec.Site] = append(groups[rec.Site], rec)
	}
	return groups, order
}

// chunkRecords splits records into slices of at most size elements.
func chunkRecords(records []models.AssetRecord, size int) [][]models.AssetRecord {
	var chunks [][]models.AssetRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// withOpTimeout derives the bounded context used for each backend call.
func withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// partitionMembers maps each partition to the identities of its records.
func partitionMembers(groups map[string][]models.AssetRecord) map[string][]string {
	members := map[string][]string{}
	for partition, recs := range groups {
		ids := make([]string, 0, len(recs))
		for _, rec := range recs {
			ids = append(ids, rec.ID)
		}
		members[partition] = ids
	}
	return members
}

// runPartitions dispatches one goroutine per partition and gathers the
// per-partition outcomes: the parallel-await-all pattern, where a failing
// branch is reported but never cancels a sibling.
func runPartitions(partitions []string, members map[string][]string, run func(partition string) error) BatchReport {
	type outcome struct {
		result PartitionResult
		failed bool
	}

	var wg sync.WaitGroup
	outcomes := make([]outcome, len(partitions))
	for i, partition := range partitions {
		wg.Add(1)
		go func(i int, partition string) {
			defer wg.Done()
			res := PartitionResult{
				Partition: partition,
				Count:     len(members[partition]),
				RecordIDs: members[partition],
			}
			if err := run(partition); err != nil {
				res.Error = err.Error()
				outcomes[i] = outcome{result: res, failed: true}
				return
			}
			outcomes[i] = outcome{result: res}
		}(i, partition)
	}
	wg.Wait()

	report := BatchReport{Succeeded: []PartitionResult{}, Failed: []PartitionResult{}}
	for _, o := range outcomes {
		if o.failed {
			report.Failed = append(report.Failed, o.result)
		} else {
			report.Succeeded = append(report.Succeeded, o.result)
		}
	}
	sort.Slice(report.Succeeded, func(i, j int) bool { return report.Succeeded[i].Partition < report.Succeeded[j].Partition })
	sort.Slice(report.Failed, func(i, j int) bool { return report.Failed[i].Partition < report.Failed[j].Partition })
	return report
}
