// Package query derives filtered lists and aggregate counts from an
// in-memory record set. Everything here is stateless and recomputed per
// call; display layers own no derived state.
package query

import (
	"sort"
	"strings"

	"assettrack-api/internal/models"
)

// StatusAll is the filter value that matches every status.
const StatusAll = "All"

// Bucket is one count keyed by a field value. Buckets are ordered
// most-frequent-first; ties keep the insertion order of first occurrence.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// ModelStatusBucket is the two-level model → status count used to spot
// models that fail often.
type ModelStatusBucket struct {
	Model    string   `json:"model"`
	Total    int      `json:"total"`
	ByStatus []Bucket `json:"byStatus"`
}

// Summary is the dashboard aggregate.
type Summary struct {
	Total            int                 `json:"total"`
	ByStatus         []Bucket            `json:"byStatus"`
	BySite           []Bucket            `json:"bySite"`
	ByCountry        []Bucket            `json:"byCountry"`
	ByModelAndStatus []ModelStatusBucket `json:"byModelAndStatus"`
}

// Filter keeps records matching the status filter (StatusAll or empty
// passes everything) whose searchable fields contain term
// case-insensitively. An empty term matches every record.
func Filter(records []models.AssetRecord, term, status string) []models.AssetRecord {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := []models.AssetRecord{}
	for _, rec := range records {
		if status != "" && status != StatusAll && string(rec.Status) != status {
			continue
		}
		if needle != "" && !matches(rec, needle) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matches(rec models.AssetRecord, needle string) bool {
	for _, field := range []string{rec.Model, rec.SerialNumber, rec.Site, rec.Country, rec.Comments} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Paginate slices one page out of records. Pages are 1-based; out-of-range
// pages yield an empty slice.
func Paginate(records []models.AssetRecord, pageSize, page int) []models.AssetRecord {
	if pageSize <= 0 || page <= 0 {
		return []models.AssetRecord{}
	}
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []models.AssetRecord{}
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// Aggregate counts records by status, site, country and model+status.
func Aggregate(records []models.AssetRecord) Summary {
	byStatus := newCounter()
	bySite := newCounter()
	byCountry := newCounter()
	modelTotals := newCounter()
	modelStatus := map[string]*counter{}

	for _, rec := range records {
		byStatus.add(string(rec.Status))
		bySite.add(rec.Site)
		if rec.Country != "" {
			byCountry.add(rec.Country)
		}
		modelTotals.add(rec.Model)
		mc, ok := modelStatus[rec.Model]
		if !ok {
			mc = newCounter()
			modelStatus[rec.Model] = mc
		}
		mc.add(string(rec.Status))
	}

	byModel := make([]ModelStatusBucket, 0, len(modelStatus))
	for _, b := range modelTotals.buckets() {
		byModel = append(byModel, ModelStatusBucket{
			Model:    b.Key,
			Total:    b.Count,
			ByStatus: modelStatus[b.Key].buckets(),
		})
	}

	return Summary{
		Total:            len(records),
		ByStatus:         byStatus.buckets(),
		BySite:           bySite.buckets(),
		ByCountry:        byCountry.buckets(),
		ByModelAndStatus: byModel,
	}
}

// counter tallies keys while remembering first-occurrence order, so bucket
// ordering on equal counts is deterministic.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

func (c *counter) add(key string) {
	if _, seen := c.counts[key]; !seen {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) buckets() []Bucket {
	out := make([]Bucket, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, Bucket{Key: key, Count: c.counts[key]})
	}
	// Stable sort keeps insertion order across equal counts.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
