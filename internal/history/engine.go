// Package history computes the next state of an asset record for a create
// or field-update request, producing the history entries to append. All
// functions are pure given the engine's clock.
package history

import (
	"time"

	"assettrack-api/internal/models"

	"github.com/google/uuid"
)

const (
	// CreationField labels the synthesized initial history entry.
	CreationField = "System"
	// CreationMarker is the human-readable value of the initial entry.
	CreationMarker = "Initial Asset Registration"
)

// Engine stamps history entries. Now is the only side-effecting dependency;
// it must be monotonic for history ordering to hold.
type Engine struct {
	Now func() time.Time
}

// NewEngine returns an engine on the wall clock.
func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

func (e *Engine) nowMillis() int64 {
	return e.Now().UnixMilli()
}

// Create finalizes a draft into a persisted-ready record. A missing identity
// is generated, CreatedAt is stamped once, and an initial registration entry
// seeds the history unless the draft already carries one (bulk import of
// externally-sourced records keeps their history as-is).
func (e *Engine) Create(draft models.AssetRecord) models.AssetRecord {
	out := draft.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt == 0 {
		out.CreatedAt = e.nowMillis()
	}
	if out.Status == "" {
		out.Status = models.StatusNormal
	}
	if len(out.History) == 0 {
		out.History = []models.HistoryEntry{{
			Timestamp: e.nowMillis(),
			Field:     CreationField,
			OldValue:  nil,
			NewValue:  CreationMarker,
		}}
	}
	return out
}

// ApplyUpdate diffs the patch against the current record and returns the
// merged record plus the entries that were appended. A field set to the
// value it already holds appends nothing. ID, CreatedAt and History are
// excluded from diffing by construction of AssetPatch.
func (e *Engine) ApplyUpdate(current models.AssetRecord, patch models.AssetPatch) (models.AssetRecord, []models.HistoryEntry) {
	next := current.Clone()
	appended := []models.HistoryEntry{}

	diff := func(field, oldVal, newVal string) {
		if oldVal == newVal {
			return
		}
		prior := oldVal
		appended = append(appended, models.HistoryEntry{
			Timestamp: e.nowMillis(),
			Field:     field,
			OldValue:  &prior,
			NewValue:  newVal,
		})
	}

	if patch.Model != nil {
		diff("model", current.Model, *patch.Model)
		next.Model = *patch.Model
	}
	if patch.SerialNumber != nil {
		diff("serialNumber", current.SerialNumber, *patch.SerialNumber)
		next.SerialNumber = *patch.SerialNumber
	}
	if patch.Site != nil {
		diff("site", current.Site, *patch.Site)
		next.Site = *patch.Site
	}
	if patch.Country != nil {
		diff("country", current.Country, *patch.Country)
		next.Country = *patch.Country
	}
	if patch.Comments != nil {
		diff("comments", current.Comments, *patch.Comments)
		next.Comments = *patch.Comments
	}
	if patch.Status != nil {
		diff("status", string(current.Status), string(*patch.Status))
		next.Status = *patch.Status
	}

	next.History = append(next.History, appended...)
	return next, appended
}
