package internal

import (
	"encoding/json"
	"errors"
	"net/http"

	"assettrack-api/internal/models"
	"assettrack-api/internal/query"
	"assettrack-api/internal/repository"
	"assettrack-api/pkg/normalizer"

	"github.com/go-chi/chi/v5"
)

// listAssets serves the filtered, paginated asset list from the snapshot
// cache. refresh=true forces a reload and surfaces its failure.
func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)

	if err := s.ensureSnapshot(r.Context(), params.refresh); err != nil {
		writeRepositoryError(w, err)
		return
	}

	filtered := query.Filter(s.Snapshot.Records(), params.q, params.status)
	page := query.Paginate(filtered, params.pageSize, params.page)
	sendListResponse(w, page, len(filtered), params)
}

// getAsset serves one record by identity from the snapshot cache.
func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	_ = s.ensureSnapshot(r.Context(), false)

	rec, ok := s.Snapshot.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "asset not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// getAssetHistory serves a record's change history, oldest entry first.
func (s *Server) getAssetHistory(w http.ResponseWriter, r *http.Request) {
	_ = s.ensureSnapshot(r.Context(), false)

	rec, ok := s.Snapshot.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "asset not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      rec.ID,
		"history": rec.History,
	})
}

// createAsset accepts a raw field mapping (the manual form shape), runs it
// through the normalizer and persists the finalized record.
func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) {
	var row map[string]string
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}

	draft, err := normalizer.NormalizeRow(row, s.normalizerOpts)
	if err != nil {
		s.Metrics.AddRejectedRows(1)
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		return
	}

	// Finalize here so the response carries the assigned identity; the
	// repository's own finalization pass leaves a finished record alone.
	record := s.Engine.Create(draft)

	report, err := s.Repo.AddMany(r.Context(), []models.AssetRecord{record})
	s.Metrics.ObserveWrite("add", err)
	if err != nil && len(report.Failed) == 0 {
		writeRepositoryError(w, err)
		return
	}
	if err := report.Err(); err != nil {
		writeError(w, http.StatusBadGateway, "WRITE_FAILED", err.Error())
		return
	}

	s.Snapshot.ApplyLocalPatch(record)
	writeJSON(w, http.StatusCreated, record)
}

// updateAsset merges a patch into an existing record. Unknown fields in the
// body are rejected rather than ignored.
func (s *Server) updateAsset(w http.ResponseWriter, r *http.Request) {
	var patch models.AssetPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "unknown status value")
		return
	}
	if err := normalizer.ValidatePatch(patch, s.normalizerOpts); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error())
		return
	}

	updated, err := s.Repo.UpdateOne(r.Context(), chi.URLParam(r, "id"), patch)
	s.Metrics.ObserveWrite("update", err)
	if err != nil {
		writeRepositoryError(w, err)
		return
	}

	s.Snapshot.ApplyLocalPatch(updated)
	writeJSON(w, http.StatusOK, updated)
}

// deleteAssets removes records in bulk by identity.
func (s *Server) deleteAssets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "IDS_REQUIRED", "ids must not be empty")
		return
	}

	_ = s.ensureSnapshot(r.Context(), false)

	targets := []models.AssetRecord{}
	for _, id := range req.IDs {
		if rec, ok := s.Snapshot.Get(id); ok {
			targets = append(targets, rec)
		}
	}
	if len(targets) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no matching assets")
		return
	}

	report, err := s.Repo.DeleteMany(r.Context(), targets)
	s.Metrics.ObserveWrite("delete", err)
	if err != nil && len(report.Failed) == 0 {
		writeRepositoryError(w, err)
		return
	}

	// Drop only the identities whose partition write landed.
	removed := []string{}
	for _, res := range report.Succeeded {
		removed = append(removed, res.RecordIDs...)
	}
	s.Snapshot.Remove(removed...)

	writeJSON(w, http.StatusOK, report)
}

// dashboardSummary serves aggregate counts over the full record set.
func (s *Server) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	if err := s.ensureSnapshot(r.Context(), params.refresh); err != nil {
		writeRepositoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, query.Aggregate(s.Snapshot.Records()))
}

// writeRepositoryError maps repository failures to HTTP errors.
func writeRepositoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "asset not found")
	case repository.IsConfigError(err):
		writeError(w, http.StatusServiceUnavailable, "STORAGE_UNCONFIGURED", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "STORAGE_FAILED", err.Error())
	}
}
