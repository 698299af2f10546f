package internal

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"assettrack-api/internal/extract"
	"assettrack-api/internal/models"
	"assettrack-api/internal/repository"
	"assettrack-api/pkg/importer"
	"assettrack-api/pkg/normalizer"

	"go.uber.org/zap"
)

// maxUploadBytes caps spreadsheet uploads.
const maxUploadBytes = 20 << 20

// importSummary is the response shape of both import endpoints.
type importSummary struct {
	Accepted   int                    `json:"accepted"`
	Rejected   []normalizer.RowError  `json:"rejected"`
	Partitions repository.BatchReport `json:"partitions"`
}

// importSpreadsheet ingests an uploaded .xlsx or .csv file. Every sheet of a
// workbook is imported; rejected rows are reported, never silently dropped.
func (s *Server) importSpreadsheet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "expected multipart form with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "FILE_REQUIRED", "file field is required")
		return
	}
	defer file.Close()

	var rows []map[string]string
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
			return
		}
		sheets, err := importer.ParseXLSX(data)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "PARSE_FAILED", err.Error())
			return
		}
		for _, sheet := range sheets {
			rows = append(rows, sheet.Rows...)
		}
	case ".csv":
		parsed, err := importer.ParseCSV(file)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "PARSE_FAILED", err.Error())
			return
		}
		rows = parsed
	default:
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "only .xlsx and .csv files are supported")
		return
	}

	s.runImport(w, r, rows)
}

// importText extracts candidate rows from free text and imports them through
// the same normalize-then-persist path as spreadsheet rows.
func (s *Server) importText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "TEXT_REQUIRED", "text must not be empty")
		return
	}

	rows, err := s.Extractor.Extract(r.Context(), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrNoCandidates):
			writeError(w, http.StatusUnprocessableEntity, "NO_CANDIDATES", "no asset records found in the text")
		case errors.Is(err, extract.ErrExtraction):
			writeError(w, http.StatusBadGateway, "EXTRACTION_FAILED", err.Error())
		default:
			writeError(w, http.StatusBadGateway, "EXTRACTION_FAILED", err.Error())
		}
		return
	}

	s.runImport(w, r, rows)
}

// runImport normalizes raw rows, persists the accepted drafts and reports
// accepted, rejected and per-partition outcomes.
func (s *Server) runImport(w http.ResponseWriter, r *http.Request, rows []map[string]string) {
	if len(rows) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "NO_ROWS", "no data rows found")
		return
	}

	result := normalizer.NormalizeBatch(rows, s.normalizerOpts)
	s.Metrics.AddRejectedRows(len(result.Rejected))

	summary := importSummary{
		Rejected:   result.Rejected,
		Partitions: repository.BatchReport{Succeeded: []repository.PartitionResult{}, Failed: []repository.PartitionResult{}},
	}
	if len(result.Accepted) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, summary)
		return
	}

	// Finalize before dispatch so the snapshot can be patched without a
	// reload; the repository leaves finished records untouched.
	records := make([]models.AssetRecord, len(result.Accepted))
	for i, draft := range result.Accepted {
		records[i] = s.Engine.Create(draft)
	}

	report, err := s.Repo.AddMany(r.Context(), records)
	s.Metrics.ObserveWrite("import", err)
	if err != nil && len(report.Failed) == 0 {
		writeRepositoryError(w, err)
		return
	}
	summary.Partitions = report

	if report.Err() == nil {
		summary.Accepted = len(records)
		s.Snapshot.ApplyLocalPatch(records...)
	} else {
		// Partial write: count only records whose partition landed. The
		// report's record ids are authoritative; partition labels are
		// driver-specific (site keys, batch numbers).
		succeeded := map[string]bool{}
		for _, res := range report.Succeeded {
			for _, id := range res.RecordIDs {
				succeeded[id] = true
			}
		}
		patched := []models.AssetRecord{}
		for _, rec := range records {
			if succeeded[rec.ID] {
				patched = append(patched, rec)
			}
		}
		summary.Accepted = len(patched)
		s.Snapshot.ApplyLocalPatch(patched...)
		s.Logger.Warn("import completed with partition failures",
			zap.Int("failed_partitions", len(report.Failed)))
	}

	writeJSON(w, http.StatusOK, summary)
}
