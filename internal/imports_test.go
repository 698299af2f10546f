package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"assettrack-api/internal/extract"
	"assettrack-api/internal/models"
	"assettrack-api/internal/repository"
	"assettrack-api/pkg/normalizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	rows []map[string]string
	err  error
}

func (s stubExtractor) Extract(context.Context, string) ([]map[string]string, error) {
	return s.rows, s.err
}

type summaryResponse struct {
	Accepted int                   `json:"accepted"`
	Rejected []normalizer.RowError `json:"rejected"`
}

func uploadCSV(t *testing.T, srv *Server, filename, contents string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports/spreadsheet", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())

	token, err := srv.JWTManager.GenerateToken("tester")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	return w
}

func TestImportCSV(t *testing.T) {
	srv, _ := newTestServer(t)

	w := uploadCSV(t, srv, "stock.csv",
		"Product Model,Serial No,Location,Notes\n"+
			"Catalyst 9300,FCW001,LDN01,rack 4\n"+
			"ThinkPad X1,5CD005,FRA03,\n"+
			",missing-model,LDN01,\n")
	require.Equal(t, http.StatusOK, w.Code)

	var summary summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Accepted)
	require.Len(t, summary.Rejected, 1)
	assert.Equal(t, 3, summary.Rejected[0].Row)

	records, err := srv.Repo.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// Imported records land in the snapshot without a reload.
	assert.Len(t, srv.Snapshot.Records(), 2)
}

func TestImportUnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t)

	w := uploadCSV(t, srv, "stock.pdf", "not a spreadsheet")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestImportAllRowsRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	w := uploadCSV(t, srv, "stock.csv",
		"Model,Serial No,Site\n"+
			"Catalyst 9300,,LDN01\n")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var summary summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.Accepted)
	assert.Len(t, summary.Rejected, 1)
}

func TestImportText(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Extractor = stubExtractor{rows: []map[string]string{
		{"model": "Catalyst 9300", "serialNumber": "FCW001", "site": "LDN01", "status": "needs rma, request sent"},
		{"model": "no serial", "site": "LDN01"},
	}}

	w := doRequest(t, srv, http.MethodPost, "/imports/text", map[string]string{
		"text": "two switches came back from London",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var summary summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Accepted)
	assert.Len(t, summary.Rejected, 1)

	records, err := srv.Repo.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "RMARequested", string(records[0].Status))
}

// batchLabeledRepo reports write outcomes the way the flat-table driver
// does: opaque batch labels with record ids, not site names.
type batchLabeledRepo struct {
	repository.AssetRepository
}

func (r batchLabeledRepo) AddMany(ctx context.Context, drafts []models.AssetRecord) (repository.BatchReport, error) {
	if _, err := r.AssetRepository.AddMany(ctx, drafts[:1]); err != nil {
		return repository.BatchReport{}, err
	}
	report := repository.BatchReport{
		Succeeded: []repository.PartitionResult{
			{Partition: "batch-1", Count: 1, RecordIDs: []string{drafts[0].ID}},
		},
		Failed: []repository.PartitionResult{
			{Partition: "batch-2", Count: 1, Error: "throughput exceeded"},
		},
	}
	return report, report.Err()
}

func TestImportTextPartialBatchFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Repo = batchLabeledRepo{srv.Repo}
	srv.Extractor = stubExtractor{rows: []map[string]string{
		{"model": "Catalyst 9300", "serialNumber": "FCW001", "site": "LDN01"},
		{"model": "ThinkPad X1", "serialNumber": "5CD005", "site": "FRA03"},
	}}

	w := doRequest(t, srv, http.MethodPost, "/imports/text", map[string]string{
		"text": "two devices arrived",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Accepted counts must follow the report's record ids even when the
	// partition labels carry no site information.
	var summary summaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Accepted)

	snapshot := srv.Snapshot.Records()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "FCW001", snapshot[0].SerialNumber)
}

func TestImportTextExtractionFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Extractor = stubExtractor{err: extract.ErrExtraction}

	w := doRequest(t, srv, http.MethodPost, "/imports/text", map[string]string{"text": "garbled"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "EXTRACTION_FAILED", resp["code"])
}

func TestImportTextNoCandidates(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Extractor = stubExtractor{err: extract.ErrNoCandidates}

	w := doRequest(t, srv, http.MethodPost, "/imports/text", map[string]string{"text": "nothing here"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestImportTextEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/imports/text", map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
