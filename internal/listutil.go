package internal

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// listParams holds the common query parameters for list endpoints.
type listParams struct {
	q        string
	status   string
	page     int
	pageSize int
	refresh  bool
}

// parseListParams parses q, status, page, page_size and refresh.
// Defaults: page=1, page_size=25 (max 200), status=All.
func parseListParams(r *http.Request) listParams {
	values := r.URL.Query()

	page := 1
	if s := strings.TrimSpace(values.Get("page")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}

	pageSize := 25
	if s := strings.TrimSpace(values.Get("page_size")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > 200 {
				v = 200
			}
			pageSize = v
		}
	}

	status := strings.TrimSpace(values.Get("status"))
	if status == "" {
		status = "All"
	}

	return listParams{
		q:        strings.TrimSpace(values.Get("q")),
		status:   status,
		page:     page,
		pageSize: pageSize,
		refresh:  strings.EqualFold(values.Get("refresh"), "true"),
	}
}

// sendListResponse writes the list envelope with pagination metadata.
func sendListResponse(w http.ResponseWriter, items interface{}, total int, params listParams) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": items,
		"meta": map[string]interface{}{
			"total":     total,
			"page":      params.page,
			"page_size": params.pageSize,
		},
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
