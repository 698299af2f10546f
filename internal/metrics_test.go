package internal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMetricsEndpoint(t *testing.T) {
	metrics := NewMetrics()

	router := chi.NewRouter()
	router.Use(metrics.Middleware())
	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	// Generate some traffic first.
	testReq := httptest.NewRequest("GET", "/ping", nil)
	testW := httptest.NewRecorder()
	router.ServeHTTP(testW, testReq)

	if testW.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", testW.Code)
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, metric := range []string{"http_requests_total", "http_request_duration_seconds"} {
		if !strings.Contains(body, metric) {
			t.Errorf("Expected metric '%s' not found in response", metric)
		}
	}
	if !strings.Contains(body, `path="/ping"`) {
		t.Error("Expected metrics to contain path label for /ping endpoint")
	}
}

func TestWriteAndRejectionCounters(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveWrite("add", nil)
	metrics.ObserveWrite("add", errors.New("backend down"))
	metrics.AddRejectedRows(3)
	metrics.AddRejectedRows(0)

	router := chi.NewRouter()
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `asset_writes_total{operation="add",outcome="ok"} 1`) {
		t.Error("Expected ok write counter to be 1")
	}
	if !strings.Contains(body, `asset_writes_total{operation="add",outcome="error"} 1`) {
		t.Error("Expected error write counter to be 1")
	}
	if !strings.Contains(body, "import_rows_rejected_total 3") {
		t.Error("Expected rejected rows counter to be 3")
	}
}
