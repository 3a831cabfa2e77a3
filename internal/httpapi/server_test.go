package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"catalogetl/internal/blob"
	"catalogetl/internal/core"
	"catalogetl/internal/report"
)

func seededServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	store := blob.NewMemory()
	w := report.NewWriter(store, "run-42", "properties")
	ctx := context.Background()
	for _, key := range []string{"first_task_stats.json", "first_task_sorted_properties.json", "movie_analysis.json"} {
		if _, err := w.Write(ctx, key, report.Object{{Key: "key", Value: key}}); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	return NewServer(store, opts...)
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := do(t, seededServer(t), "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected healthz %d %s", rec.Code, rec.Body.String())
	}
}

func TestListReportsByPrefix(t *testing.T) {
	srv := seededServer(t)
	rec := do(t, srv, "/reports?prefix=first_task")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Reports []blob.Info `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Reports) != 2 || body.Reports[0].Key != "first_task_sorted_properties.json" {
		t.Fatalf("unexpected listing %+v", body.Reports)
	}

	rec = do(t, srv, "/reports?prefix=nothing")
	if strings.TrimSpace(rec.Body.String()) != `{"reports":[]}` {
		t.Fatalf("expected empty listing, got %s", rec.Body.String())
	}
}

func TestGetReport(t *testing.T) {
	srv := seededServer(t)
	rec := do(t, srv, "/reports/movie_analysis.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != report.ContentType {
		t.Fatalf("unexpected content type %q", got)
	}
	if rec.Header().Get(HeaderRunID) != "run-42" || rec.Header().Get(HeaderJob) != "properties" {
		t.Fatalf("missing metadata headers %v", rec.Header())
	}
	if rec.Body.String() != "{\n    \"key\": \"movie_analysis.json\"\n}" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	rec = do(t, srv, "/reports/absent.json")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "report not found") {
		t.Fatalf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	rec := do(t, seededServer(t), "/metrics")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics without a registry should 404, got %d", rec.Code)
	}

	prom := core.NewPrometheusMetricsRecorder()
	prom.Observe(context.Background(), "properties.load", true, 20*time.Millisecond)
	prom.CountCommand("price_abs", "applied")
	rec = do(t, seededServer(t, WithMetrics(prom.Registry())), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, want := range []string{"catalogetl_operation_duration_seconds", `catalogetl_update_commands_total{operation="price_abs",outcome="applied"} 1`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("metrics output lacks %s:\n%s", want, rec.Body.String())
		}
	}
}

func TestExpvarRoute(t *testing.T) {
	rec := core.NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "tracks.load", true, time.Millisecond)
	resp := do(t, seededServer(t), "/debug/vars")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), rec.Name()) {
		t.Fatalf("expvar output lacks %s: %d", rec.Name(), resp.Code)
	}
}

func TestReadOnlyRoutes(t *testing.T) {
	srv := seededServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/reports/movie_analysis.json", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
