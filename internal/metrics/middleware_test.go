package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPMiddleware_StatusClasses(t *testing.T) {
	tests := []struct {
		status int
		class  string
	}{
		{http.StatusOK, "2xx"},
		{http.StatusAccepted, "2xx"},
		{http.StatusNotFound, "4xx"},
		{http.StatusUnprocessableEntity, "4xx"},
		{http.StatusBadGateway, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			reg := NewRegistry()
			wrapped := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			w := httptest.NewRecorder()
			wrapped.ServeHTTP(w, httptest.NewRequest("POST", "/api/optimize", nil))

			if w.Code != tt.status {
				t.Errorf("expected %d passed through, got %d", tt.status, w.Code)
			}
			got := metricValue(t, reg, "http_requests_total", map[string]string{
				"method": "POST",
				"path":   "/api/optimize",
				"status": tt.class,
			})
			if got != 1 {
				t.Errorf("expected one %s request, got %v", tt.class, got)
			}
		})
	}
}

func TestHTTPMiddleware_ImplicitOK(t *testing.T) {
	reg := NewRegistry()
	wrapped := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/health", nil))

	got := metricValue(t, reg, "http_requests_total", map[string]string{"path": "/api/health", "status": "2xx"})
	if got != 1 {
		t.Errorf("expected a 2xx request without WriteHeader, got %v", got)
	}
}

func TestHTTPMiddleware_ObservesDuration(t *testing.T) {
	reg := NewRegistry()
	wrapped := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/jobs", nil))
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	var samples uint64
	for _, mf := range mfs {
		if mf.GetName() != "http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			samples += m.GetHistogram().GetSampleCount()
		}
	}
	if samples != 2 {
		t.Errorf("expected 2 duration samples, got %d", samples)
	}
}

func TestHTTPMiddleware_TracksInFlight(t *testing.T) {
	reg := NewRegistry()

	during := float64(-1)
	wrapped := HTTPMiddleware(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = metricValue(t, reg, "http_requests_in_flight", nil)
	}))
	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/backtest", nil))

	if during != 1 {
		t.Errorf("expected in-flight to be 1 during request, got %v", during)
	}
	if after := metricValue(t, reg, "http_requests_in_flight", nil); after != 0 {
		t.Errorf("expected in-flight to be 0 after request, got %v", after)
	}
}

func TestHTTPMiddleware_LabelsByPattern(t *testing.T) {
	reg := NewRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := HTTPMiddleware(reg)(mux)

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest("GET", "/api/jobs/"+id, nil)
		wrapped.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := metricValue(t, reg, "http_requests_total", map[string]string{
		"method": "GET",
		"path":   "GET /api/jobs/{id}",
		"status": "2xx",
	})
	if got != 3 {
		t.Errorf("expected 3 requests under the route pattern, got %v", got)
	}
}
