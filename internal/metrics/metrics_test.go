package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIngest(t *testing.T) {
	m := New()
	m.ObserveIngest("http", nil)
	m.ObserveIngest("http", nil)
	m.ObserveIngest("mqtt", errors.New("boom"))

	if got := testutil.ToFloat64(m.ReadingsIngested.WithLabelValues("http", "success")); got != 2 {
		t.Errorf("http/success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ReadingsIngested.WithLabelValues("mqtt", "error")); got != 1 {
		t.Errorf("mqtt/error = %v, want 1", got)
	}
}

func TestObserveQueryAndGauges(t *testing.T) {
	m := New()
	m.ObserveQuery(nil)
	m.SetQueueDepth(3)
	m.AddStreamSubscribers(2)
	m.AddStreamSubscribers(-1)

	if got := testutil.ToFloat64(m.ReadingsQueried.WithLabelValues("success")); got != 1 {
		t.Errorf("queried success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WriteQueueDepth); got != 3 {
		t.Errorf("queue depth = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.StreamSubscribers); got != 1 {
		t.Errorf("subscribers = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/data", 200, time.Millisecond)
	m.ObserveIngest("http", nil)
	m.ObserveQuery(nil)
	m.SetQueueDepth(1)
	m.AddStreamSubscribers(1)
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/data", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"climalog_http_requests_total",
		"climalog_http_request_duration_seconds",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.ObserveQuery(nil)
	if got := testutil.ToFloat64(b.ReadingsQueried.WithLabelValues("success")); got != 0 {
		t.Fatalf("second instance saw %v queries, want 0", got)
	}
}
