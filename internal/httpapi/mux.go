package httpapi

import (
	"net/http"

	"climalog/internal/metrics"
)

// NewMux returns the server mux with /metrics mounted. Feature routes are
// added by each module's RegisterFeature, /healthz by RegisterHealthcheck.
func NewMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	return mux
}
