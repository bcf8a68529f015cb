package httpapi

import (
	"net/http"
	"time"

	"climalog/internal/config"
	"climalog/internal/metrics"
)

func NewServer(cfg config.Config, mux *http.ServeMux, m *metrics.Metrics) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(cors(mux), m),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
