package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"climalog/internal/utils"
)

const healthTimeout = 2 * time.Second

// ReadingCounter is the store round-trip /healthz performs.
type ReadingCounter interface {
	Count(ctx context.Context) (int, error)
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	store ReadingCounter
}

func NewHealthchecker(store ReadingCounter) healthchecker {
	return &healthcheckerImpl{store: store}
}

type healthStatus struct {
	Status   string `json:"status"`
	Readings int    `json:"readings"`
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	n, err := h.store.Count(ctx)
	if err != nil {
		slog.Error("failed to check database connectivity", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to check database connectivity")
		return
	}
	utils.WriteJSON(w, http.StatusOK, healthStatus{Status: "ok", Readings: n})
}

func RegisterHealthcheck(mux *http.ServeMux, store ReadingCounter) {
	healthchecker := NewHealthchecker(store)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
