package api

import (
	"net/http"
	"time"

	"github.com/shelfd/shelfd/pkg/catalog"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	store catalog.Store
}

// NewHealthHandler creates a HealthHandler. The store may be nil for basic
// liveness only.
func NewHealthHandler(store catalog.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   "shelfd",
		Timestamp: time.Now().UTC(),
	})
}

// Readiness handles GET /health/ready: the service is ready when the catalog
// answers a trivial query.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Service:   "shelfd",
			Timestamp: time.Now().UTC(),
			Error:     "catalog not initialized",
		})
		return
	}

	if _, err := h.store.ListLocations(r.Context()); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Service:   "shelfd",
			Timestamp: time.Now().UTC(),
			Error:     "catalog unavailable",
		})
		return
	}

	WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   "shelfd",
		Timestamp: time.Now().UTC(),
	})
}
