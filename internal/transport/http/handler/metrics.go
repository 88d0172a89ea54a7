package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/pkg/iphash"
)

// MetricsService is the counter surface the handlers read and write.
type MetricsService interface {
	Visit(ctx context.Context, site domain.Site, hashedIP string) error
	Visitors(ctx context.Context, site domain.Site) (int64, error)
	Items(ctx context.Context, site domain.Site) (int64, error)
}

// MetricsHandler serves the visitor counter and the plain-text counter dump.
type MetricsHandler struct {
	metrics MetricsService
	sites   []domain.Site
}

func NewMetricsHandler(metrics MetricsService, sites []domain.Site) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, sites: sites}
}

// Visitors counts the caller as a visitor of one site and returns the total.
// Repeat calls inside the dedup window only count once.
func (h *MetricsHandler) Visitors(site domain.Site) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := h.metrics.Visit(ctx, site, iphash.FromRequest(r)); err != nil {
			respondError(w, err)
			return
		}
		n, err := h.metrics.Visitors(ctx, site)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CountEnvelope{Count: n})
	}
}

// Dump writes every counter as "name value" lines.
func (h *MetricsHandler) Dump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, site := range h.sites {
		visitors, err := h.metrics.Visitors(r.Context(), site)
		if err != nil {
			http.Error(w, "counters unavailable", http.StatusInternalServerError)
			return
		}
		items, err := h.metrics.Items(r.Context(), site)
		if err != nil {
			http.Error(w, "counters unavailable", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "%s_visitors %d\n", site, visitors)
		fmt.Fprintf(w, "%s_items %d\n", site, items)
	}
}
