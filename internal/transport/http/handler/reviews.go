package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/campusswap/api/internal/application/session"
	"github.com/campusswap/api/internal/domain"
)

// ReviewService is what the handler needs from the review application service.
type ReviewService interface {
	Create(ctx context.Context, payload domain.ReviewPayload) (*domain.Review, error)
	Thumbs(ctx context.Context, payload domain.ThumbsPayload) error
}

// ReviewHandler serves housing review writes and thumbs votes. Reads go
// straight to the per-residence search indexes.
type ReviewHandler struct {
	reviews  ReviewService
	sessions session.Service
	site     domain.Site
}

func NewReviewHandler(reviews ReviewService, sessions session.Service, site domain.Site) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, sessions: sessions, site: site}
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := h.authorize(r); err != nil {
		respondError(w, err)
		return
	}

	var payload domain.ReviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	rv, err := h.reviews.Create(r.Context(), payload)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv.Doc())
}

// Thumbs applies one voter's up/down deltas.
func (h *ReviewHandler) Thumbs(w http.ResponseWriter, r *http.Request) {
	var payload domain.ThumbsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	if err := h.reviews.Thumbs(r.Context(), payload); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "recorded"})
}

func (h *ReviewHandler) authorize(r *http.Request) error {
	c, err := r.Cookie(string(domain.PurposeSession))
	if err != nil {
		return fmt.Errorf("%s: %w", domain.MsgUnableToVerify, domain.ErrUnauthorized)
	}
	_, err = h.sessions.Authorize(r.Context(), h.site, c.Value)
	return err
}
