package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusswap/api/internal/application/session"
	"github.com/campusswap/api/internal/domain"
)

// ListingService is what the handler needs from the listing application
// service.
type ListingService interface {
	Create(ctx context.Context, site domain.Site, ownerEmail string, payload domain.ListingPayload) (*domain.Listing, error)
	Remove(ctx context.Context, ownerEmail, itemID string) error
}

// ListingHandler serves marketplace listing writes. Reads go straight to the
// search engine, not through here.
type ListingHandler struct {
	listings ListingService
	sessions session.Service
	site     domain.Site
}

func NewListingHandler(listings ListingService, sessions session.Service, site domain.Site) *ListingHandler {
	return &ListingHandler{listings: listings, sessions: sessions, site: site}
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	email, err := h.authorize(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var payload domain.ListingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	l, err := h.listings.Create(r.Context(), h.site, email, payload)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l.Doc())
}

func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	email, err := h.authorize(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.listings.Remove(r.Context(), email, chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "deleted"})
}

func (h *ListingHandler) authorize(r *http.Request) (string, error) {
	c, err := r.Cookie(string(domain.PurposeSession))
	if err != nil {
		return "", fmt.Errorf("%s: %w", domain.MsgUnableToVerify, domain.ErrUnauthorized)
	}
	return h.sessions.Authorize(r.Context(), h.site, c.Value)
}
