package handler

import (
	"encoding/json"
	"net/http"

	"github.com/campusswap/api/internal/application/session"
	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/pkg/iphash"
)

// pendingPurposes are the cookie names an in-flight authentication can carry.
// Issuing a new grant clears the others so a client never holds two.
var pendingPurposes = []domain.Purpose{domain.PurposeAuth, domain.PurposeForgot, domain.PurposeUpdate}

// AuthHandler drives the cookie-based authentication flows for one site.
type AuthHandler struct {
	sessions session.Service
	site     domain.Site
}

func NewAuthHandler(sessions session.Service, site domain.Site) *AuthHandler {
	return &AuthHandler{sessions: sessions, site: site}
}

// Authenticate starts a login, signup or password-reset flow.
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req domain.BeginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	cookie, err := h.sessions.Begin(r.Context(), h.site, iphash.FromRequest(r), req)
	if err != nil {
		respondError(w, err)
		return
	}
	h.issue(w, cookie)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code sent"})
}

// Verify consumes a pending grant with the submitted token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	cookie, err := h.sessions.Verify(r.Context(), h.site, iphash.FromRequest(r), h.jar(r), req.Token)
	if err != nil {
		respondError(w, err)
		return
	}
	h.issue(w, cookie)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "verified"})
}

// Resend reissues the pending code under a fresh opaque id.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	cookie, err := h.sessions.Resend(r.Context(), h.site, iphash.FromRequest(r), h.jar(r))
	if err != nil {
		respondError(w, err)
		return
	}
	h.issue(w, cookie)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code sent"})
}

// Forgot starts a password reset. The response is identical whether or not
// the address has an account.
func (h *AuthHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	cookie, err := h.sessions.Forgot(r.Context(), h.site, iphash.FromRequest(r), req.Token)
	if err != nil {
		respondError(w, err)
		return
	}
	h.issue(w, cookie)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code sent"})
}

// Logout drops the caller's session. Always succeeds from the client's view.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(string(domain.PurposeSession)); err == nil {
		if err := h.sessions.Logout(r.Context(), h.site, c.Value); err != nil {
			respondError(w, err)
			return
		}
	}
	clearCookie(w, domain.PurposeSession)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

// jar collects the pending-grant cookies the request carries.
func (h *AuthHandler) jar(r *http.Request) session.CookieJar {
	jar := make(session.CookieJar, len(pendingPurposes))
	for _, p := range pendingPurposes {
		if c, err := r.Cookie(string(p)); err == nil {
			jar[p] = c.Value
		}
	}
	return jar
}

// issue sets the granted cookie and clears the pending ones it supersedes.
func (h *AuthHandler) issue(w http.ResponseWriter, cookie *session.Cookie) {
	for _, p := range pendingPurposes {
		if p != cookie.Purpose {
			clearCookie(w, p)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     string(cookie.Purpose),
		Value:    cookie.ID,
		Path:     "/",
		MaxAge:   int(cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearCookie(w http.ResponseWriter, purpose domain.Purpose) {
	http.SetCookie(w, &http.Cookie{
		Name:     string(purpose),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
