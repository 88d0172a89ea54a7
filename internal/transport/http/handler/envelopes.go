package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campusswap/api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CountEnvelope wraps counter reads.
type CountEnvelope struct {
	Count int64 `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// respondError maps a service error onto the wire. Domain errors carry a
// client-safe message; anything else is logged and answered opaquely.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, clientMessage(err, domain.MsgUnableToVerify))
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, clientMessage(err, "invalid request"))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// clientMessage strips the sentinel suffix fmt.Errorf("%s: %w") appends.
func clientMessage(err error, fallback string) string {
	msg := err.Error()
	for i := len(msg) - 1; i >= 0; i-- {
		if msg[i] == ':' {
			return msg[:i]
		}
	}
	if msg == "" {
		return fallback
	}
	return msg
}
