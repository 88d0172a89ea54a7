package iphash

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// FromRequest returns a stable hashed identity for the client behind r.
// Proxy headers win over the socket address so clients behind the CDN are
// told apart; the raw address is never stored, only its SHA-256 hex digest.
func FromRequest(r *http.Request) string {
	ip := r.Header.Get("cf-connecting-ip")
	if ip == "" {
		if fwd := r.Header.Get("x-forwarded-for"); fwd != "" {
			ip = strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		}
	}
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
