package jwtinfra

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campusswap/api/internal/domain"
)

// Verifier checks the api_token each frontend ships with its requests. The
// token only proves the request came through the site's own build, so it is
// HS256 with one shared key per site and carries no identity claims.
type Verifier struct {
	keys map[domain.Site][]byte
}

func NewVerifier(keys map[string]string) *Verifier {
	m := make(map[domain.Site][]byte, len(keys))
	for site, key := range keys {
		m[domain.Site(site)] = []byte(key)
	}
	return &Verifier{keys: m}
}

// Verify validates the token signature and expiry against the site's key.
func (v *Verifier) Verify(site domain.Site, tokenStr string) error {
	key, ok := v.keys[site]
	if !ok {
		return fmt.Errorf("no token key for site %s: %w", site, domain.ErrUnauthorized)
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("api token: %w", domain.ErrUnauthorized)
	}
	return nil
}
