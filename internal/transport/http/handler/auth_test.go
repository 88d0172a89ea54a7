package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campusswap/api/internal/application/session"
	"github.com/campusswap/api/internal/domain"
)

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Begin(ctx context.Context, site domain.Site, hashedIP string, req domain.BeginRequest) (*session.Cookie, error) {
	args := m.Called(site, req)
	if c := args.Get(0); c != nil {
		return c.(*session.Cookie), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessions) Forgot(ctx context.Context, site domain.Site, hashedIP, email string) (*session.Cookie, error) {
	args := m.Called(site, email)
	if c := args.Get(0); c != nil {
		return c.(*session.Cookie), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessions) Verify(ctx context.Context, site domain.Site, hashedIP string, jar session.CookieJar, token string) (*session.Cookie, error) {
	args := m.Called(site, jar, token)
	if c := args.Get(0); c != nil {
		return c.(*session.Cookie), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessions) Resend(ctx context.Context, site domain.Site, hashedIP string, jar session.CookieJar) (*session.Cookie, error) {
	args := m.Called(site, jar)
	if c := args.Get(0); c != nil {
		return c.(*session.Cookie), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessions) Authorize(ctx context.Context, site domain.Site, sessionID string) (string, error) {
	args := m.Called(site, sessionID)
	return args.String(0), args.Error(1)
}

func (m *mockSessions) Logout(ctx context.Context, site domain.Site, sessionID string) error {
	return m.Called(site, sessionID).Error(0)
}

func domainUnauthorized() error {
	return fmt.Errorf("%s: %w", domain.MsgUnableToVerify, domain.ErrUnauthorized)
}

func cookieByName(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthenticateSetsPendingCookie(t *testing.T) {
	sessions := &mockSessions{}
	sessions.On("Begin", domain.SiteSwap, mock.Anything).Return(&session.Cookie{
		Purpose: domain.PurposeAuth,
		ID:      "pending-1",
		TTL:     10 * time.Minute,
	}, nil)
	h := NewAuthHandler(sessions, domain.SiteSwap)

	body := `{"email":"a@purdue.edu","password":"long-enough-pw","action":"login"}`
	req := httptest.NewRequest(http.MethodPost, "/authenticate", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Authenticate(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	c := cookieByName(t, rr, "auth_id")
	require.NotNil(t, c)
	assert.Equal(t, "pending-1", c.Value)
	assert.Equal(t, 600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	// Superseded pending cookies are cleared in the same response.
	for _, stale := range []string{"forgot_id", "update_id"} {
		sc := cookieByName(t, rr, stale)
		require.NotNil(t, sc)
		assert.Equal(t, -1, sc.MaxAge)
	}
}

func TestAuthenticateCoarseRejection(t *testing.T) {
	sessions := &mockSessions{}
	sessions.On("Begin", domain.SiteSwap, mock.Anything).
		Return(nil, domainUnauthorized())
	h := NewAuthHandler(sessions, domain.SiteSwap)

	body := `{"email":"a@purdue.edu","password":"wrong-password","action":"login"}`
	req := httptest.NewRequest(http.MethodPost, "/authenticate", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Authenticate(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), domain.MsgUnableToVerify)
	assert.Empty(t, rr.Result().Cookies())
}

func TestVerifyForwardsJarAndIssuesSession(t *testing.T) {
	sessions := &mockSessions{}
	sessions.On("Verify", domain.SiteSwap, session.CookieJar{domain.PurposeAuth: "pending-1"}, "123456").
		Return(&session.Cookie{Purpose: domain.PurposeSession, ID: "sess-1", TTL: time.Hour}, nil)
	h := NewAuthHandler(sessions, domain.SiteSwap)

	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(`{"token":"123456"}`))
	req.AddCookie(&http.Cookie{Name: "auth_id", Value: "pending-1"})
	rr := httptest.NewRecorder()
	h.Verify(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	c := cookieByName(t, rr, "session_id")
	require.NotNil(t, c)
	assert.Equal(t, "sess-1", c.Value)
	sessions.AssertExpectations(t)
}

func TestVerifyMalformedBody(t *testing.T) {
	h := NewAuthHandler(&mockSessions{}, domain.SiteSwap)
	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.Verify(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogoutClearsSessionCookie(t *testing.T) {
	sessions := &mockSessions{}
	sessions.On("Logout", domain.SiteSwap, "sess-1").Return(nil)
	h := NewAuthHandler(sessions, domain.SiteSwap)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	c := cookieByName(t, rr, "session_id")
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
	sessions.AssertExpectations(t)
}

func TestLogoutWithoutCookieStillSucceeds(t *testing.T) {
	sessions := &mockSessions{}
	h := NewAuthHandler(sessions, domain.SiteSwap)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	sessions.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
}
