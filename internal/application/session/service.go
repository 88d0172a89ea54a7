package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campusswap/api/internal/config"
	"github.com/campusswap/api/internal/domain"
	"github.com/campusswap/api/internal/infrastructure/redis"
	"github.com/campusswap/api/internal/infrastructure/smtp"
	"github.com/campusswap/api/internal/pkg/code"
	"github.com/campusswap/api/internal/pkg/id"
	"github.com/campusswap/api/internal/pkg/validate"
)

var codeRegex = regexp.MustCompile(`^\d+$`)

// Cookie is an opaque-id cookie the transport layer should set. The browser
// only ever sees the id; the payload stays in the cache.
type Cookie struct {
	Purpose domain.Purpose
	ID      string
	TTL     time.Duration
}

// CookieJar holds the opaque-id cookies a request carried, by purpose.
type CookieJar map[domain.Purpose]string

// AccountStore is the slice of the accounts table this service needs.
type AccountStore interface {
	Get(ctx context.Context, email string) (*domain.Account, error)
	Put(ctx context.Context, a *domain.Account) error
	SetLocked(ctx context.Context, email string, locked bool) error
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

// Cache is the slice of the cache client this service needs.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteBatch(ctx context.Context, keys ...string) error
	SetIfAbsentWithTTL(ctx context.Context, key string, ttl time.Duration) (bool, error)
	PushBoundedList(ctx context.Context, primaryKey, listKey, id, payload string, ttl time.Duration, maxLen int, prunePrefix string) error
	ListRange(ctx context.Context, key string) ([]string, error)
}

// Locks is the lockout-counter surface, keyed {site}:{purpose}:{identity}.
type Locks interface {
	IsLocked(ctx context.Context, site domain.Site, purpose domain.Purpose, identity string, threshold int) (bool, error)
	Increment(ctx context.Context, site domain.Site, purpose domain.Purpose, identity string, ttl time.Duration, max int) error
	Clear(ctx context.Context, site domain.Site, identity string, purposes ...domain.Purpose) error
}

type Service interface {
	Begin(ctx context.Context, site domain.Site, hashedIP string, req domain.BeginRequest) (*Cookie, error)
	Forgot(ctx context.Context, site domain.Site, hashedIP, email string) (*Cookie, error)
	Verify(ctx context.Context, site domain.Site, hashedIP string, jar CookieJar, token string) (*Cookie, error)
	Resend(ctx context.Context, site domain.Site, hashedIP string, jar CookieJar) (*Cookie, error)
	Authorize(ctx context.Context, site domain.Site, sessionID string) (string, error)
	Logout(ctx context.Context, site domain.Site, sessionID string) error
}

type service struct {
	accounts AccountStore
	cache    Cache
	locks    Locks
	mailer   smtp.Mailer
	cfg      config.AuthTunables

	// spawn runs the fire-and-forget code delivery. Overridden in tests to
	// run inline.
	spawn func(func())
}

func NewService(accounts AccountStore, cache Cache, locks Locks, mailer smtp.Mailer, cfg config.AuthTunables) Service {
	return &service{
		accounts: accounts,
		cache:    cache,
		locks:    locks,
		mailer:   mailer,
		cfg:      cfg,
		spawn:    func(fn func()) { go fn() },
	}
}

// lockID scopes a lockout counter to one client/account pair so an attacker
// cannot lock an account out from a different network path.
func lockID(hashedIP, email string) string {
	return hashedIP + ":" + email
}

// Begin starts a login or signup flow. Every rejection after the lockout
// check collapses to the same coarse message so the response never reveals
// whether the account exists or which check failed.
func (s *service) Begin(ctx context.Context, site domain.Site, hashedIP string, req domain.BeginRequest) (*Cookie, error) {
	lid := lockID(hashedIP, req.Email)

	if err := s.checkBeginLocks(ctx, site, lid); err != nil {
		return nil, err
	}

	// The reset flow has its own endpoint; funnelling it through here costs
	// a failed attempt.
	if req.Action == domain.ActionForgot {
		if err := s.locks.Increment(ctx, site, domain.PurposeAuthLock, lid, s.cfg.AuthLockTTL, s.cfg.MaxAuthAttempts); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", domain.MsgInvalidAccount, domain.ErrUnauthorized)
	}

	if err := s.validateAccount(req.Email, req.Password); err != nil {
		return nil, err
	}

	pending, err := s.buildPending(ctx, site, lid, req)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, fmt.Errorf("%s: %w", domain.MsgUnableToVerify, domain.ErrUnauthorized)
	}

	if err := s.locks.Clear(ctx, site, lid, domain.PurposeAuthLock); err != nil {
		return nil, err
	}

	return s.issuePending(ctx, site, pending, domain.PurposeAuth, "", lid)
}

// Forgot starts a password reset. It always succeeds from the client's point
// of view; whether a code actually goes out is decided inside the delivery
// task so the response cannot be used to probe registration.
func (s *service) Forgot(ctx context.Context, site domain.Site, hashedIP, email string) (*Cookie, error) {
	if !validate.CampusEmail(email) {
		return nil, fmt.Errorf("email must be a campus address: %w", domain.ErrBadRequest)
	}

	lid := lockID(hashedIP, email)
	for _, check := range []struct {
		purpose   domain.Purpose
		threshold int
	}{
		{domain.PurposeVerifyLock, s.cfg.MaxVerifyAttempts},
		{domain.PurposeCodeLock, s.cfg.MaxCodesSent},
	} {
		locked, err := s.locks.IsLocked(ctx, site, check.purpose, lid, check.threshold)
		if err != nil {
			return nil, err
		}
		if locked {
			return nil, fmt.Errorf("%s: %w", domain.MsgTryAgainLater, domain.ErrUnauthorized)
		}
	}

	otp, err := code.New(s.cfg.CodeLength)
	if err != nil {
		return nil, err
	}
	pending := &domain.PendingAccount{
		Email:  email,
		Action: domain.ActionForgot,
		Code:   otp,
	}

	return s.issuePending(ctx, site, pending, domain.PurposeForgot, lid, lid)
}

// Verify consumes a pending cookie. The pending entry is deleted only on a
// code match, so a wrong guess does not burn the grant; repeated wrong
// guesses are cut off by the verify lock instead.
func (s *service) Verify(ctx context.Context, site domain.Site, hashedIP string, jar CookieJar, token string) (*Cookie, error) {
	purpose, pendingID, payload, err := s.resolvePending(ctx, site, jar,
		domain.PurposeForgot, domain.PurposeUpdate, domain.PurposeAuth)
	if err != nil {
		return nil, err
	}

	if err := s.checkTokenContent(purpose, token); err != nil {
		return nil, err
	}

	pending, err := s.consumePending(ctx, site, hashedIP, purpose, pendingID, payload, token)
	if err != nil {
		return nil, err
	}

	lid := lockID(hashedIP, pending.Email)
	if err := s.locks.Clear(ctx, site, lid,
		domain.PurposeCodeLock, domain.PurposeForgotLock,
		domain.PurposeAuthLock, domain.PurposeVerifyLock); err != nil {
		return nil, err
	}

	switch purpose {
	case domain.PurposeForgot:
		if err := s.freezeAccount(ctx, site, pending.Email); err != nil {
			return nil, err
		}
		// Same payload, new id: the client now holds an update-password
		// grant instead of a code challenge.
		return s.issueRaw(ctx, site, domain.PurposeUpdate, payload)
	case domain.PurposeUpdate:
		if err := s.unfreezeAccount(ctx, pending.Email, token); err != nil {
			return nil, err
		}
	}

	return s.createSession(ctx, site, pending)
}

// Resend reissues the one-time code for a live pending flow under a fresh id.
func (s *service) Resend(ctx context.Context, site domain.Site, hashedIP string, jar CookieJar) (*Cookie, error) {
	purpose, pendingID, payload, err := s.resolvePending(ctx, site, jar,
		domain.PurposeAuth, domain.PurposeForgot)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, redis.Key(site, purpose, pendingID)); err != nil {
		return nil, err
	}

	var pending domain.PendingAccount
	if err := json.Unmarshal([]byte(payload), &pending); err != nil {
		return nil, err
	}

	lid := lockID(hashedIP, pending.Email)
	locked, err := s.locks.IsLocked(ctx, site, domain.PurposeCodeLock, lid, s.cfg.MaxCodesSent)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, fmt.Errorf("%s: %w", domain.MsgTryAgainLater, domain.ErrUnauthorized)
	}

	otp, err := code.New(s.cfg.CodeLength)
	if err != nil {
		return nil, err
	}
	pending.Code = otp

	var forgotLid string
	if purpose == domain.PurposeForgot {
		forgotLid = lid
	}
	return s.issuePending(ctx, site, &pending, purpose, forgotLid, lid)
}

// Authorize resolves a session cookie to the account email it belongs to.
func (s *service) Authorize(ctx context.Context, site domain.Site, sessionID string) (string, error) {
	email, ok, err := s.cache.Get(ctx, redis.Key(site, domain.PurposeSession, sessionID))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", domain.MsgUnableToVerify, domain.ErrUnauthorized)
	}
	return email, nil
}

// Logout drops the presented session. The session list entry ages out with
// the list TTL; only the resolvable key must go now.
func (s *service) Logout(ctx context.Context, site domain.Site, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.cache.Delete(ctx, redis.Key(site, domain.PurposeSession, sessionID))
}

func (s *service) checkBeginLocks(ctx context.Context, site domain.Site, lid string) error {
	for _, check := range []struct {
		purpose   domain.Purpose
		threshold int
	}{
		{domain.PurposeAuthLock, s.cfg.MaxAuthAttempts},
		{domain.PurposeCodeLock, s.cfg.MaxCodesSent},
	} {
		locked, err := s.locks.IsLocked(ctx, site, check.purpose, lid, check.threshold)
		if err != nil {
			return err
		}
		if locked {
			return fmt.Errorf("%s: %w", domain.MsgTryAgainLater, domain.ErrUnauthorized)
		}
	}
	return nil
}

func (s *service) validateAccount(email, password string) error {
	if !validate.CampusEmail(email) {
		return fmt.Errorf("email must be a campus address: %w", domain.ErrBadRequest)
	}
	if len(password) < s.cfg.MinPasswordLen || len(password) >= s.cfg.MaxFieldChars {
		return fmt.Errorf("password must be %d to %d characters: %w",
			s.cfg.MinPasswordLen, s.cfg.MaxFieldChars-1, domain.ErrBadRequest)
	}
	return nil
}

// buildPending resolves the account row against the requested action and
// returns the pending entry, or nil when the request must fail coarsely.
func (s *service) buildPending(ctx context.Context, site domain.Site, lid string, req domain.BeginRequest) (*domain.PendingAccount, error) {
	otp, err := code.New(s.cfg.CodeLength)
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()

	account, err := s.accounts.Get(ctx, req.Email)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	switch {
	case account == nil:
		if req.Action == domain.ActionLogin {
			return nil, nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		hashStr := string(hash)
		return &domain.PendingAccount{
			Email:        req.Email,
			Action:       req.Action,
			Code:         otp,
			IssuedAt:     &now,
			PasswordHash: &hashStr,
		}, nil
	case req.Action == domain.ActionSignup || account.Locked:
		return nil, nil
	default:
		if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
			if err := s.locks.Increment(ctx, site, domain.PurposeAuthLock, lid, s.cfg.AuthLockTTL, s.cfg.MaxAuthAttempts); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return &domain.PendingAccount{
			Email:    req.Email,
			Action:   req.Action,
			Code:     otp,
			IssuedAt: &now,
		}, nil
	}
}

// issuePending stores the pending entry under a fresh opaque id, kicks off
// code delivery, and bumps the codes-sent counter. forgotLid and codeLid are
// lockout identities, empty when the corresponding counter does not apply.
func (s *service) issuePending(ctx context.Context, site domain.Site, pending *domain.PendingAccount, purpose domain.Purpose, forgotLid, codeLid string) (*Cookie, error) {
	payload, err := json.Marshal(pending)
	if err != nil {
		return nil, err
	}

	s.deliverCode(site, pending.Email, pending.Code, forgotLid)

	if codeLid != "" {
		if err := s.locks.Increment(ctx, site, domain.PurposeCodeLock, codeLid, s.cfg.CodeLockTTL, s.cfg.MaxCodesSent); err != nil {
			return nil, err
		}
	}

	return s.issueRaw(ctx, site, purpose, string(payload))
}

func (s *service) issueRaw(ctx context.Context, site domain.Site, purpose domain.Purpose, payload string) (*Cookie, error) {
	pendingID := id.New()
	if err := s.cache.SetWithTTL(ctx, redis.Key(site, purpose, pendingID), payload, s.cfg.TempSessionTTL); err != nil {
		return nil, err
	}
	return &Cookie{Purpose: purpose, ID: pendingID, TTL: s.cfg.TempSessionTTL}, nil
}

// deliverCode emails the one-time code off the request path. Failures are
// logged, never surfaced: the client learns nothing about delivery. For the
// reset flow the task re-checks that the recipient exists and is under the
// codes-sent budget, then counts the send.
func (s *service) deliverCode(site domain.Site, email, otp, forgotLid string) {
	s.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if forgotLid != "" {
			if _, err := s.accounts.Get(ctx, email); err != nil {
				return
			}
			locked, err := s.locks.IsLocked(ctx, site, domain.PurposeForgotLock, forgotLid, s.cfg.MaxVerifyAttempts)
			if err != nil || locked {
				return
			}
			defer func() {
				if err := s.locks.Increment(ctx, site, domain.PurposeForgotLock, forgotLid, s.cfg.VerifyLockTTL, s.cfg.MaxVerifyAttempts); err != nil {
					slog.Warn("could not count code delivery", "err", err)
				}
			}()
		}

		if err := s.mailer.SendEmail(email, "Your verification code", fmt.Sprintf("Your code is %s", otp)); err != nil {
			slog.Warn("could not deliver code", "err", err)
		}
	})
}

// resolvePending finds the first live pending cookie among purposes, in order.
func (s *service) resolvePending(ctx context.Context, site domain.Site, jar CookieJar, purposes ...domain.Purpose) (domain.Purpose, string, string, error) {
	for _, purpose := range purposes {
		pendingID, ok := jar[purpose]
		if !ok || pendingID == "" {
			continue
		}
		payload, found, err := s.cache.Get(ctx, redis.Key(site, purpose, pendingID))
		if err != nil {
			return "", "", "", err
		}
		if found {
			return purpose, pendingID, payload, nil
		}
	}
	return "", "", "", fmt.Errorf("%s: %w", domain.MsgUnableToVerify, domain.ErrUnauthorized)
}

func (s *service) checkTokenContent(purpose domain.Purpose, token string) error {
	if purpose == domain.PurposeUpdate {
		return s.validatePassword(token)
	}
	if len(token) != s.cfg.CodeLength || !codeRegex.MatchString(token) {
		return fmt.Errorf("malformed code: %w", domain.ErrBadRequest)
	}
	return nil
}

func (s *service) validatePassword(password string) error {
	if len(password) < s.cfg.MinPasswordLen || len(password) >= s.cfg.MaxFieldChars {
		return fmt.Errorf("password must be %d to %d characters: %w",
			s.cfg.MinPasswordLen, s.cfg.MaxFieldChars-1, domain.ErrBadRequest)
	}
	return nil
}

// consumePending runs the single-shot gate, the verify-lock check, the
// freeze-race check and the code comparison, deleting the pending entry on a
// match.
func (s *service) consumePending(ctx context.Context, site domain.Site, hashedIP string, purpose domain.Purpose, pendingID, payload, token string) (*domain.PendingAccount, error) {
	coarse := fmt.Errorf("%s: %w", domain.MsgUnableToVerify, domain.ErrUnauthorized)

	// One attempt per pending id at a time. The short TTL only has to cover
	// a double-submit, not the whole flow.
	created, err := s.cache.SetIfAbsentWithTTL(ctx, redis.Key(site, domain.PurposeTempLock, pendingID), time.Second)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, coarse
	}

	var pending domain.PendingAccount
	if err := json.Unmarshal([]byte(payload), &pending); err != nil {
		return nil, err
	}

	lid := lockID(hashedIP, pending.Email)
	locked, err := s.locks.IsLocked(ctx, site, domain.PurposeVerifyLock, lid, s.cfg.MaxVerifyAttempts)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, coarse
	}

	frozen := false
	if purpose == domain.PurposeAuth {
		frozen, err = s.issuedBeforeFreeze(ctx, site, &pending)
		if err != nil {
			return nil, err
		}
	}

	if !frozen && purpose != domain.PurposeUpdate && token != pending.Code {
		if err := s.locks.Increment(ctx, site, domain.PurposeVerifyLock, lid, s.cfg.VerifyLockTTL, s.cfg.MaxVerifyAttempts); err != nil {
			return nil, err
		}
		return nil, coarse
	}

	if err := s.cache.Delete(ctx, redis.Key(site, purpose, pendingID)); err != nil {
		return nil, err
	}

	if frozen {
		return nil, coarse
	}
	return &pending, nil
}

// issuedBeforeFreeze rejects login grants issued before the account was
// frozen: a reset in flight invalidates every code that predates it, even a
// correct one.
func (s *service) issuedBeforeFreeze(ctx context.Context, site domain.Site, pending *domain.PendingAccount) (bool, error) {
	account, err := s.accounts.Get(ctx, pending.Email)
	if err != nil && !isNotFound(err) {
		return false, err
	}
	if account != nil && account.Locked {
		return true, nil
	}

	frozenAt, ok, err := s.cache.Get(ctx, redis.Key(site, domain.PurposeFreezeTime, pending.Email))
	if err != nil {
		return false, err
	}
	if !ok || pending.IssuedAt == nil {
		return false, nil
	}
	var freezeMillis int64
	if _, err := fmt.Sscanf(frozenAt, "%d", &freezeMillis); err != nil {
		return true, nil
	}
	return *pending.IssuedAt < freezeMillis, nil
}

// freezeAccount locks the row, stamps the freeze time and severs every live
// session. Idempotent against an already-frozen account.
func (s *service) freezeAccount(ctx context.Context, site domain.Site, email string) error {
	account, err := s.accounts.Get(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if account.Locked {
		return nil
	}

	// The 500 ms skew allowance keeps a grant issued in the same instant as
	// the freeze on the rejected side of the comparison.
	frozenAt := time.Now().Add(500 * time.Millisecond).UnixMilli()
	if err := s.cache.SetWithTTL(ctx, redis.Key(site, domain.PurposeFreezeTime, email),
		fmt.Sprintf("%d", frozenAt), s.cfg.FreezeTTL); err != nil {
		return err
	}

	if err := s.accounts.SetLocked(ctx, email, true); err != nil {
		return err
	}

	return s.deleteAllSessions(ctx, site, email)
}

func (s *service) unfreezeAccount(ctx context.Context, email, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.accounts.UpdatePassword(ctx, email, string(hash))
}

// createSession finalizes a verified flow: a signup inserts the account row,
// then the session registers in the bounded per-account list. The list is the
// only eviction point; sessions have no idle timeout.
func (s *service) createSession(ctx context.Context, site domain.Site, pending *domain.PendingAccount) (*Cookie, error) {
	if pending.Action == domain.ActionSignup {
		if pending.PasswordHash == nil {
			return nil, fmt.Errorf("signup grant without password: %w", domain.ErrUnauthorized)
		}
		if err := s.accounts.Put(ctx, &domain.Account{
			Email:        pending.Email,
			PasswordHash: *pending.PasswordHash,
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
	}

	sessionID := id.New()
	prefix := redis.KeyPrefix(site, domain.PurposeSession)
	err := s.cache.PushBoundedList(ctx,
		redis.Key(site, domain.PurposeSession, sessionID),
		redis.Key(site, domain.PurposeSessions, pending.Email),
		sessionID, pending.Email,
		s.cfg.SessionTTL, s.cfg.MaxSessions, prefix)
	if err != nil {
		return nil, err
	}

	return &Cookie{Purpose: domain.PurposeSession, ID: sessionID, TTL: s.cfg.SessionTTL}, nil
}

func (s *service) deleteAllSessions(ctx context.Context, site domain.Site, email string) error {
	listKey := redis.Key(site, domain.PurposeSessions, email)
	sessionIDs, err := s.cache.ListRange(ctx, listKey)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(sessionIDs)+1)
	for _, sid := range sessionIDs {
		keys = append(keys, redis.Key(site, domain.PurposeSession, sid))
	}
	keys = append(keys, listKey)
	return s.cache.DeleteBatch(ctx, keys...)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
