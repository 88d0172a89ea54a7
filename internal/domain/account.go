package domain

import "time"

// Action is the authentication flow a client asked for.
type Action string

const (
	ActionLogin  Action = "login"
	ActionSignup Action = "signup"
	ActionForgot Action = "forgot"
)

// Account is the persisted account row. Locked accounts (frozen after a
// password-reset request) reject logins until the password is updated.
type Account struct {
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Locked       bool      `json:"locked" dynamodbav:"locked"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}

// PendingAccount is the not-yet-verified half of an authentication flow.
// It lives only in the cache, serialized under an opaque id, and is consumed
// exactly once by a successful verification or dropped by TTL.
type PendingAccount struct {
	Email  string `json:"email"`
	Action Action `json:"action"`
	Code   string `json:"code"`
	// IssuedAt is the issue time in Unix milliseconds. Compared against the
	// account freeze timestamp so a pending login issued before a freeze can
	// never complete. Absent for forgot flows.
	IssuedAt *int64 `json:"issued_timestamp,omitempty"`
	// PasswordHash is only carried for signups, where no account row exists
	// yet to hold it.
	PasswordHash *string `json:"password_hash,omitempty"`
}

// VerifiedResult is the outcome of resolving a cookie-carried opaque id
// against the cache. Payload holds the serialized entry the id referenced.
type VerifiedResult struct {
	Payload string
	Purpose Purpose
	ID      string
}

// Purpose namespaces cache keys: cookie/session purposes and lockout
// counters. Keys are laid out as {site}:{purpose}:{identity}.
type Purpose string

const (
	PurposeAuth       Purpose = "auth_id"
	PurposeForgot     Purpose = "forgot_id"
	PurposeUpdate     Purpose = "update_id"
	PurposeSession    Purpose = "session_id"
	PurposeSessions   Purpose = "sessions"
	PurposeAuthLock   Purpose = "auth_lock"
	PurposeVerifyLock Purpose = "verify_lock"
	PurposeForgotLock Purpose = "forgot_lock"
	PurposeCodeLock   Purpose = "code_lock"
	PurposeItemLock   Purpose = "item_lock"
	PurposeTempLock   Purpose = "temporary_lock"
	PurposeFreezeTime Purpose = "locked_timestamp"
	PurposeMetric     Purpose = "metric"
)

// Site is the path-prefix label of one hosted frontend. Each site gets its
// own cache namespace, search indexes and API token key.
type Site string

const (
	SiteSwap    Site = "swap"
	SiteHousing Site = "housing"
	SiteHome    Site = "home"
)

// BeginRequest is the payload of an authenticate call.
type BeginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Action   Action `json:"action" validate:"required,oneof=login signup forgot"`
}

// TokenRequest carries either a one-time code, a new password (update flow)
// or an email address (forgot flow), depending on the endpoint.
type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}
