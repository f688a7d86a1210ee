package schemas

import (
	"strings"
	"time"
)

// -- Artifact Schemas --

// ArtifactSource identifies where an authentication artifact was extracted from.
type ArtifactSource string

const (
	SourceCookie         ArtifactSource = "cookie"
	SourceLocalStorage   ArtifactSource = "local-store"
	SourceSessionStorage ArtifactSource = "session-store"
	SourceHeader         ArtifactSource = "header"
)

// TokenType is the heuristic classification assigned to an artifact.
type TokenType string

const (
	TokenJWT          TokenType = "jwt"
	TokenBearer       TokenType = "bearer"
	TokenOAuthAccess  TokenType = "oauth-access"
	TokenOAuthRefresh TokenType = "oauth-refresh"
	TokenSessionID    TokenType = "session-id"
	TokenCSRF         TokenType = "csrf"
	TokenAPIKey       TokenType = "api-key"
	TokenAuthToken    TokenType = "auth-token"
	TokenCustom       TokenType = "custom"
)

// Artifact is a single classified authentication-relevant value extracted from
// a cookie, a storage entry, or a response header. Artifacts are ephemeral:
// they are recomputed on every capture and carried inside the owning Session.
type Artifact struct {
	Source         ArtifactSource         `json:"source"`
	Name           string                 `json:"name"`
	Value          string                 `json:"value"`
	Type           TokenType              `json:"type"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
	DecodedPayload map[string]interface{} `json:"decodedPayload,omitempty"`
	IsValid        bool                   `json:"isValid"`
}

// ValidAt reports whether the artifact is unexpired at the given instant.
// Artifacts without an expiry never expire.
func (a *Artifact) ValidAt(t time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(t)
}

// GrantsLogin reports whether a valid artifact of this type is strong enough
// evidence to estimate the session as logged in.
func (a *Artifact) GrantsLogin() bool {
	switch a.Type {
	case TokenJWT, TokenBearer, TokenOAuthAccess, TokenAuthToken, TokenSessionID:
		return true
	default:
		return false
	}
}

// -- Snapshot Schemas --

// CookieSameSite defines the SameSite attribute for cookies.
type CookieSameSite string

const (
	CookieSameSiteStrict CookieSameSite = "Strict"
	CookieSameSiteLax    CookieSameSite = "Lax"
	CookieSameSiteNone   CookieSameSite = "None"
)

// Cookie represents a browser cookie as handed over by the automation layer.
// Expires is epoch seconds; values <= 0 indicate a session cookie.
type Cookie struct {
	Name     string         `json:"name"`
	Value    string         `json:"value"`
	Domain   string         `json:"domain,omitempty"`
	Path     string         `json:"path,omitempty"`
	Expires  float64        `json:"expires,omitempty"`
	HTTPOnly bool           `json:"httpOnly,omitempty"`
	Secure   bool           `json:"secure,omitempty"`
	Session  bool           `json:"session,omitempty"`
	SameSite CookieSameSite `json:"sameSite,omitempty"`
}

// ExpiresAt converts the raw epoch expiry to a time.Time. The second return
// value is false for session cookies and cookies without an expiry.
func (c *Cookie) ExpiresAt() (time.Time, bool) {
	if c.Session || c.Expires <= 0 {
		return time.Time{}, false
	}
	sec := int64(c.Expires)
	nsec := int64((c.Expires - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec), true
}

// Snapshot is the raw page-storage state captured by the external browser
// automation layer after a page load. It is the sole inbound payload of the
// capture engine.
type Snapshot struct {
	Cookies        []Cookie          `json:"cookies"`
	LocalStorage   map[string]string `json:"local_storage"`
	SessionStorage map[string]string `json:"session_storage"`
	Headers        map[string]string `json:"headers,omitempty"`
}

// -- Session Schemas --

// SessionStatus is the lifecycle state of a captured session.
type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusExpired SessionStatus = "expired"
	StatusRevoked SessionStatus = "revoked"
	StatusUnknown SessionStatus = "unknown"
)

// LoginState is the coarse login estimate derived from the captured artifacts.
// The engine never asserts logged_out from a capture alone.
type LoginState string

const (
	LoginStateLoggedIn  LoginState = "logged_in"
	LoginStateLoggedOut LoginState = "logged_out"
	LoginStateUnknown   LoginState = "unknown"
)

// SessionMetadata records the runtime environment a session was captured in.
type SessionMetadata struct {
	UserAgent string `json:"userAgent,omitempty"`
	OS        string `json:"os,omitempty"`
	Browser   string `json:"browser,omitempty"`
	Screen    string `json:"screen,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// Session is the durable captured-session entity. Identity is the pair
// (ProfileID, Domain); at most one live session exists per identity, and a
// re-capture for the same identity merges into the existing record.
type Session struct {
	ID             string            `json:"id"`
	ProfileID      string            `json:"profileId"`
	Domain         string            `json:"domain"`
	Subdomain      string            `json:"subdomain,omitempty"`
	OriginURL      string            `json:"originUrl"`
	SiteName       string            `json:"siteName"`
	Cookies        []Cookie          `json:"cookies"`
	LocalStorage   map[string]string `json:"localStorage"`
	SessionStorage map[string]string `json:"sessionStorage"`
	Tokens         []Artifact        `json:"tokens"`
	Headers        map[string]string `json:"headers,omitempty"`
	CapturedAt     time.Time         `json:"capturedAt"`
	ExpiresAt      *time.Time        `json:"expiresAt,omitempty"`
	LastUsed       *time.Time        `json:"lastUsed,omitempty"`
	Status         SessionStatus     `json:"status"`
	LoginState     LoginState        `json:"loginState"`
	Metadata       SessionMetadata   `json:"metadata"`
}

// IdentityKey returns the string form of the session identity used for
// merge resolution and durable upserts.
func (s *Session) IdentityKey() string {
	return strings.ToLower(s.ProfileID) + "|" + strings.ToLower(s.Domain)
}
