// internal/assembler/assembler_test.go
package assembler

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
	"github.com/xkilldash9x/sessionvault/internal/classifier"
	"github.com/xkilldash9x/sessionvault/internal/store"
)

func newTestAssembler(t *testing.T) (*Assembler, *store.SessionStore) {
	t.Helper()
	sessions := store.NewSessionStore(zap.NewNop())
	return New(classifier.New(), sessions, zap.NewNop()), sessions
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestAssembleExpiredCookieYieldsExpiredSession(t *testing.T) {
	a, _ := newTestAssembler(t)

	snap := schemas.Snapshot{
		Cookies: []schemas.Cookie{
			{Name: "session_id", Value: "stale", Expires: float64(time.Now().Add(-time.Hour).Unix())},
		},
	}

	sess := a.Assemble("profile-1", "https://app.example.com/dashboard", snap, nil)
	require.NotNil(t, sess)
	assert.Equal(t, schemas.StatusExpired, sess.Status)
	assert.NotEqual(t, schemas.LoginStateLoggedIn, sess.LoginState)
}

func TestAssembleJWTInLocalStorage(t *testing.T) {
	a, _ := newTestAssembler(t)
	exp := time.Now().Add(3 * time.Hour)
	token := signToken(t, jwt.MapClaims{"sub": "user-1", "exp": exp.Unix()})

	snap := schemas.Snapshot{
		LocalStorage: map[string]string{"access_token": token},
	}

	sess := a.Assemble("profile-1", "https://example.com", snap, nil)
	require.NotNil(t, sess)
	assert.Equal(t, schemas.StatusActive, sess.Status)
	assert.Equal(t, schemas.LoginStateLoggedIn, sess.LoginState)
	require.NotNil(t, sess.ExpiresAt)
	assert.WithinDuration(t, exp, *sess.ExpiresAt, time.Second)
	require.Len(t, sess.Tokens, 1)
	assert.Equal(t, schemas.TokenJWT, sess.Tokens[0].Type)
}

func TestAssembleRecaptureMergesByIdentity(t *testing.T) {
	a, sessions := newTestAssembler(t)

	first := a.Assemble("profile-1", "https://example.com/a", schemas.Snapshot{
		Cookies: []schemas.Cookie{{Name: "session_id", Value: "one"}},
	}, nil)
	second := a.Assemble("profile-1", "https://example.com/b", schemas.Snapshot{
		Cookies: []schemas.Cookie{{Name: "session_id", Value: "two"}},
	}, nil)

	assert.Equal(t, first.ID, second.ID)

	stored, ok := sessions.Get(first.ID)
	require.True(t, ok)
	require.Len(t, stored.Cookies, 1)
	assert.Equal(t, "two", stored.Cookies[0].Value)
	assert.Equal(t, "https://example.com/b", stored.OriginURL)
	assert.Len(t, sessions.List(), 1)
}

func TestAssembleDistinctIdentitiesStaySeparate(t *testing.T) {
	a, sessions := newTestAssembler(t)

	a.Assemble("profile-1", "https://example.com", schemas.Snapshot{}, nil)
	a.Assemble("profile-2", "https://example.com", schemas.Snapshot{}, nil)
	a.Assemble("profile-1", "https://other.org", schemas.Snapshot{}, nil)

	assert.Len(t, sessions.List(), 3)
}

func TestAssembleDefaultTTLWhenNoArtifactExpiry(t *testing.T) {
	a, _ := newTestAssembler(t)
	before := time.Now()

	sess := a.Assemble("profile-1", "https://example.com", schemas.Snapshot{
		Cookies: []schemas.Cookie{{Name: "session_id", Value: "opaque"}},
	}, nil)

	require.NotNil(t, sess.ExpiresAt)
	assert.WithinDuration(t, before.Add(defaultSessionTTL), *sess.ExpiresAt, time.Minute)
	assert.Equal(t, schemas.LoginStateLoggedIn, sess.LoginState)
}

func TestAssembleConfiguredDefaults(t *testing.T) {
	sessions := store.NewSessionStore(zap.NewNop())
	md := DefaultMetadata()
	md.UserAgent = "operator-agent/2.0"
	md.Screen = "2560x1440"
	a := New(classifier.New(), sessions, zap.NewNop(),
		WithMetadataDefaults(md),
		WithDefaultTTL(48*time.Hour))

	before := time.Now()
	sess := a.Assemble("profile-1", "https://example.com", schemas.Snapshot{
		Cookies: []schemas.Cookie{{Name: "session_id", Value: "opaque"}},
	}, nil)

	assert.Equal(t, "operator-agent/2.0", sess.Metadata.UserAgent)
	assert.Equal(t, "2560x1440", sess.Metadata.Screen)
	require.NotNil(t, sess.ExpiresAt)
	assert.WithinDuration(t, before.Add(48*time.Hour), *sess.ExpiresAt, time.Minute)

	// Per-capture overrides still win over the configured defaults.
	over := a.Assemble("profile-2", "https://example.com", schemas.Snapshot{},
		&schemas.SessionMetadata{UserAgent: "custom-agent/1.0"})
	assert.Equal(t, "custom-agent/1.0", over.Metadata.UserAgent)

	// A non-positive TTL keeps the built-in fallback.
	b := New(classifier.New(), sessions, zap.NewNop(), WithDefaultTTL(0))
	assert.Equal(t, defaultSessionTTL, b.ttl)
}

func TestAssembleMalformedURLNeverFails(t *testing.T) {
	a, _ := newTestAssembler(t)

	sess := a.Assemble("profile-1", "::::not a url::::", schemas.Snapshot{}, nil)
	require.NotNil(t, sess)
	assert.Equal(t, schemas.StatusActive, sess.Status)
	assert.NotEmpty(t, sess.ID)
}

func TestAssembleMetadataOverrides(t *testing.T) {
	a, _ := newTestAssembler(t)

	sess := a.Assemble("profile-1", "https://example.com", schemas.Snapshot{},
		&schemas.SessionMetadata{UserAgent: "custom-agent/1.0", Locale: "de-DE"})

	assert.Equal(t, "custom-agent/1.0", sess.Metadata.UserAgent)
	assert.Equal(t, "de-DE", sess.Metadata.Locale)
	// Untouched fields keep their defaults.
	assert.NotEmpty(t, sess.Metadata.Browser)
}

func TestSplitHost(t *testing.T) {
	testCases := []struct {
		name          string
		url           string
		wantDomain    string
		wantSubdomain string
	}{
		{"full url with subdomain", "https://app.example.com/dashboard", "example.com", "app"},
		{"bare domain", "https://example.com", "example.com", ""},
		{"www prefix", "https://www.example.com/login", "example.com", "www"},
		{"deep subdomains", "https://a.b.example.co", "example.co", "a.b"},
		{"no scheme", "example.com/path", "example.com", ""},
		{"host with port", "https://api.example.com:8443", "example.com", "api"},
		{"localhost", "http://localhost:3000", "localhost", ""},
		{"trailing dot", "https://example.com.", "example.com", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			domain, subdomain := SplitHost(tc.url)
			assert.Equal(t, tc.wantDomain, domain)
			assert.Equal(t, tc.wantSubdomain, subdomain)
		})
	}
}

func TestSiteName(t *testing.T) {
	testCases := []struct {
		name      string
		domain    string
		subdomain string
		want      string
	}{
		{"bare domain", "example.com", "", "Example"},
		{"www ignored", "example.com", "www", "Example"},
		{"subdomain wins", "example.com", "mail", "Mail"},
		{"nested subdomain uses first label", "example.com", "app.internal", "App"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SiteName(tc.domain, tc.subdomain))
		})
	}
}
