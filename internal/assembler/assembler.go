// internal/assembler/assembler.go
package assembler

import (
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
	"github.com/xkilldash9x/sessionvault/internal/classifier"
	"github.com/xkilldash9x/sessionvault/internal/store"
)

// defaultSessionTTL applies when no captured artifact carries an expiry.
const defaultSessionTTL = 30 * 24 * time.Hour

// Assembler turns a raw storage snapshot into a normalized Session entity
// and emits it to the session store. Assembly never fails: malformed URLs
// fall back to a best-effort domain split and malformed artifacts are
// silently omitted.
type Assembler struct {
	classifier *classifier.Classifier
	sessions   *store.SessionStore
	log        *zap.Logger
	now        func() time.Time
	defaults   schemas.SessionMetadata
	ttl        time.Duration
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithMetadataDefaults replaces the environment defaults stamped onto every
// captured session. Per-capture overrides still win field by field.
func WithMetadataDefaults(md schemas.SessionMetadata) Option {
	return func(a *Assembler) { a.defaults = md }
}

// WithDefaultTTL replaces the fallback session lifetime applied when no
// captured artifact carries an expiry. Non-positive values are ignored.
func WithDefaultTTL(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.ttl = d
		}
	}
}

// New creates an Assembler bound to a classifier and a session store.
func New(cls *classifier.Classifier, sessions *store.SessionStore, logger *zap.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		classifier: cls,
		sessions:   sessions,
		log:        logger.Named("assembler"),
		now:        time.Now,
		defaults:   DefaultMetadata(),
		ttl:        defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultMetadata describes the current runtime environment. Callers override
// individual fields through the Assemble overrides parameter.
func DefaultMetadata() schemas.SessionMetadata {
	locale := "en-US"
	tz := "UTC"
	if name, _ := time.Now().Zone(); name != "" {
		tz = name
	}
	return schemas.SessionMetadata{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		OS:        runtime.GOOS,
		Browser:   "chromium",
		Screen:    "1920x1080",
		Timezone:  tz,
		Locale:    locale,
	}
}

// Assemble builds a Session from a snapshot, resolves identity against the
// store (reusing the existing id for (profileID, domain)), upserts the result
// and returns it.
func (a *Assembler) Assemble(profileID, originURL string, snap schemas.Snapshot, overrides *schemas.SessionMetadata) *schemas.Session {
	now := a.now()
	domain, subdomain := SplitHost(originURL)

	sess := &schemas.Session{
		ID:             uuid.NewString(),
		ProfileID:      profileID,
		Domain:         domain,
		Subdomain:      subdomain,
		OriginURL:      originURL,
		SiteName:       SiteName(domain, subdomain),
		Cookies:        snap.Cookies,
		LocalStorage:   snap.LocalStorage,
		SessionStorage: snap.SessionStorage,
		Headers:        snap.Headers,
		CapturedAt:     now,
		Status:         schemas.StatusActive,
		LoginState:     schemas.LoginStateUnknown,
		Metadata:       a.metadata(overrides),
	}

	sess.Tokens = a.collectArtifacts(snap, now)
	sess.ExpiresAt = aggregateExpiry(sess.Tokens, now, a.ttl)
	sess.LoginState = a.estimateLoginState(sess, now)
	if expired(sess, now) {
		sess.Status = schemas.StatusExpired
	}

	// Merge-by-identity: a re-capture for the same (profile, domain) keeps
	// the existing id and replaces every other field wholesale.
	if existing, ok := a.sessions.FindByIdentity(profileID, domain); ok {
		sess.ID = existing.ID
		a.log.Debug("Re-capture merged into existing session.",
			zap.String("id", sess.ID), zap.String("domain", domain))
	}

	a.sessions.Upsert(sess)
	a.log.Info("Session captured.",
		zap.String("id", sess.ID),
		zap.String("profile", profileID),
		zap.String("domain", domain),
		zap.String("login_state", string(sess.LoginState)),
		zap.Int("tokens", len(sess.Tokens)))
	return sess
}

// collectArtifacts runs the classifier over every cookie, storage pair, and
// header. Classification is per-artifact best-effort: anything the classifier
// rejects is simply absent from the result.
func (a *Assembler) collectArtifacts(snap schemas.Snapshot, now time.Time) []schemas.Artifact {
	tokens := make([]schemas.Artifact, 0, len(snap.Cookies))

	for _, ck := range snap.Cookies {
		if art := a.classifier.ClassifyCookie(ck, now); art != nil {
			tokens = append(tokens, *art)
		}
	}
	for k, v := range snap.LocalStorage {
		if art := a.classifier.ClassifyStorage(schemas.SourceLocalStorage, k, v, now); art != nil {
			tokens = append(tokens, *art)
		}
	}
	for k, v := range snap.SessionStorage {
		if art := a.classifier.ClassifyStorage(schemas.SourceSessionStorage, k, v, now); art != nil {
			tokens = append(tokens, *art)
		}
	}
	for k, v := range snap.Headers {
		if art := a.classifier.ClassifyStorage(schemas.SourceHeader, k, v, now); art != nil {
			tokens = append(tokens, *art)
		}
	}
	return tokens
}

// aggregateExpiry returns the earliest expiry among currently-valid
// artifacts, or capture time + the fallback TTL when none carries one. A
// short-lived CSRF token can drag the whole session's expiry down; that
// behavior is inherited and deliberate.
func aggregateExpiry(tokens []schemas.Artifact, now time.Time, ttl time.Duration) *time.Time {
	var earliest *time.Time
	for i := range tokens {
		t := &tokens[i]
		if t.ExpiresAt == nil || !t.ValidAt(now) {
			continue
		}
		if earliest == nil || t.ExpiresAt.Before(*earliest) {
			earliest = t.ExpiresAt
		}
	}
	if earliest == nil {
		def := now.Add(ttl)
		return &def
	}
	return earliest
}

// estimateLoginState derives the coarse login estimate. Capture alone never
// yields logged_out.
func (a *Assembler) estimateLoginState(sess *schemas.Session, now time.Time) schemas.LoginState {
	for i := range sess.Tokens {
		t := &sess.Tokens[i]
		if t.GrantsLogin() && t.ValidAt(now) {
			return schemas.LoginStateLoggedIn
		}
	}
	for _, ck := range sess.Cookies {
		if a.classifier.MatchesSessionPattern(ck.Name) {
			if exp, ok := ck.ExpiresAt(); ok && !exp.After(now) {
				continue
			}
			return schemas.LoginStateLoggedIn
		}
	}
	return schemas.LoginStateUnknown
}

// expired reports whether any artifact or the session itself has already
// passed its expiry at capture time.
func expired(sess *schemas.Session, now time.Time) bool {
	for i := range sess.Tokens {
		t := &sess.Tokens[i]
		if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			return true
		}
	}
	return sess.ExpiresAt != nil && !sess.ExpiresAt.After(now)
}

func (a *Assembler) metadata(overrides *schemas.SessionMetadata) schemas.SessionMetadata {
	md := a.defaults
	if overrides == nil {
		return md
	}
	if overrides.UserAgent != "" {
		md.UserAgent = overrides.UserAgent
	}
	if overrides.OS != "" {
		md.OS = overrides.OS
	}
	if overrides.Browser != "" {
		md.Browser = overrides.Browser
	}
	if overrides.Screen != "" {
		md.Screen = overrides.Screen
	}
	if overrides.Timezone != "" {
		md.Timezone = overrides.Timezone
	}
	if overrides.Locale != "" {
		md.Locale = overrides.Locale
	}
	return md
}

// SplitHost parses an origin URL into its registrable domain (the last two
// host labels) and the remaining subdomain labels. A malformed URL is treated
// as a bare domain with no subdomain; this never fails.
func SplitHost(originURL string) (domain, subdomain string) {
	host := ""
	if u, err := url.Parse(strings.TrimSpace(originURL)); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	} else {
		raw := strings.TrimSpace(originURL)
		raw = strings.TrimPrefix(raw, "https://")
		raw = strings.TrimPrefix(raw, "http://")
		if i := strings.IndexAny(raw, "/?#"); i >= 0 {
			raw = raw[:i]
		}
		if i := strings.IndexByte(raw, ':'); i >= 0 {
			raw = raw[:i]
		}
		host = raw
	}

	host = strings.ToLower(strings.TrimSuffix(host, "."))
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host, ""
	}
	return strings.Join(labels[len(labels)-2:], "."), strings.Join(labels[:len(labels)-2], ".")
}

// SiteName derives a display name from the host: the first label after any
// leading "www.", capitalized.
func SiteName(domain, subdomain string) string {
	label := domain
	if subdomain != "" && subdomain != "www" {
		label = strings.TrimPrefix(subdomain, "www.")
	}
	label, _, _ = strings.Cut(label, ".")
	if label == "" {
		return domain
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
