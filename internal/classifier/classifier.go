// internal/classifier/classifier.go
package classifier

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

// jwtShapeRegex is a cheap pre-filter for JWT-shaped values. It only checks
// the three-segment base64url alphabet; short dotted strings like "1.2.3"
// fall out at the JSON-decode step. No segment-length floor: a token with an
// empty claims payload ("e30") is still structurally a JWT.
var jwtShapeRegex = regexp.MustCompile(`^[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]*$`)

// parserUnverified inspects token contents without checking the signature.
// The engine only needs the claims; verification is the target site's job.
var parserUnverified = new(jwt.Parser)

// TypeRule maps key-substring evidence to a token type. All entries of All
// must appear in the lowercased key for the rule to fire. Rules are evaluated
// in order; the first match wins.
type TypeRule struct {
	All  []string
	Type schemas.TokenType
}

// DefaultTypeRules encodes the type-assignment precedence. The JWT shape test
// runs before any of these and always wins.
func DefaultTypeRules() []TypeRule {
	return []TypeRule{
		{All: []string{"refresh"}, Type: schemas.TokenOAuthRefresh},
		{All: []string{"access", "token"}, Type: schemas.TokenOAuthAccess},
		{All: []string{"csrf"}, Type: schemas.TokenCSRF},
		{All: []string{"xsrf"}, Type: schemas.TokenCSRF},
		{All: []string{"api", "key"}, Type: schemas.TokenAPIKey},
		{All: []string{"session"}, Type: schemas.TokenSessionID},
		{All: []string{"auth"}, Type: schemas.TokenAuthToken},
		{All: []string{"bearer"}, Type: schemas.TokenAuthToken},
		{All: []string{"token"}, Type: schemas.TokenBearer},
	}
}

// defaultSessionCookiePatterns match cookie names with session/auth
// semantics. Matching is heuristic by design; false positives are acceptable.
var defaultSessionCookiePatterns = []string{
	`(?i)sess(ion)?[_-]?id`,
	`(?i)session`,
	`(?i)auth`,
	`(?i)token`,
	`(?i)csrf`,
	`(?i)xsrf`,
	`(?i)login`,
	`(?i)account`,
	`(?i)\buser`,
	`(?i)remember`,
	`(?i)^sid$`,
	`(?i)^jsessionid$`,
	`(?i)^phpsessid$`,
}

// defaultAnalyticsCookiePatterns are well-known analytics cookies retained
// for domain completeness. They count as relevant but never as login
// evidence.
var defaultAnalyticsCookiePatterns = []string{
	`^_ga$`,
	`^_ga_`,
	`^_gid$`,
	`^_fbp$`,
}

// defaultStorageKeyPatterns match local/session storage keys worth keeping.
var defaultStorageKeyPatterns = []string{
	`(?i)token`,
	`(?i)auth`,
	`(?i)session`,
	`(?i)credential`,
	`(?i)access`,
	`(?i)refresh`,
	`(?i)jwt`,
	`(?i)bearer`,
	`(?i)api[_-]?key`,
	`(?i)secret`,
}

// Classifier turns raw cookies and storage pairs into typed artifacts. It is
// pure: no side effects, never panics on malformed input. The pattern tables
// are injectable so the classification policy can be extended without
// touching the assembler.
type Classifier struct {
	sessionCookie []*regexp.Regexp
	analytics     []*regexp.Regexp
	storageKey    []*regexp.Regexp
	typeRules     []TypeRule
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithCookiePatterns replaces the session-cookie name patterns.
func WithCookiePatterns(patterns []string) Option {
	return func(c *Classifier) { c.sessionCookie = compileAll(patterns) }
}

// WithStoragePatterns replaces the storage key patterns.
func WithStoragePatterns(patterns []string) Option {
	return func(c *Classifier) { c.storageKey = compileAll(patterns) }
}

// WithTypeRules replaces the ordered type-assignment table.
func WithTypeRules(rules []TypeRule) Option {
	return func(c *Classifier) { c.typeRules = rules }
}

// New builds a Classifier with the default heuristic tables.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		sessionCookie: compileAll(defaultSessionCookiePatterns),
		analytics:     compileAll(defaultAnalyticsCookiePatterns),
		storageKey:    compileAll(defaultStorageKeyPatterns),
		typeRules:     DefaultTypeRules(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// ClassifyCookie inspects a single cookie and returns a typed artifact, or
// nil when the cookie is not security relevant.
func (c *Classifier) ClassifyCookie(ck schemas.Cookie, now time.Time) *schemas.Artifact {
	relevant := c.MatchesSessionPattern(ck.Name) || matchAny(c.analytics, ck.Name) || LooksLikeJWT(ck.Value)
	if !relevant {
		return nil
	}

	art := &schemas.Artifact{
		Source: schemas.SourceCookie,
		Name:   ck.Name,
		Value:  ck.Value,
		Type:   c.assignType(ck.Name, ck.Value),
	}
	if exp, ok := ck.ExpiresAt(); ok {
		art.ExpiresAt = &exp
	}
	c.finish(art, now)
	return art
}

// ClassifyStorage inspects a single storage key/value pair (local storage,
// session storage, or a response header) and returns a typed artifact, or
// nil when the pair is not security relevant.
func (c *Classifier) ClassifyStorage(source schemas.ArtifactSource, key, value string, now time.Time) *schemas.Artifact {
	if !matchAny(c.storageKey, key) && !LooksLikeJWT(value) {
		return nil
	}

	art := &schemas.Artifact{
		Source: source,
		Name:   key,
		Value:  value,
		Type:   c.assignType(key, value),
	}
	c.finish(art, now)
	return art
}

// MatchesSessionPattern reports whether a cookie name carries session/auth
// semantics. Analytics cookies are deliberately excluded: they are retained
// as artifacts but are not evidence of a logged-in state.
func (c *Classifier) MatchesSessionPattern(name string) bool {
	return matchAny(c.sessionCookie, name)
}

// assignType applies the JWT shape test and then the ordered rule table.
func (c *Classifier) assignType(key, value string) schemas.TokenType {
	if LooksLikeJWT(value) {
		return schemas.TokenJWT
	}
	lower := strings.ToLower(key)
	for _, rule := range c.typeRules {
		matched := true
		for _, sub := range rule.All {
			if !strings.Contains(lower, sub) {
				matched = false
				break
			}
		}
		if matched {
			return rule.Type
		}
	}
	return schemas.TokenCustom
}

// finish decodes JWT payloads and derives expiry and validity. Decode
// failures are swallowed; the artifact simply loses its optional fields.
func (c *Classifier) finish(art *schemas.Artifact, now time.Time) {
	if art.Type == schemas.TokenJWT {
		if claims, exp := DecodeJWT(art.Value); claims != nil {
			art.DecodedPayload = claims
			if exp != nil {
				art.ExpiresAt = exp
			}
		}
	}
	art.IsValid = art.ValidAt(now)
}

// LooksLikeJWT reports whether a value structurally matches the JWT shape:
// three dot-separated base64url segments with JSON-decodable header and
// payload. Values stripped of an optional "Bearer " prefix are accepted.
func LooksLikeJWT(value string) bool {
	value = strings.TrimSpace(value)
	if lower := strings.ToLower(value); strings.HasPrefix(lower, "bearer ") {
		value = strings.TrimSpace(value[7:])
	}
	if !jwtShapeRegex.MatchString(value) {
		return false
	}
	parts := strings.Split(value, ".")
	for _, seg := range parts[:2] {
		raw, err := base64.RawURLEncoding.DecodeString(seg)
		if err != nil {
			return false
		}
		if !json.Valid(raw) {
			return false
		}
	}
	return true
}

// DecodeJWT parses a JWT-shaped value without signature verification and
// returns its claims plus the expiry derived from the exp claim. Both return
// values are nil when decoding fails; decoding is best-effort and never
// fatal.
func DecodeJWT(value string) (map[string]interface{}, *time.Time) {
	value = strings.TrimSpace(value)
	if lower := strings.ToLower(value); strings.HasPrefix(lower, "bearer ") {
		value = strings.TrimSpace(value[7:])
	}

	token, _, err := parserUnverified.ParseUnverified(value, jwt.MapClaims{})
	if err != nil {
		return nil, nil
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, nil
	}

	var expiresAt *time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		expiresAt = &t
	}
	return map[string]interface{}(claims), expiresAt
}

// Mask redacts a sensitive value for display. The stored raw value is never
// altered.
func Mask(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "****" + value[len(value)-4:]
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
