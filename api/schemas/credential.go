package schemas

import (
	"strings"
	"time"
)

// Selectors holds the ordered field-locator lists an auto-login plan walks
// when filling a login form. Lists are tried in order; the first DOM match
// wins. An empty list means the field is skipped.
type Selectors struct {
	UsernameField    []string `json:"usernameField"`
	PasswordField    []string `json:"passwordField"`
	SubmitButton     []string `json:"submitButton"`
	TwoFactorField   []string `json:"twoFactorField,omitempty"`
	ErrorIndicator   []string `json:"errorIndicator,omitempty"`
	SuccessIndicator []string `json:"successIndicator,omitempty"`
}

// DefaultSelectors covers the common shapes of login forms. Sites with
// unusual markup need operator-supplied selector lists.
func DefaultSelectors() Selectors {
	return Selectors{
		UsernameField: []string{
			`input[type=email]`,
			`input[name=username]`,
			`input[name=email]`,
			`input[name=login]`,
			`input[id*=user]`,
			`input[autocomplete=username]`,
		},
		PasswordField: []string{
			`input[type=password]`,
			`input[name=password]`,
			`input[autocomplete=current-password]`,
		},
		SubmitButton: []string{
			`button[type=submit]`,
			`input[type=submit]`,
			`button[id*=login]`,
			`button[id*=signin]`,
		},
		TwoFactorField: []string{
			`input[name=otp]`,
			`input[name=code]`,
			`input[autocomplete=one-time-code]`,
		},
		ErrorIndicator:   []string{`.error`, `.alert-danger`, `[role=alert]`},
		SuccessIndicator: []string{`.logout`, `a[href*=logout]`, `a[href*=signout]`},
	}
}

// Credential is the durable stored-login entity. Identity is the pair
// (ProfileID, Domain), exactly as for sessions; saving again for the same
// identity reuses the existing id.
//
// Password is the transient plaintext supplied by the operator and is never
// serialized; only EncryptedPassword is durable. The encoding is reversible
// on purpose so the auto-login generator can replay it.
type Credential struct {
	ID                string     `json:"id"`
	ProfileID         string     `json:"profileId"`
	Domain            string     `json:"domain"`
	SiteName          string     `json:"siteName,omitempty"`
	Username          string     `json:"username"`
	Email             string     `json:"email,omitempty"`
	Password          string     `json:"-"`
	EncryptedPassword string     `json:"encryptedPassword"`
	LoginURL          string     `json:"loginUrl,omitempty"`
	AutoLogin         bool       `json:"autoLogin"`
	TwoFactorEnabled  bool       `json:"twoFactorEnabled"`
	Selectors         Selectors  `json:"selectors"`
	SavedAt           time.Time  `json:"savedAt"`
	LastUsed          *time.Time `json:"lastUsed,omitempty"`
}

// IdentityKey returns the string form of the credential identity.
func (c *Credential) IdentityKey() string {
	return strings.ToLower(c.ProfileID) + "|" + strings.ToLower(c.Domain)
}
