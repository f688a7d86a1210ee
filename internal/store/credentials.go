// internal/store/credentials.go
package store

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

// obfuscationKey is the fixed key for the reversible password encoding.
// This is obfuscation, not encryption: the auto-login generator must be able
// to recover the plaintext to type it. Known weakness, tracked in DESIGN.md.
const obfuscationKey = "sessionvault.v1.local"

// CredentialStore is the identity-keyed in-memory collection of saved
// logins. Identity resolution mirrors the session store: saving again for
// (profileID, domain) reuses the existing record's id.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*schemas.Credential

	log *zap.Logger
	now func() time.Time
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore(logger *zap.Logger) *CredentialStore {
	return &CredentialStore{
		creds: make(map[string]*schemas.Credential),
		log:   logger.Named("credentials"),
		now:   time.Now,
	}
}

// Save encodes the plaintext password, resolves identity, and stores the
// credential. The plaintext never survives into the stored record: only
// EncryptedPassword is durable.
func (c *CredentialStore) Save(input schemas.Credential) (*schemas.Credential, error) {
	if input.ProfileID == "" || input.Domain == "" {
		return nil, fmt.Errorf("credential requires a profile id and a domain")
	}

	cred := input
	if cred.Password != "" {
		cred.EncryptedPassword = EncodePassword(cred.Password)
		cred.Password = ""
	}
	if cred.SiteName == "" {
		cred.SiteName = siteNameFromDomain(cred.Domain)
	}
	if len(cred.Selectors.UsernameField) == 0 && len(cred.Selectors.PasswordField) == 0 {
		cred.Selectors = schemas.DefaultSelectors()
	}
	cred.SavedAt = c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cred.ID = ""
	for _, existing := range c.creds {
		if existing.IdentityKey() == cred.IdentityKey() {
			cred.ID = existing.ID
			break
		}
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}

	c.creds[cred.ID] = &cred
	c.log.Debug("Credential saved.",
		zap.String("id", cred.ID),
		zap.String("profile", cred.ProfileID),
		zap.String("domain", cred.Domain))
	return &cred, nil
}

// Put inserts a credential exactly as given, preserving its id and encoded
// password. Used to rehydrate the store from durable storage.
func (c *CredentialStore) Put(cred *schemas.Credential) {
	if cred == nil || cred.ID == "" {
		return
	}
	c.mu.Lock()
	c.creds[cred.ID] = cred
	c.mu.Unlock()
}

// Get returns the credential with the given id.
func (c *CredentialStore) Get(id string) (*schemas.Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cred, ok := c.creds[id]
	return cred, ok
}

// FindByIdentity returns the credential for (profileID, domain), if any.
func (c *CredentialStore) FindByIdentity(profileID, domain string) (*schemas.Credential, bool) {
	key := strings.ToLower(profileID) + "|" + strings.ToLower(domain)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cred := range c.creds {
		if cred.IdentityKey() == key {
			return cred, true
		}
	}
	return nil, false
}

// List returns all credentials ordered by save time, newest first.
func (c *CredentialStore) List() []*schemas.Credential {
	c.mu.RLock()
	out := make([]*schemas.Credential, 0, len(c.creds))
	for _, cred := range c.creds {
		out = append(out, cred)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out
}

// ListByProfile returns all credentials saved under one profile.
func (c *CredentialStore) ListByProfile(profileID string) []*schemas.Credential {
	all := c.List()
	out := all[:0]
	for _, cred := range all {
		if strings.EqualFold(cred.ProfileID, profileID) {
			out = append(out, cred)
		}
	}
	return out
}

// Delete removes a credential by id and reports whether it existed.
// Deleting a credential never cascades to the session with the same identity.
func (c *CredentialStore) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.creds[id]; !ok {
		return false
	}
	delete(c.creds, id)
	return true
}

// Touch stamps the credential's last-used time. Called when a replay plan is
// generated for it.
func (c *CredentialStore) Touch(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cred, ok := c.creds[id]; ok {
		now := c.now()
		cred.LastUsed = &now
	}
}

// siteNameFromDomain derives a display name from a registrable domain:
// "example.com" becomes "Example".
func siteNameFromDomain(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	if label == "" {
		return domain
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// EncodePassword applies the reversible XOR+base64 encoding used for the
// persisted password form.
func EncodePassword(plain string) string {
	b := []byte(plain)
	k := []byte(obfuscationKey)
	for i := range b {
		b[i] ^= k[i%len(k)]
	}
	return base64.StdEncoding.EncodeToString(b)
}

// DecodePassword reverses EncodePassword. The replay generator uses it to
// recover the characters an auto-login plan types.
func DecodePassword(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("malformed encoded password: %w", err)
	}
	k := []byte(obfuscationKey)
	for i := range b {
		b[i] ^= k[i%len(k)]
	}
	return string(b), nil
}
