// internal/persistence/badger.go
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

// sessionRecord is the cache row for a session. The entity itself travels as
// JSON in Payload; the extracted columns exist for identity lookups and
// profile filters.
type sessionRecord struct {
	ID         string `badgerhold:"key"`
	ProfileID  string `badgerholdIndex:"SessionProfile"`
	Domain     string
	CapturedAt time.Time
	Payload    []byte
}

// credentialRecord is the cache row for a credential.
type credentialRecord struct {
	ID        string `badgerhold:"key"`
	ProfileID string `badgerholdIndex:"CredentialProfile"`
	Domain    string
	SavedAt   time.Time
	Payload   []byte
}

// BadgerRepository is the embedded local cache backend. It satisfies
// schemas.Repository and survives process restarts, which makes it the
// rehydration source when the remote backend is unreachable.
type BadgerRepository struct {
	store *badgerhold.Store
	log   *zap.Logger
}

// OpenBadger opens (or creates) the cache at the given directory.
func OpenBadger(path string, logger *zap.Logger) (*BadgerRepository, error) {
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil

	bh, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache at %s: %w", path, err)
	}
	return &BadgerRepository{store: bh, log: logger.Named("cache")}, nil
}

// Close releases the underlying badger database.
func (r *BadgerRepository) Close() error {
	return r.store.Close()
}

var _ schemas.Repository = (*BadgerRepository)(nil)

// SaveSession upserts a session by identity: any cached record for the same
// (profile, domain) under a different id is dropped first, then the record
// is written under its own id.
func (r *BadgerRepository) SaveSession(ctx context.Context, s *schemas.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}

	var stale []sessionRecord
	query := badgerhold.Where("ProfileID").Eq(s.ProfileID).And("Domain").Eq(s.Domain)
	if err := r.store.Find(&stale, query); err == nil {
		for _, rec := range stale {
			if rec.ID != s.ID {
				_ = r.store.Delete(rec.ID, sessionRecord{})
			}
		}
	}

	rec := sessionRecord{
		ID:         s.ID,
		ProfileID:  s.ProfileID,
		Domain:     s.Domain,
		CapturedAt: s.CapturedAt,
		Payload:    payload,
	}
	if err := r.store.Upsert(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to cache session %s: %w", s.ID, err)
	}
	return nil
}

// LoadSessions returns every cached session.
func (r *BadgerRepository) LoadSessions(ctx context.Context) ([]*schemas.Session, error) {
	var records []sessionRecord
	if err := r.store.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to load cached sessions: %w", err)
	}
	return decodeSessions(records, r.log), nil
}

// LoadSessionsByProfile returns the cached sessions of one profile.
func (r *BadgerRepository) LoadSessionsByProfile(ctx context.Context, profileID string) ([]*schemas.Session, error) {
	var records []sessionRecord
	if err := r.store.Find(&records, badgerhold.Where("ProfileID").Eq(profileID)); err != nil {
		return nil, fmt.Errorf("failed to load cached sessions for profile %s: %w", profileID, err)
	}
	return decodeSessions(records, r.log), nil
}

// DeleteSession removes a cached session. Deleting a missing id is not an
// error.
func (r *BadgerRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.store.Delete(id, sessionRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete cached session %s: %w", id, err)
	}
	return nil
}

// SaveCredential upserts a credential by identity, mirroring SaveSession.
func (r *BadgerRepository) SaveCredential(ctx context.Context, c *schemas.Credential) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode credential %s: %w", c.ID, err)
	}

	var stale []credentialRecord
	query := badgerhold.Where("ProfileID").Eq(c.ProfileID).And("Domain").Eq(c.Domain)
	if err := r.store.Find(&stale, query); err == nil {
		for _, rec := range stale {
			if rec.ID != c.ID {
				_ = r.store.Delete(rec.ID, credentialRecord{})
			}
		}
	}

	rec := credentialRecord{
		ID:        c.ID,
		ProfileID: c.ProfileID,
		Domain:    c.Domain,
		SavedAt:   c.SavedAt,
		Payload:   payload,
	}
	if err := r.store.Upsert(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to cache credential %s: %w", c.ID, err)
	}
	return nil
}

// LoadCredentials returns every cached credential.
func (r *BadgerRepository) LoadCredentials(ctx context.Context) ([]*schemas.Credential, error) {
	var records []credentialRecord
	if err := r.store.Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to load cached credentials: %w", err)
	}
	return decodeCredentials(records, r.log), nil
}

// LoadCredentialsByProfile returns the cached credentials of one profile.
func (r *BadgerRepository) LoadCredentialsByProfile(ctx context.Context, profileID string) ([]*schemas.Credential, error) {
	var records []credentialRecord
	if err := r.store.Find(&records, badgerhold.Where("ProfileID").Eq(profileID)); err != nil {
		return nil, fmt.Errorf("failed to load cached credentials for profile %s: %w", profileID, err)
	}
	return decodeCredentials(records, r.log), nil
}

// DeleteCredential removes a cached credential.
func (r *BadgerRepository) DeleteCredential(ctx context.Context, id string) error {
	if err := r.store.Delete(id, credentialRecord{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete cached credential %s: %w", id, err)
	}
	return nil
}

// decodeSessions drops records whose payloads no longer unmarshal rather
// than failing the whole load.
func decodeSessions(records []sessionRecord, log *zap.Logger) []*schemas.Session {
	out := make([]*schemas.Session, 0, len(records))
	for _, rec := range records {
		var s schemas.Session
		if err := json.Unmarshal(rec.Payload, &s); err != nil {
			log.Warn("Dropping undecodable cached session.", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		out = append(out, &s)
	}
	return out
}

func decodeCredentials(records []credentialRecord, log *zap.Logger) []*schemas.Credential {
	out := make([]*schemas.Credential, 0, len(records))
	for _, rec := range records {
		var c schemas.Credential
		if err := json.Unmarshal(rec.Payload, &c); err != nil {
			log.Warn("Dropping undecodable cached credential.", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		out = append(out, &c)
	}
	return out
}
