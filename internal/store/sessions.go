// internal/store/sessions.go
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SessionStore is the identity-keyed in-memory collection of captured
// sessions. It is an explicit object with a defined lifecycle: construct one
// at process start and pass it by reference, which keeps tests isolated.
//
// Mutations are serialized by the mutex. Identity uniqueness is enforced on
// the capture path by the assembler's merge resolution, not here: Upsert is a
// plain replace-by-id, so imported sessions may legitimately share an
// identity with a live one.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*schemas.Session
	subscribers map[int]func(*schemas.Session)
	nextSubID   int

	log *zap.Logger
	now func() time.Time
}

// NewSessionStore creates an empty session store.
func NewSessionStore(logger *zap.Logger) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*schemas.Session),
		subscribers: make(map[int]func(*schemas.Session)),
		log:         logger.Named("sessions"),
		now:         time.Now,
	}
}

// Upsert inserts or replaces a session by id and notifies subscribers.
// A revoked session stays revoked: revocation is an operator decision and a
// re-capture must not quietly resurrect the record.
func (s *SessionStore) Upsert(sess *schemas.Session) {
	if sess == nil || sess.ID == "" {
		return
	}

	s.mu.Lock()
	if prev, ok := s.sessions[sess.ID]; ok && prev.Status == schemas.StatusRevoked {
		sess.Status = schemas.StatusRevoked
	}
	s.sessions[sess.ID] = sess
	subs := make([]func(*schemas.Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.log.Debug("Session upserted.",
		zap.String("id", sess.ID),
		zap.String("profile", sess.ProfileID),
		zap.String("domain", sess.Domain),
		zap.String("status", string(sess.Status)))

	for _, fn := range subs {
		fn(sess)
	}
}

// Get returns the session with the given id.
func (s *SessionStore) Get(id string) (*schemas.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// FindByIdentity returns the live session for (profileID, domain), if any.
// When imports have produced several records for the same identity, the most
// recently captured one is returned.
func (s *SessionStore) FindByIdentity(profileID, domain string) (*schemas.Session, bool) {
	key := strings.ToLower(profileID) + "|" + strings.ToLower(domain)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *schemas.Session
	for _, sess := range s.sessions {
		if sess.IdentityKey() != key {
			continue
		}
		if best == nil || sess.CapturedAt.After(best.CapturedAt) {
			best = sess
		}
	}
	return best, best != nil
}

// List returns all sessions ordered by capture time, newest first.
func (s *SessionStore) List() []*schemas.Session {
	s.mu.RLock()
	out := make([]*schemas.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return out
}

// ListByProfile returns all sessions captured under one profile.
func (s *SessionStore) ListByProfile(profileID string) []*schemas.Session {
	all := s.List()
	out := all[:0]
	for _, sess := range all {
		if strings.EqualFold(sess.ProfileID, profileID) {
			out = append(out, sess)
		}
	}
	return out
}

// FindByDomain returns the profile's sessions whose domain contains the
// given fragment (case-insensitive substring match).
func (s *SessionStore) FindByDomain(profileID, fragment string) []*schemas.Session {
	fragment = strings.ToLower(fragment)
	var out []*schemas.Session
	for _, sess := range s.ListByProfile(profileID) {
		if strings.Contains(strings.ToLower(sess.Domain), fragment) {
			out = append(out, sess)
		}
	}
	return out
}

// Put inserts a session exactly as given, without subscriber notification or
// revocation checks. Used to rehydrate the store from durable storage.
func (s *SessionStore) Put(sess *schemas.Session) {
	if sess == nil || sess.ID == "" {
		return
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
}

// Touch stamps the session's last-used time. Called when a replay plan is
// generated for it.
func (s *SessionStore) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		now := s.now()
		sess.LastUsed = &now
	}
}

// Revoke marks a session revoked and reports whether it existed. Revocation
// is terminal: nothing downgrades or resurrects a revoked session.
func (s *SessionStore) Revoke(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	sess.Status = schemas.StatusRevoked
	s.log.Info("Session revoked.", zap.String("id", id))
	return true
}

// Delete removes a session by id and reports whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Clear removes every session. Used by the operator's bulk-clear.
func (s *SessionStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[string]*schemas.Session)
	return n
}

// ReevaluateStatus recomputes every session's status against the current
// time and returns the sessions it downgraded, so callers persist only what
// actually changed. It only ever downgrades active sessions to expired;
// revoked is sticky and never touched. Subscribers are not notified: callers
// needing freshness re-poll List.
func (s *SessionStore) ReevaluateStatus() []*schemas.Session {
	now := s.now()
	var changed []*schemas.Session

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.Status == schemas.StatusRevoked || sess.Status == schemas.StatusExpired {
			continue
		}
		if sessionExpired(sess, now) {
			sess.Status = schemas.StatusExpired
			changed = append(changed, sess)
		}
	}

	if len(changed) > 0 {
		s.log.Info("Session status re-evaluation downgraded sessions.", zap.Int("expired", len(changed)))
	}
	return changed
}

// sessionExpired reports whether the session or any of its artifacts has
// passed its expiry.
func sessionExpired(sess *schemas.Session, now time.Time) bool {
	if sess.ExpiresAt != nil && !sess.ExpiresAt.After(now) {
		return true
	}
	for i := range sess.Tokens {
		t := &sess.Tokens[i]
		if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

// StartReevaluation runs ReevaluateStatus on a fixed interval until the
// context is cancelled. onChange is invoked with the downgraded sessions only
// when at least one status actually changed, which is the hook the
// persistence gateway uses to avoid rewriting unchanged records.
func (s *SessionStore) StartReevaluation(ctx context.Context, interval time.Duration, onChange func([]*schemas.Session)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if changed := s.ReevaluateStatus(); len(changed) > 0 && onChange != nil {
					onChange(changed)
				}
			}
		}
	}()
}

// Subscribe registers a callback invoked once per successful Upsert with the
// resulting session. The returned function removes the subscription.
func (s *SessionStore) Subscribe(fn func(*schemas.Session)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// -- Export / Import --

// ExportSession serializes one session to the transportable JSON form.
func (s *SessionStore) ExportSession(id string) ([]byte, error) {
	sess, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return json.MarshalIndent(schemas.SessionExport{
		ExportedAt: s.now().UTC(),
		Session:    sess,
	}, "", "  ")
}

// ExportProfile serializes every session of a profile.
func (s *SessionStore) ExportProfile(profileID string) ([]byte, error) {
	sessions := s.ListByProfile(profileID)
	return json.MarshalIndent(schemas.ProfileExport{
		ExportedAt: s.now().UTC(),
		ProfileID:  profileID,
		Sessions:   sessions,
	}, "", "  ")
}

// Import deserializes an exported document and inserts its sessions as new
// records. A fresh id is always minted, so an import never collides with (or
// merges into) an existing session for the same identity. Prior store state
// is untouched when the document is malformed.
func (s *SessionStore) Import(data []byte) ([]*schemas.Session, error) {
	var single schemas.SessionExport
	if err := json.Unmarshal(data, &single); err == nil && single.Session != nil {
		return s.importSessions([]*schemas.Session{single.Session})
	}

	var profile schemas.ProfileExport
	if err := json.Unmarshal(data, &profile); err == nil && len(profile.Sessions) > 0 {
		return s.importSessions(profile.Sessions)
	}

	var bare schemas.Session
	if err := json.Unmarshal(data, &bare); err == nil && bare.ProfileID != "" && bare.Domain != "" {
		return s.importSessions([]*schemas.Session{&bare})
	}

	return nil, fmt.Errorf("unrecognized session export document")
}

func (s *SessionStore) importSessions(sessions []*schemas.Session) ([]*schemas.Session, error) {
	out := make([]*schemas.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		cp := *sess
		cp.ID = uuid.NewString()
		s.Upsert(&cp)
		out = append(out, &cp)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("export document contained no sessions")
	}
	return out, nil
}
