// internal/store/sessions_test.go
package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSession(id, profileID, domain string) *schemas.Session {
	return &schemas.Session{
		ID:         id,
		ProfileID:  profileID,
		Domain:     domain,
		OriginURL:  "https://" + domain,
		CapturedAt: time.Now(),
		Status:     schemas.StatusActive,
		LoginState: schemas.LoginStateUnknown,
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := NewSessionStore(zap.NewNop())

	sess := newSession("s1", "profile-1", "example.com")
	s.Upsert(sess)

	got, ok := s.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "example.com", got.Domain)

	// Replacing by id swaps the whole record.
	replacement := newSession("s1", "profile-1", "example.com")
	replacement.LoginState = schemas.LoginStateLoggedIn
	s.Upsert(replacement)

	got, ok = s.Get("s1")
	require.True(t, ok)
	assert.Equal(t, schemas.LoginStateLoggedIn, got.LoginState)
	assert.Len(t, s.List(), 1)
}

func TestUpsertIgnoresNilAndEmptyID(t *testing.T) {
	s := NewSessionStore(zap.NewNop())
	s.Upsert(nil)
	s.Upsert(&schemas.Session{})
	assert.Empty(t, s.List())
}

func TestRevokedStatusIsSticky(t *testing.T) {
	s := NewSessionStore(zap.NewNop())
	s.Upsert(newSession("s1", "profile-1", "example.com"))
	require.True(t, s.Revoke("s1"))

	// A re-capture cannot resurrect the session.
	fresh := newSession("s1", "profile-1", "example.com")
	fresh.Status = schemas.StatusActive
	s.Upsert(fresh)

	got, ok := s.Get("s1")
	require.True(t, ok)
	assert.Equal(t, schemas.StatusRevoked, got.Status)
}

func TestRevokeMissingSession(t *testing.T) {
	s := NewSessionStore(zap.NewNop())
	assert.False(t, s.Revoke("nope"))
}

func TestTouchStampsLastUsed(t *testing.T) {
	s := NewSessionStore(zap.NewNop())
	s.Upsert(newSession("s1", "profile-1", "example.com"))

	before := time.Now()
	s.Touch("s1")

	got, ok := s.Get("s1")
	require.True(t, ok)
	require.NotNil(t, got.LastUsed)
	assert.False(t, got.LastUsed.Before(before))

	// Touching an unknown id is a no-op.
	s.Touch("nope")
}

func TestFindByIdentity(t *testing.T) {
	s := NewSessionStore(zap.NewNop())

	older := newSession("s1", "profile-1", "example.com")
	older.CapturedAt = time.Now().Add(-time.Hour)
	newer := newSession("s2", "Profile-1", "Example.COM")
	s.Upsert(older)
	s.Upsert(newer)

	// Identity matching is case-insensitive; the newest capture wins.
	got, ok := s.FindByIdentity("profile-1", "example.com")
	require.True(t, ok)
	assert.Equal(t, "s2", got.ID)

	_, ok = s.FindByIdentity("profile-1", "other.org")
	assert.False(t, ok)
}

func TestListOrderingAndFilters(t *testing.T) {
	s := NewSessionStore(zap.NewNop())

	a := newSession("s1", "profile-1", "example.com")
	a.CapturedAt = time.Now().Add(-2 * time.Hour)
	b := newSession("s2", "profile-1", "shop.example.org")
	b.CapturedAt = time.Now().Add(-time.Hour)
	c := newSession("s3", "profile-2", "example.com")
	s.Upsert(a)
	s.Upsert(b)
	s.Upsert(c)

	all := s.List()
	require.Len(t, all, 3)
	assert.Equal(t, "s3", all[0].ID)

	assert.Len(t, s.ListByProfile("profile-1"), 2)
	assert.Len(t, s.FindByDomain("profile-1", "example"), 2)
	assert.Len(t, s.FindByDomain("profile-1", "shop"), 1)
	assert.Empty(t, s.FindByDomain("profile-2", "shop"))
}

func TestDeleteAndClear(t *testing.T) {
	s := NewSessionStore(zap.NewNop())
	s.Upsert(newSession("s1", "profile-1", "example.com"))
	s.Upsert(newSession("s2", "profile-1", "other.org"))

	assert.True(t, s.Delete("s1"))
	assert.False(t, s.Delete("s1"))
	assert.Equal(t, 1, s.Clear())
	assert.Empty(t, s.List())
}

func TestReevaluateStatusDowngradesOnly(t *testing.T) {
	s := NewSessionStore(zap.NewNop())

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	stale := newSession("stale", "profile-1", "a.com")
	stale.ExpiresAt = &past
	fresh := newSession("fresh", "profile-1", "b.com")
	fresh.ExpiresAt = &future
	revoked := newSession("revoked", "profile-1", "c.com")
	revoked.ExpiresAt = &past
	s.Upsert(stale)
	s.Upsert(fresh)
	s.Upsert(revoked)
	require.True(t, s.Revoke("revoked"))

	// Only the downgraded session is returned, so callers can persist just
	// what changed.
	changed := s.ReevaluateStatus()
	require.Len(t, changed, 1)
	assert.Equal(t, "stale", changed[0].ID)

	got, _ := s.Get("stale")
	assert.Equal(t, schemas.StatusExpired, got.Status)
	got, _ = s.Get("fresh")
	assert.Equal(t, schemas.StatusActive, got.Status)
	got, _ = s.Get("revoked")
	assert.Equal(t, schemas.StatusRevoked, got.Status)

	// A second sweep finds nothing left to downgrade.
	assert.Empty(t, s.ReevaluateStatus())
}

func TestReevaluateStatusExpiredArtifact(t *testing.T) {
	s := NewSessionStore(zap.NewNop())

	past := time.Now().Add(-time.Minute)
	sess := newSession("s1", "profile-1", "example.com")
	sess.Tokens = []schemas.Artifact{{Name: "auth_token", ExpiresAt: &past}}
	s.Upsert(sess)

	changed := s.ReevaluateStatus()
	require.Len(t, changed, 1)
	got, _ := s.Get("s1")
	assert.Equal(t, schemas.StatusExpired, got.Status)
}

func TestStartReevaluationStopsOnCancel(t *testing.T) {
	s := NewSessionStore(zap.NewNop())

	past := time.Now().Add(-time.Minute)
	sess := newSession("s1", "profile-1", "example.com")
	sess.ExpiresAt = &past
	s.Upsert(sess)

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan []*schemas.Session, 1)
	s.StartReevaluation(ctx, 10*time.Millisecond, func(changed []*schemas.Session) {
		select {
		case changes <- changed:
		default:
		}
	})

	select {
	case changed := <-changes:
		require.Len(t, changed, 1)
		assert.Equal(t, "s1", changed[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("re-evaluation callback never fired")
	}
	cancel()
	// goleak's TestMain verifies the ticker goroutine exits.
	time.Sleep(20 * time.Millisecond)
}

func TestSubscribe(t *testing.T) {
	s := NewSessionStore(zap.NewNop())

	var mu sync.Mutex
	var seen []string
	unsubscribe := s.Subscribe(func(sess *schemas.Session) {
		mu.Lock()
		seen = append(seen, sess.ID)
		mu.Unlock()
	})

	s.Upsert(newSession("s1", "profile-1", "example.com"))
	s.Put(newSession("s2", "profile-1", "other.org")) // rehydration is silent

	mu.Lock()
	assert.Equal(t, []string{"s1"}, seen)
	mu.Unlock()

	unsubscribe()
	s.Upsert(newSession("s3", "profile-1", "third.net"))

	mu.Lock()
	assert.Equal(t, []string{"s1"}, seen)
	mu.Unlock()
}

func TestExportImportRoundTrip(t *testing.T) {
	s := NewSessionStore(zap.NewNop())

	orig := newSession("s1", "profile-1", "example.com")
	orig.LocalStorage = map[string]string{"token": "abc"}
	s.Upsert(orig)

	data, err := s.ExportSession("s1")
	require.NoError(t, err)

	imported, err := s.Import(data)
	require.NoError(t, err)
	require.Len(t, imported, 1)

	// Imports always mint a new id and never merge into the original.
	assert.NotEqual(t, "s1", imported[0].ID)
	assert.Equal(t, "example.com", imported[0].Domain)
	assert.Equal(t, "abc", imported[0].LocalStorage["token"])
	assert.Len(t, s.List(), 2)
}

func TestExportProfileImport(t *testing.T) {
	s := NewSessionStore(zap.NewNop())
	s.Upsert(newSession("s1", "profile-1", "example.com"))
	s.Upsert(newSession("s2", "profile-1", "other.org"))
	s.Upsert(newSession("s3", "profile-2", "example.com"))

	data, err := s.ExportProfile("profile-1")
	require.NoError(t, err)

	target := NewSessionStore(zap.NewNop())
	imported, err := target.Import(data)
	require.NoError(t, err)
	assert.Len(t, imported, 2)
	assert.Len(t, target.List(), 2)
}

func TestImportMalformedDocument(t *testing.T) {
	s := NewSessionStore(zap.NewNop())
	s.Upsert(newSession("s1", "profile-1", "example.com"))

	_, err := s.Import([]byte(`{"what": "is this"}`))
	require.Error(t, err)
	// Prior state untouched.
	assert.Len(t, s.List(), 1)
}

func TestExportSessionMissing(t *testing.T) {
	s := NewSessionStore(zap.NewNop())
	_, err := s.ExportSession("nope")
	assert.Error(t, err)
}
