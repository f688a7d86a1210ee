// internal/persistence/gateway.go
package persistence

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

// defaultRemoteRate caps remote writes during a bulk sync.
var defaultRemoteRate = rate.Limit(50)

// SyncCounts summarizes a cache-to-remote sync.
type SyncCounts struct {
	Sessions    int `json:"sessions"`
	Credentials int `json:"credentials"`
	Failures    int `json:"failures"`
}

// Gateway fronts the two repository backends. Writes are best-effort: a save
// reports success when at least one backend accepted it, and a backend
// failure is logged, never propagated. The in-memory stores remain the source
// of truth for the running process either way.
type Gateway struct {
	cache   schemas.Repository
	remote  schemas.Repository
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewGateway wires the gateway. Either backend may be nil; a gateway with no
// backends degrades to memory-only operation.
func NewGateway(cache, remote schemas.Repository, logger *zap.Logger) *Gateway {
	return &Gateway{
		cache:   cache,
		remote:  remote,
		limiter: rate.NewLimiter(defaultRemoteRate, 10),
		log:     logger.Named("persistence"),
	}
}

// SaveSession writes the session to both backends and reports whether any
// write stuck.
func (g *Gateway) SaveSession(ctx context.Context, s *schemas.Session) bool {
	ok := false
	if g.cache != nil {
		if err := g.cache.SaveSession(ctx, s); err != nil {
			g.log.Warn("Cache session write failed.", zap.String("id", s.ID), zap.Error(err))
		} else {
			ok = true
		}
	}
	if g.remote != nil {
		if err := g.remote.SaveSession(ctx, s); err != nil {
			g.log.Warn("Remote session write failed.", zap.String("id", s.ID), zap.Error(err))
		} else {
			ok = true
		}
	}
	return ok
}

// SaveCredential writes the credential to both backends.
func (g *Gateway) SaveCredential(ctx context.Context, c *schemas.Credential) bool {
	ok := false
	if g.cache != nil {
		if err := g.cache.SaveCredential(ctx, c); err != nil {
			g.log.Warn("Cache credential write failed.", zap.String("id", c.ID), zap.Error(err))
		} else {
			ok = true
		}
	}
	if g.remote != nil {
		if err := g.remote.SaveCredential(ctx, c); err != nil {
			g.log.Warn("Remote credential write failed.", zap.String("id", c.ID), zap.Error(err))
		} else {
			ok = true
		}
	}
	return ok
}

// DeleteSession removes the session from both backends.
func (g *Gateway) DeleteSession(ctx context.Context, id string) {
	if g.cache != nil {
		if err := g.cache.DeleteSession(ctx, id); err != nil {
			g.log.Warn("Cache session delete failed.", zap.String("id", id), zap.Error(err))
		}
	}
	if g.remote != nil {
		if err := g.remote.DeleteSession(ctx, id); err != nil {
			g.log.Warn("Remote session delete failed.", zap.String("id", id), zap.Error(err))
		}
	}
}

// DeleteCredential removes the credential from both backends.
func (g *Gateway) DeleteCredential(ctx context.Context, id string) {
	if g.cache != nil {
		if err := g.cache.DeleteCredential(ctx, id); err != nil {
			g.log.Warn("Cache credential delete failed.", zap.String("id", id), zap.Error(err))
		}
	}
	if g.remote != nil {
		if err := g.remote.DeleteCredential(ctx, id); err != nil {
			g.log.Warn("Remote credential delete failed.", zap.String("id", id), zap.Error(err))
		}
	}
}

// LoadAll rehydrates sessions and credentials, preferring the remote backend
// and falling back to the cache when it is unreachable or empty. An empty
// result with no backend available is not an error.
func (g *Gateway) LoadAll(ctx context.Context) ([]*schemas.Session, []*schemas.Credential) {
	sessions := g.loadSessions(ctx, "")
	credentials := g.loadCredentials(ctx, "")
	return sessions, credentials
}

// LoadForProfile rehydrates one profile's data with the same fallback order.
func (g *Gateway) LoadForProfile(ctx context.Context, profileID string) ([]*schemas.Session, []*schemas.Credential) {
	return g.loadSessions(ctx, profileID), g.loadCredentials(ctx, profileID)
}

func (g *Gateway) loadSessions(ctx context.Context, profileID string) []*schemas.Session {
	load := func(repo schemas.Repository) ([]*schemas.Session, error) {
		if profileID != "" {
			return repo.LoadSessionsByProfile(ctx, profileID)
		}
		return repo.LoadSessions(ctx)
	}

	if g.remote != nil {
		out, err := load(g.remote)
		if err == nil && len(out) > 0 {
			return out
		}
		if err != nil {
			g.log.Warn("Remote session load failed, falling back to cache.", zap.Error(err))
		}
	}
	if g.cache != nil {
		out, err := load(g.cache)
		if err != nil {
			g.log.Warn("Cache session load failed.", zap.Error(err))
			return nil
		}
		return out
	}
	return nil
}

func (g *Gateway) loadCredentials(ctx context.Context, profileID string) []*schemas.Credential {
	load := func(repo schemas.Repository) ([]*schemas.Credential, error) {
		if profileID != "" {
			return repo.LoadCredentialsByProfile(ctx, profileID)
		}
		return repo.LoadCredentials(ctx)
	}

	if g.remote != nil {
		out, err := load(g.remote)
		if err == nil && len(out) > 0 {
			return out
		}
		if err != nil {
			g.log.Warn("Remote credential load failed, falling back to cache.", zap.Error(err))
		}
	}
	if g.cache != nil {
		out, err := load(g.cache)
		if err != nil {
			g.log.Warn("Cache credential load failed.", zap.Error(err))
			return nil
		}
		return out
	}
	return nil
}

// SyncFromCache pushes everything in the local cache to the remote backend,
// rate-limited so a large cache does not hammer the database. Individual
// failures are counted, not fatal; the only error returned is a cancelled
// context or an unusable backend pair.
func (g *Gateway) SyncFromCache(ctx context.Context) (SyncCounts, error) {
	var counts SyncCounts
	if g.cache == nil || g.remote == nil {
		g.log.Warn("Sync skipped: both a cache and a remote backend are required.")
		return counts, nil
	}

	sessions, err := g.cache.LoadSessions(ctx)
	if err != nil {
		return counts, err
	}
	credentials, err := g.cache.LoadCredentials(ctx)
	if err != nil {
		return counts, err
	}

	var synced, failed atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	for _, sess := range sessions {
		sess := sess
		eg.Go(func() error {
			if err := g.limiter.Wait(egCtx); err != nil {
				return err
			}
			if err := g.remote.SaveSession(egCtx, sess); err != nil {
				g.log.Warn("Session sync write failed.", zap.String("id", sess.ID), zap.Error(err))
				failed.Add(1)
				return nil
			}
			synced.Add(1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return counts, err
	}
	counts.Sessions = int(synced.Load())

	synced.Store(0)
	eg, egCtx = errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for _, cred := range credentials {
		cred := cred
		eg.Go(func() error {
			if err := g.limiter.Wait(egCtx); err != nil {
				return err
			}
			if err := g.remote.SaveCredential(egCtx, cred); err != nil {
				g.log.Warn("Credential sync write failed.", zap.String("id", cred.ID), zap.Error(err))
				failed.Add(1)
				return nil
			}
			synced.Add(1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return counts, err
	}
	counts.Credentials = int(synced.Load())
	counts.Failures = int(failed.Load())

	g.log.Info("Cache sync finished.",
		zap.Int("sessions", counts.Sessions),
		zap.Int("credentials", counts.Credentials),
		zap.Int("failures", counts.Failures))
	return counts, nil
}
