// -- cmd/app.go --
package cmd

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
	"github.com/xkilldash9x/sessionvault/internal/assembler"
	"github.com/xkilldash9x/sessionvault/internal/classifier"
	"github.com/xkilldash9x/sessionvault/internal/config"
	"github.com/xkilldash9x/sessionvault/internal/observability"
	"github.com/xkilldash9x/sessionvault/internal/persistence"
	"github.com/xkilldash9x/sessionvault/internal/replay"
	"github.com/xkilldash9x/sessionvault/internal/store"
)

var (
	appCfgMu sync.Mutex
	appCfg   *config.Config
)

func setAppConfig(cfg *config.Config) {
	appCfgMu.Lock()
	appCfg = cfg
	appCfgMu.Unlock()
}

func currentConfig() *config.Config {
	appCfgMu.Lock()
	defer appCfgMu.Unlock()
	if appCfg == nil {
		appCfg = config.NewDefaultConfig()
	}
	return appCfg
}

// app is the assembled engine behind every subcommand: stores, classifier,
// assembler, replay generator, and the persistence gateway.
type app struct {
	cfg         *config.Config
	log         *zap.Logger
	sessions    *store.SessionStore
	credentials *store.CredentialStore
	assembler   *assembler.Assembler
	generator   *replay.Generator
	gateway     *persistence.Gateway

	cache  *persistence.BadgerRepository
	remote *persistence.PostgresRepository
}

// newApp wires the engine from configuration and rehydrates the in-memory
// stores from durable storage. Persistence backends that fail to open are
// logged and skipped; the engine still runs memory-only.
func newApp(ctx context.Context) *app {
	cfg := currentConfig()
	log := observability.GetLogger()

	a := &app{
		cfg:         cfg,
		log:         log,
		sessions:    store.NewSessionStore(log),
		credentials: store.NewCredentialStore(log),
	}

	var clsOpts []classifier.Option
	if len(cfg.Classifier.CookiePatterns) > 0 {
		clsOpts = append(clsOpts, classifier.WithCookiePatterns(cfg.Classifier.CookiePatterns))
	}
	if len(cfg.Classifier.StoragePatterns) > 0 {
		clsOpts = append(clsOpts, classifier.WithStoragePatterns(cfg.Classifier.StoragePatterns))
	}
	cls := classifier.New(clsOpts...)
	md := assembler.DefaultMetadata()
	if cfg.Capture.UserAgent != "" {
		md.UserAgent = cfg.Capture.UserAgent
	}
	if cfg.Capture.Browser != "" {
		md.Browser = cfg.Capture.Browser
	}
	if cfg.Capture.Screen != "" {
		md.Screen = cfg.Capture.Screen
	}
	if cfg.Capture.Locale != "" {
		md.Locale = cfg.Capture.Locale
	}
	a.assembler = assembler.New(cls, a.sessions, log,
		assembler.WithMetadataDefaults(md),
		assembler.WithDefaultTTL(cfg.Store.DefaultTTL))
	a.generator = replay.New(replay.Timing{
		InitialWaitMs:    cfg.Replay.InitialWaitMs,
		MinKeyDelayMs:    cfg.Replay.MinKeyDelayMs,
		KeyDelayJitterMs: cfg.Replay.KeyDelayJitterMs,
	}, log)

	if cfg.Cache.Enabled {
		cache, err := persistence.OpenBadger(cfg.Cache.Dir, log)
		if err != nil {
			log.Warn("Local cache unavailable, continuing without it.", zap.Error(err))
		} else {
			a.cache = cache
		}
	}
	if cfg.Database.URL != "" {
		remote, err := persistence.NewPostgresRepository(ctx, cfg.Database.URL, log)
		if err != nil {
			log.Warn("Remote backend unavailable, continuing without it.", zap.Error(err))
		} else if err := remote.EnsureSchema(ctx); err != nil {
			log.Warn("Remote schema setup failed, continuing without remote backend.", zap.Error(err))
			remote.Close()
		} else {
			a.remote = remote
		}
	}

	// A typed nil pointer must not leak into the gateway's interface fields.
	var cacheRepo, remoteRepo schemas.Repository
	if a.cache != nil {
		cacheRepo = a.cache
	}
	if a.remote != nil {
		remoteRepo = a.remote
	}
	a.gateway = persistence.NewGateway(cacheRepo, remoteRepo, log)
	a.rehydrate(ctx)
	return a
}

// rehydrate loads durable state into the in-memory stores and triggers one
// status re-evaluation so stale records surface as expired immediately.
func (a *app) rehydrate(ctx context.Context) {
	sessions, credentials := a.gateway.LoadAll(ctx)
	for _, sess := range sessions {
		a.sessions.Put(sess)
	}
	for _, cred := range credentials {
		a.credentials.Put(cred)
	}
	if changed := a.sessions.ReevaluateStatus(); len(changed) > 0 {
		a.log.Info("Rehydrated sessions re-evaluated.", zap.Int("expired", len(changed)))
	}
	if len(sessions) > 0 || len(credentials) > 0 {
		a.log.Debug("Store rehydrated.",
			zap.Int("sessions", len(sessions)),
			zap.Int("credentials", len(credentials)))
	}
}

// startBackground launches the periodic status sweep. Long-lived commands
// call this; one-shot commands skip it.
func (a *app) startBackground(ctx context.Context) {
	interval := a.cfg.Store.ReevaluateInterval
	if interval <= 0 {
		interval = time.Minute
	}
	a.sessions.StartReevaluation(ctx, interval, func(changed []*schemas.Session) {
		for _, sess := range changed {
			a.gateway.SaveSession(ctx, sess)
		}
	})
}

// Close releases the persistence backends.
func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("Cache close failed.", zap.Error(err))
		}
	}
	if a.remote != nil {
		a.remote.Close()
	}
}
