// internal/replay/generator.go
package replay

import (
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
	"github.com/xkilldash9x/sessionvault/internal/store"
)

// Timing controls the pacing baked into generated auto-login plans.
// Per-character jitter keeps the fill from being trivially instant.
type Timing struct {
	InitialWaitMs    int
	MinKeyDelayMs    int
	KeyDelayJitterMs int
}

// DefaultTiming mirrors believable human typing cadence.
func DefaultTiming() Timing {
	return Timing{
		InitialWaitMs:    1500,
		MinKeyDelayMs:    40,
		KeyDelayJitterMs: 120,
	}
}

// Generator builds replay plans. Plans are plain data for the external
// browser-automation layer; the generator executes nothing itself.
type Generator struct {
	timing Timing
	rng    *rand.Rand
	log    *zap.Logger
	now    func() time.Time
}

// New creates a Generator with its own jitter source.
func New(timing Timing, logger *zap.Logger) *Generator {
	if timing.MinKeyDelayMs <= 0 {
		timing.MinKeyDelayMs = DefaultTiming().MinKeyDelayMs
	}
	return &Generator{
		timing: timing,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    logger.Named("replay"),
		now:    time.Now,
	}
}

// AutoLogin builds the declarative auto-login plan for a credential: wait,
// locate the username field, type it character by character, repeat for the
// password, click submit. A field whose selector list is empty, or a password
// that cannot be decoded, is silently skipped; partial fills are acceptable.
func (g *Generator) AutoLogin(cred *schemas.Credential) *schemas.ReplayPlan {
	plan := &schemas.ReplayPlan{
		Kind:        schemas.PlanAutoLogin,
		ProfileID:   cred.ProfileID,
		Target:      cred.LoginURL,
		GeneratedAt: g.now().UTC(),
	}

	plan.Steps = append(plan.Steps, schemas.ReplayStep{
		Action:  schemas.ReplayWait,
		DelayMs: g.timing.InitialWaitMs,
	})

	username := cred.Username
	if username == "" {
		username = cred.Email
	}
	g.appendFieldFill(plan, cred.Selectors.UsernameField, username)

	password := ""
	if cred.EncryptedPassword != "" {
		decoded, err := store.DecodePassword(cred.EncryptedPassword)
		if err != nil {
			g.log.Warn("Stored password could not be decoded, skipping password fill.",
				zap.String("credential", cred.ID), zap.Error(err))
		} else {
			password = decoded
		}
	}
	g.appendFieldFill(plan, cred.Selectors.PasswordField, password)

	if len(cred.Selectors.SubmitButton) > 0 {
		plan.Steps = append(plan.Steps, schemas.ReplayStep{
			Action:    schemas.ReplayClick,
			Selectors: cred.Selectors.SubmitButton,
		})
	}

	return plan
}

// appendFieldFill emits a locate step followed by one jittered type-text step
// per character. Nothing is emitted when the selector list or the value is
// empty.
func (g *Generator) appendFieldFill(plan *schemas.ReplayPlan, selectors []string, value string) {
	if len(selectors) == 0 || value == "" {
		return
	}
	plan.Steps = append(plan.Steps, schemas.ReplayStep{
		Action:    schemas.ReplayLocate,
		Selectors: selectors,
	})
	for _, r := range value {
		delay := g.timing.MinKeyDelayMs
		if g.timing.KeyDelayJitterMs > 0 {
			delay += g.rng.Intn(g.timing.KeyDelayJitterMs)
		}
		plan.Steps = append(plan.Steps, schemas.ReplayStep{
			Action:  schemas.ReplayTypeText,
			Text:    string(r),
			DelayMs: delay,
		})
	}
}

// SessionInjection builds the plan that writes a captured session's local and
// session storage back into a target page context. Cookies are excluded by
// contract: the automation layer injects those with privileged access.
func (g *Generator) SessionInjection(sess *schemas.Session) *schemas.ReplayPlan {
	plan := &schemas.ReplayPlan{
		Kind:        schemas.PlanSessionInjection,
		ProfileID:   sess.ProfileID,
		Target:      sess.OriginURL,
		GeneratedAt: g.now().UTC(),
	}

	for _, k := range sortedKeys(sess.LocalStorage) {
		plan.Steps = append(plan.Steps, schemas.ReplayStep{
			Action: schemas.ReplaySetLocalStorage,
			Key:    k,
			Value:  sess.LocalStorage[k],
		})
	}
	for _, k := range sortedKeys(sess.SessionStorage) {
		plan.Steps = append(plan.Steps, schemas.ReplayStep{
			Action: schemas.ReplaySetSessionStorage,
			Key:    k,
			Value:  sess.SessionStorage[k],
		})
	}
	return plan
}

// sortedKeys keeps injection plans deterministic for a given session.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
