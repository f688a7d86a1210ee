package schemas

import "time"

// -- Replay Plan Schemas --

// ReplayAction defines the type of a single replay step. Plans are plain data
// consumed by the external browser-automation layer's interpreter; nothing in
// this engine executes them.
type ReplayAction string

const (
	ReplayWait              ReplayAction = "wait"
	ReplayLocate            ReplayAction = "locate"
	ReplayTypeText          ReplayAction = "type-text"
	ReplayClick             ReplayAction = "click"
	ReplaySetLocalStorage   ReplayAction = "set-local-storage"
	ReplaySetSessionStorage ReplayAction = "set-session-storage"
)

// ReplayStep is one action in a replay plan.
//
// For locate/click, Selectors is the ordered candidate list; the interpreter
// uses the first matching element and targets it for subsequent type-text
// steps. Text carries a single character for type-text steps, with DelayMs as
// the pause before the keystroke. Key/Value carry a storage pair for the
// set-*-storage actions.
type ReplayStep struct {
	Action    ReplayAction `json:"action"`
	Selectors []string     `json:"selectors,omitempty"`
	Text      string       `json:"text,omitempty"`
	Key       string       `json:"key,omitempty"`
	Value     string       `json:"value,omitempty"`
	DelayMs   int          `json:"delay_ms,omitempty"`
}

// ReplayPlanKind distinguishes the two generated plan flavors.
type ReplayPlanKind string

const (
	PlanAutoLogin        ReplayPlanKind = "auto-login"
	PlanSessionInjection ReplayPlanKind = "session-injection"
)

// ReplayPlan is an ordered list of steps to run against an already-loaded
// target page. Cookie re-injection is deliberately absent: the automation
// layer sets cookies with privileged access outside the page sandbox.
type ReplayPlan struct {
	Kind        ReplayPlanKind `json:"kind"`
	ProfileID   string         `json:"profileId"`
	Target      string         `json:"target"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Steps       []ReplayStep   `json:"steps"`
}
