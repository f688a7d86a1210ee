package schemas

import "time"

// -- Export / Import Schemas --

// SessionExport wraps a single session for transport between installations.
type SessionExport struct {
	ExportedAt time.Time `json:"exportedAt"`
	Session    *Session  `json:"session"`
}

// ProfileExport wraps every session captured for one profile.
type ProfileExport struct {
	ExportedAt time.Time  `json:"exportedAt"`
	ProfileID  string     `json:"profileId"`
	Sessions   []*Session `json:"sessions"`
}
