package schemas

import "context"

// -- Persistence Interfaces --

// SessionRepository abstracts durable storage for sessions. Implementations
// must upsert by identity: a save for an identity that already exists in the
// backend overwrites the prior record (last write wins).
type SessionRepository interface {
	SaveSession(ctx context.Context, s *Session) error
	LoadSessions(ctx context.Context) ([]*Session, error)
	LoadSessionsByProfile(ctx context.Context, profileID string) ([]*Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// CredentialRepository abstracts durable storage for credentials with the
// same identity-based upsert semantics as sessions.
type CredentialRepository interface {
	SaveCredential(ctx context.Context, c *Credential) error
	LoadCredentials(ctx context.Context) ([]*Credential, error)
	LoadCredentialsByProfile(ctx context.Context, profileID string) ([]*Credential, error)
	DeleteCredential(ctx context.Context, id string) error
}

// Repository is a combined persistence backend. Both the embedded local cache
// and the remote durable backend satisfy it, which lets the gateway treat
// them interchangeably.
type Repository interface {
	SessionRepository
	CredentialRepository
}
