// internal/persistence/postgres.go
package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/sessionvault/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts the pgx pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresRepository is the durable remote backend. Entities travel as JSONB
// payloads; the extracted columns back the identity constraint and the
// profile filters.
type PostgresRepository struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository connects to the database and verifies the connection.
func NewPostgresRepository(ctx context.Context, connString string, logger *zap.Logger) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresRepository{pool: pool, log: logger.Named("postgres")}, nil
}

// NewPostgresRepositoryWithPool wraps an existing pool. Used by tests.
func NewPostgresRepositoryWithPool(pool DBPool, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{pool: pool, log: logger.Named("postgres")}
}

// Close releases the underlying pool.
func (r *PostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// EnsureSchema creates the tables and identity constraints if they do not
// exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		profile_id  TEXT NOT NULL,
		domain      TEXT NOT NULL,
		status      TEXT NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL,
		payload     JSONB NOT NULL,
		UNIQUE (profile_id, domain)
	);
	CREATE TABLE IF NOT EXISTS credentials (
		id         TEXT PRIMARY KEY,
		profile_id TEXT NOT NULL,
		domain     TEXT NOT NULL,
		saved_at   TIMESTAMPTZ NOT NULL,
		payload    JSONB NOT NULL,
		UNIQUE (profile_id, domain)
	);`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveSession upserts by identity: a conflicting (profile_id, domain) row is
// replaced wholesale, including its id.
func (r *PostgresRepository) SaveSession(ctx context.Context, s *schemas.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}

	const query = `
	INSERT INTO sessions (id, profile_id, domain, status, captured_at, payload)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (profile_id, domain) DO UPDATE SET
		id = EXCLUDED.id,
		status = EXCLUDED.status,
		captured_at = EXCLUDED.captured_at,
		payload = EXCLUDED.payload;`

	_, err = r.pool.Exec(ctx, query, s.ID, s.ProfileID, s.Domain, string(s.Status), s.CapturedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

// LoadSessions returns every stored session, newest capture first.
func (r *PostgresRepository) LoadSessions(ctx context.Context) ([]*schemas.Session, error) {
	const query = `SELECT payload FROM sessions ORDER BY captured_at DESC;`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()
	return r.scanSessions(rows)
}

// LoadSessionsByProfile returns one profile's stored sessions.
func (r *PostgresRepository) LoadSessionsByProfile(ctx context.Context, profileID string) ([]*schemas.Session, error) {
	const query = `SELECT payload FROM sessions WHERE profile_id = $1 ORDER BY captured_at DESC;`
	rows, err := r.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions for profile %s: %w", profileID, err)
	}
	defer rows.Close()
	return r.scanSessions(rows)
}

func (r *PostgresRepository) scanSessions(rows pgx.Rows) ([]*schemas.Session, error) {
	var out []*schemas.Session
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		var s schemas.Session
		if err := json.Unmarshal(payload, &s); err != nil {
			r.log.Warn("Skipping undecodable session row.", zap.Error(err))
			continue
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeleteSession removes a stored session by id.
func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = $1;`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// SaveCredential upserts by identity, mirroring SaveSession.
func (r *PostgresRepository) SaveCredential(ctx context.Context, c *schemas.Credential) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode credential %s: %w", c.ID, err)
	}

	const query = `
	INSERT INTO credentials (id, profile_id, domain, saved_at, payload)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (profile_id, domain) DO UPDATE SET
		id = EXCLUDED.id,
		saved_at = EXCLUDED.saved_at,
		payload = EXCLUDED.payload;`

	_, err = r.pool.Exec(ctx, query, c.ID, c.ProfileID, c.Domain, c.SavedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to save credential %s: %w", c.ID, err)
	}
	return nil
}

// LoadCredentials returns every stored credential, newest first.
func (r *PostgresRepository) LoadCredentials(ctx context.Context) ([]*schemas.Credential, error) {
	const query = `SELECT payload FROM credentials ORDER BY saved_at DESC;`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()
	return r.scanCredentials(rows)
}

// LoadCredentialsByProfile returns one profile's stored credentials.
func (r *PostgresRepository) LoadCredentialsByProfile(ctx context.Context, profileID string) ([]*schemas.Credential, error) {
	const query = `SELECT payload FROM credentials WHERE profile_id = $1 ORDER BY saved_at DESC;`
	rows, err := r.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials for profile %s: %w", profileID, err)
	}
	defer rows.Close()
	return r.scanCredentials(rows)
}

func (r *PostgresRepository) scanCredentials(rows pgx.Rows) ([]*schemas.Credential, error) {
	var out []*schemas.Credential
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}
		var c schemas.Credential
		if err := json.Unmarshal(payload, &c); err != nil {
			r.log.Warn("Skipping undecodable credential row.", zap.Error(err))
			continue
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteCredential removes a stored credential by id.
func (r *PostgresRepository) DeleteCredential(ctx context.Context, id string) error {
	const query = `DELETE FROM credentials WHERE id = $1;`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete credential %s: %w", id, err)
	}
	return nil
}
