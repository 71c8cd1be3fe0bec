// Package visitorstore keeps small per-visitor key/value pairs, most
// importantly the backend auth token, keyed by the visitor cookie.
package visitorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/observability/logging"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/persistence/database"
	"github.com/ZineInsight/production-workspace-sub001/internal/infrastructure/security"
)

// TokenKey is the well-known key holding the visitor's bearer token.
const TokenKey = "zineinsight_auth_token"

const schema = `CREATE TABLE IF NOT EXISTS visitor_values (
	visitor_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (visitor_id, key)
)`

const (
	selectValueSQL = `SELECT value FROM visitor_values WHERE visitor_id = ? AND key = ?`
	upsertValueSQL = `INSERT INTO visitor_values (visitor_id, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(visitor_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	deleteValueSQL = `DELETE FROM visitor_values WHERE visitor_id = ? AND key = ?`
	purgeStaleSQL  = `DELETE FROM visitor_values WHERE updated_at < ?`
)

// Store persists visitor values in SQLite or libSQL
type Store struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
	cipher *security.TokenCipher
	now    func() time.Time
}

// New wraps an open database handle
func New(db *sql.DB, logger *logging.ChanneledLogger) *Store {
	return &Store{db: db, logger: logger, now: time.Now}
}

// WithCipher seals values at rest. Rows written in plaintext stay readable.
func (s *Store) WithCipher(c *security.TokenCipher) *Store {
	s.cipher = c
	return s
}

// EnsureSchema creates the visitor table if missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create visitor_values table: %w", err)
	}
	return nil
}

// Get returns the value for key, with ok=false when absent
func (s *Store) Get(ctx context.Context, visitorID, key string) (string, bool, error) {
	start := time.Now()
	var value string
	err := s.db.QueryRowContext(ctx, selectValueSQL, visitorID, key).Scan(&value)
	database.CheckAndLogSlowQuery(s.logger, "visitor_values.get", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read visitor value: %w", err)
	}
	if s.cipher != nil {
		if value, err = s.cipher.Open(value); err != nil {
			return "", false, fmt.Errorf("failed to open visitor value: %w", err)
		}
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value
func (s *Store) Set(ctx context.Context, visitorID, key, value string) error {
	if s.cipher != nil {
		sealed, err := s.cipher.Seal(value)
		if err != nil {
			return fmt.Errorf("failed to seal visitor value: %w", err)
		}
		value = sealed
	}
	start := time.Now()
	_, err := s.db.ExecContext(ctx, upsertValueSQL, visitorID, key, value, s.now().UTC().Format(time.RFC3339))
	database.CheckAndLogSlowQuery(s.logger, "visitor_values.set", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to write visitor value: %w", err)
	}
	s.logger.Database().Debug("Visitor value stored", "visitorId", visitorID, "key", key)
	return nil
}

// Delete removes key for the visitor. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, visitorID, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteValueSQL, visitorID, key); err != nil {
		return fmt.Errorf("failed to delete visitor value: %w", err)
	}
	s.logger.Database().Debug("Visitor value deleted", "visitorId", visitorID, "key", key)
	return nil
}

// PurgeStale drops values not updated within maxAge and returns how many went.
func (s *Store) PurgeStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, purgeStaleSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge visitor values: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Database().Info("Purged stale visitor values", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Token implements the API connector's token source using the visitor ID in ctx.
func (s *Store) Token(ctx context.Context) (string, error) {
	visitorID := VisitorIDFromContext(ctx)
	if visitorID == "" {
		return "", nil
	}
	token, _, err := s.Get(ctx, visitorID, TokenKey)
	return token, err
}

type visitorKey struct{}

// ContextWithVisitorID attaches the visitor ID to ctx
func ContextWithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorKey{}, visitorID)
}

// VisitorIDFromContext returns the visitor ID set by ContextWithVisitorID
func VisitorIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}
