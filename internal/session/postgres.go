package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresBackend stores sessions in the browser_sessions table.
type PostgresBackend struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresBackend creates a new PostgresBackend.
func NewPostgresBackend(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db, now: time.Now}
}

// Get implements Backend.
func (b *PostgresBackend) Get(ctx context.Context, id string) ([]byte, error) {
	const query = `
		SELECT data
		FROM browser_sessions
		WHERE id = $1 AND expires_at > $2
	`

	var data []byte
	if err := b.db.GetContext(ctx, &data, query, id, b.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set implements Backend.
func (b *PostgresBackend) Set(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	const query = `
		INSERT INTO browser_sessions (id, data, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`

	now := b.now().UTC()
	_, err := b.db.ExecContext(ctx, query, id, string(data), now.Add(ttl), now)
	return err
}

// Delete implements Backend.
func (b *PostgresBackend) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM browser_sessions WHERE id = $1`

	_, err := b.db.ExecContext(ctx, query, id)
	return err
}

// DeleteExpired removes all expired sessions and returns how many were deleted.
func (b *PostgresBackend) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM browser_sessions WHERE expires_at <= $1`

	result, err := b.db.ExecContext(ctx, query, b.now().UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
