package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/jackc/pgx/v5"
)

const DefaultPostgresTimeout = time.Second

// The conflict branch restarts the window when the stored one has ended, so
// concurrent writers agree on a single row guarded by the primary key.
const upsertCounterSQL = `
	INSERT INTO guard_entries (key, count, window_start, last_at, expires_at)
	VALUES ($1, 1, $2, $2, $3)
	ON CONFLICT (key) DO UPDATE SET
		count = CASE WHEN guard_entries.expires_at <= $2 THEN 1 ELSE guard_entries.count + 1 END,
		window_start = CASE WHEN guard_entries.expires_at <= $2 THEN $2 ELSE guard_entries.window_start END,
		last_at = $2,
		expires_at = CASE WHEN guard_entries.expires_at <= $2 OR $4 THEN $3 ELSE guard_entries.expires_at END
	RETURNING count, window_start, last_at, expires_at
`

const upsertValueSQL = `
	INSERT INTO guard_entries (key, count, value, window_start, last_at, expires_at)
	VALUES ($1, 0, $2, $3, $3, $4)
	ON CONFLICT (key) DO UPDATE SET
		value = EXCLUDED.value,
		last_at = EXCLUDED.last_at,
		expires_at = EXCLUDED.expires_at
`

// PostgresTier is the durable secondary tier.
type PostgresTier struct {
	db      *database.DB
	timeout time.Duration
}

func NewPostgresTier(db *database.DB, timeout time.Duration) *PostgresTier {
	if timeout <= 0 {
		timeout = DefaultPostgresTimeout
	}
	return &PostgresTier{db: db, timeout: timeout}
}

func (p *PostgresTier) Name() string { return "postgres" }

func (p *PostgresTier) IncrementWithExpiry(ctx context.Context, key string, now time.Time, ttl time.Duration, mode models.WindowMode) (models.WindowCounter, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var wc models.WindowCounter
	err := p.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, upsertCounterSQL,
			key, now.UTC(), now.Add(ttl).UTC(), mode == models.WindowSliding,
		).Scan(&wc.Count, &wc.WindowStart, &wc.LastAt, &wc.ExpiresAt)
	})
	if err != nil {
		return models.WindowCounter{}, p.wrap(err)
	}
	return wc, nil
}

func (p *PostgresTier) Get(ctx context.Context, key string, now time.Time) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var value []byte
	err := p.db.Pool.QueryRow(ctx,
		`SELECT value FROM guard_entries WHERE key = $1 AND expires_at > $2 AND value IS NOT NULL`,
		key, now.UTC(),
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, p.wrap(err)
	}
	return value, true, nil
}

// GetAndDelete removes a value row even when it has expired; only a live value
// is reported as found. Counter rows are left alone.
func (p *PostgresTier) GetAndDelete(ctx context.Context, key string, now time.Time) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		value     []byte
		expiresAt time.Time
	)
	err := p.db.Pool.QueryRow(ctx,
		`DELETE FROM guard_entries WHERE key = $1 AND value IS NOT NULL RETURNING value, expires_at`,
		key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, p.wrap(err)
	}
	if value == nil || !expiresAt.After(now) {
		return nil, false, nil
	}
	return value, true, nil
}

func (p *PostgresTier) Set(ctx context.Context, key string, value []byte, now time.Time, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.db.Pool.Exec(ctx, upsertValueSQL, key, value, now.UTC(), now.Add(ttl).UTC()); err != nil {
		return p.wrap(err)
	}
	return nil
}

func (p *PostgresTier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.db.Pool.Exec(ctx, `DELETE FROM guard_entries WHERE key = ANY($1)`, keys); err != nil {
		return p.wrap(err)
	}
	return nil
}

// Purge removes rows whose window ended before now.
func (p *PostgresTier) Purge(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.db.Pool.Exec(ctx, `DELETE FROM guard_entries WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, p.wrap(err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresTier) wrap(err error) error {
	if database.IsUndefinedTable(err) {
		return fmt.Errorf("%w: guard_entries not migrated: %v", ErrTierUnavailable, err)
	}
	return unavailable(err)
}
