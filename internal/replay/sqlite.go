package replay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mailgun/holster/v4/clock"
)

// SQLiteGuard persists keys in the seen_signature table so replays are
// caught across restarts.
type SQLiteGuard struct {
	db *sql.DB
}

func NewSQLiteGuard(db *sql.DB) *SQLiteGuard {
	return &SQLiteGuard{db: db}
}

func (g *SQLiteGuard) Seen(ctx context.Context, key string, expires time.Time) (bool, error) {
	now := clock.Now().UnixMilli()

	// An expired row for the same key is overwritten; a live one is left alone
	// and the insert affects nothing.
	res, err := g.db.ExecContext(ctx, `
INSERT INTO seen_signature(key, expires_at)
VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at
WHERE seen_signature.expires_at <= ?;
`, key, expires.UnixMilli(), now)
	if err != nil {
		return false, fmt.Errorf("record signature: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record signature: %w", err)
	}
	return n == 0, nil
}

func (g *SQLiteGuard) Forget(ctx context.Context, key string) error {
	if _, err := g.db.ExecContext(ctx, `DELETE FROM seen_signature WHERE key = ?;`, key); err != nil {
		return fmt.Errorf("forget signature: %w", err)
	}
	return nil
}

func (g *SQLiteGuard) Prune(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, `DELETE FROM seen_signature WHERE expires_at <= ?;`, clock.Now().UnixMilli()); err != nil {
		return fmt.Errorf("prune seen signatures: %w", err)
	}
	return nil
}
