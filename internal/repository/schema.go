package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the alerts table and its indexes. The partial
// unique index enforces one open alert per fingerprint even under
// concurrent writers outside this process; the fired_at index supports
// time-range aggregation and retention cleanup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id              BIGSERIAL PRIMARY KEY,
			severity        TEXT NOT NULL,
			category        TEXT NOT NULL,
			message         TEXT NOT NULL,
			data            JSONB NOT NULL DEFAULT '{}',
			fingerprint     TEXT NOT NULL,
			fired_at        TIMESTAMPTZ NOT NULL,
			last_seen_at    TIMESTAMPTZ NOT NULL,
			acknowledged    BOOLEAN NOT NULL DEFAULT FALSE,
			acknowledged_by BIGINT,
			acknowledged_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS alerts_open_fingerprint_idx
			ON alerts (fingerprint) WHERE NOT acknowledged`,
		`CREATE INDEX IF NOT EXISTS alerts_fired_at_idx
			ON alerts (fired_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure alert schema: %w", err)
		}
	}

	return nil
}
