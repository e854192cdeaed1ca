package probe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
)

// All returns the fixed probe set against the monitored database.
// longQuerySeconds feeds the long-running-query scan so the database does
// the filtering instead of shipping every active query back.
func All(db *sql.DB, longQuerySeconds int) []Probe {
	return []Probe{
		&ConnectionProbe{db: db},
		&LongQueryProbe{db: db, thresholdSeconds: longQuerySeconds},
		&ReplicationProbe{db: db},
		&CacheHitProbe{db: db},
		&DeadTupleProbe{db: db},
		&LockProbe{db: db},
	}
}

// ConnectionProbe samples active connections against max_connections.
type ConnectionProbe struct {
	db *sql.DB
}

func (p *ConnectionProbe) Name() string { return models.CategoryConnectionSaturation }

func (p *ConnectionProbe) Collect(ctx context.Context) (Sample, error) {
	query := `
		SELECT
			(SELECT count(*) FROM pg_stat_activity),
			(SELECT setting::int FROM pg_settings WHERE name = 'max_connections')
	`

	var s ConnectionSample
	if err := p.db.QueryRowContext(ctx, query).Scan(&s.Active, &s.Max); err != nil {
		return nil, wrap(p.Name(), err)
	}
	return s, nil
}

// LongQueryProbe reports active queries running longer than the
// configured threshold, one entry per backend pid.
type LongQueryProbe struct {
	db               *sql.DB
	thresholdSeconds int
}

func (p *LongQueryProbe) Name() string { return models.CategoryLongRunningQuery }

func (p *LongQueryProbe) Collect(ctx context.Context) (Sample, error) {
	query := `
		SELECT pid,
		       EXTRACT(EPOCH FROM (now() - query_start))::bigint,
		       left(query, 500)
		FROM pg_stat_activity
		WHERE state = 'active'
		  AND pid <> pg_backend_pid()
		  AND query_start IS NOT NULL
		  AND now() - query_start > make_interval(secs => $1)
		ORDER BY query_start
	`

	rows, err := p.db.QueryContext(ctx, query, p.thresholdSeconds)
	if err != nil {
		return nil, wrap(p.Name(), err)
	}
	defer rows.Close()

	sample := LongQuerySample{ThresholdSeconds: p.thresholdSeconds}
	for rows.Next() {
		var q LongQuery
		var seconds int64
		if err := rows.Scan(&q.PID, &seconds, &q.Query); err != nil {
			return nil, wrap(p.Name(), err)
		}
		q.Duration = time.Duration(seconds) * time.Second
		sample.Queries = append(sample.Queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(p.Name(), err)
	}

	return sample, nil
}

// ReplicationProbe samples the replay lag of every connected standby.
// On instances without replication the sample is simply empty.
type ReplicationProbe struct {
	db *sql.DB
}

func (p *ReplicationProbe) Name() string { return models.CategoryReplicationLag }

func (p *ReplicationProbe) Collect(ctx context.Context) (Sample, error) {
	query := `
		SELECT COALESCE(host(client_addr), application_name),
		       COALESCE(pg_wal_lsn_diff(pg_current_wal_lsn(), replay_lsn), 0)::bigint
		FROM pg_stat_replication
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap(p.Name(), fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer rows.Close()

	var sample ReplicationSample
	for rows.Next() {
		var r Replica
		if err := rows.Scan(&r.Client, &r.LagBytes); err != nil {
			return nil, wrap(p.Name(), err)
		}
		sample.Replicas = append(sample.Replicas, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(p.Name(), err)
	}

	return sample, nil
}

// CacheHitProbe samples the buffer cache hit ratio across all databases.
type CacheHitProbe struct {
	db *sql.DB
}

func (p *CacheHitProbe) Name() string { return models.CategoryCacheHitRatio }

func (p *CacheHitProbe) Collect(ctx context.Context) (Sample, error) {
	query := `
		SELECT COALESCE(
			sum(blks_hit) * 100.0 / NULLIF(sum(blks_hit) + sum(blks_read), 0),
			100
		)
		FROM pg_stat_database
	`

	var s CacheHitSample
	if err := p.db.QueryRowContext(ctx, query).Scan(&s.RatioPct); err != nil {
		return nil, wrap(p.Name(), err)
	}
	return s, nil
}

// DeadTupleProbe samples dead tuple bloat per user table. Tiny tables
// are skipped to avoid noise from a handful of dead rows.
type DeadTupleProbe struct {
	db *sql.DB
}

func (p *DeadTupleProbe) Name() string { return models.CategoryDeadTupleRatio }

func (p *DeadTupleProbe) Collect(ctx context.Context) (Sample, error) {
	query := `
		SELECT schemaname || '.' || relname,
		       n_dead_tup,
		       n_live_tup,
		       n_dead_tup * 100.0 / NULLIF(n_live_tup + n_dead_tup, 0)
		FROM pg_stat_user_tables
		WHERE n_live_tup + n_dead_tup > 1000
		ORDER BY n_dead_tup DESC
		LIMIT 50
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, wrap(p.Name(), err)
	}
	defer rows.Close()

	var sample DeadTupleSample
	for rows.Next() {
		var t TableBloat
		var pct sql.NullFloat64
		if err := rows.Scan(&t.Table, &t.DeadTuples, &t.LiveTuples, &pct); err != nil {
			return nil, wrap(p.Name(), err)
		}
		t.DeadPct = pct.Float64
		sample.Tables = append(sample.Tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(p.Name(), err)
	}

	return sample, nil
}

// LockProbe counts ungranted lock requests.
type LockProbe struct {
	db *sql.DB
}

func (p *LockProbe) Name() string { return models.CategoryLockContention }

func (p *LockProbe) Collect(ctx context.Context) (Sample, error) {
	query := `SELECT count(*) FROM pg_locks WHERE NOT granted`

	var s LockSample
	if err := p.db.QueryRowContext(ctx, query).Scan(&s.Blocked); err != nil {
		return nil, wrap(p.Name(), err)
	}
	return s, nil
}
