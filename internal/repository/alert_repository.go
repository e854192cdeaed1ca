package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
)

var (
	// ErrNotFound is returned when an alert id does not exist.
	ErrNotFound = errors.New("alert not found")

	// ErrStoreUnavailable marks persistence-layer failures. The scheduler
	// treats these as a skipped cycle; API callers get it surfaced as-is.
	ErrStoreUnavailable = errors.New("alert store unavailable")
)

// UpsertResult reports what Fire did for a fingerprint: a brand-new alert,
// a pure recurrence, or a recurrence that escalated severity. Only new and
// escalated results trigger broadcast/notification downstream.
type UpsertResult struct {
	Alert     *models.Alert
	Created   bool
	Escalated bool
}

// IAlertRepository owns the canonical alert records.
type IAlertRepository interface {
	Upsert(ctx context.Context, alert *models.Alert) (*UpsertResult, error)
	GetByID(ctx context.Context, id int64) (*models.Alert, error)
	Acknowledge(ctx context.Context, id int64, actorID int64) (*models.Alert, error)
	GetRecent(ctx context.Context, limit int, includeAcknowledged bool) ([]models.Alert, error)
	GetStatistics(ctx context.Context, since time.Time) (*models.AlertStatistics, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	id, severity, category, message, data, fingerprint,
	fired_at, last_seen_at, acknowledged, acknowledged_by, acknowledged_at
`

func scanAlert(row interface{ Scan(...interface{}) error }) (*models.Alert, error) {
	var a models.Alert
	var data []byte

	err := row.Scan(
		&a.ID, &a.Severity, &a.Category, &a.Message, &data, &a.Fingerprint,
		&a.FiredAt, &a.LastSeenAt, &a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &a.Data); err != nil {
			return nil, fmt.Errorf("failed to decode alert data: %w", err)
		}
	}

	return &a, nil
}

func marshalData(data map[string]interface{}) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(data)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

// Upsert enforces the one-open-alert-per-fingerprint invariant. The open
// row is locked FOR UPDATE inside a transaction so a probe cycle and a
// manual fire racing on the same fingerprint cannot both insert; the
// partial unique index on (fingerprint) WHERE NOT acknowledged backs this
// up against writers outside this process.
func (r *AlertRepository) Upsert(ctx context.Context, alert *models.Alert) (*UpsertResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin upsert", err)
	}
	defer tx.Rollback()

	now := time.Now()
	data, err := marshalData(alert.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode alert data: %w", err)
	}

	existing, err := scanAlert(tx.QueryRowContext(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE fingerprint = $1 AND acknowledged = FALSE
		FOR UPDATE
	`, alert.Fingerprint))

	switch {
	case err == nil:
		escalated := models.SeverityRank(alert.Severity) > models.SeverityRank(existing.Severity)
		severity := existing.Severity
		if escalated {
			severity = alert.Severity
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE alerts
			SET last_seen_at = $1, data = $2, severity = $3
			WHERE id = $4
		`, now, data, severity, existing.ID)
		if err != nil {
			return nil, storeErr("update recurring alert", err)
		}

		if err := tx.Commit(); err != nil {
			return nil, storeErr("commit upsert", err)
		}

		existing.LastSeenAt = now
		existing.Data = alert.Data
		existing.Severity = severity
		return &UpsertResult{Alert: existing, Created: false, Escalated: escalated}, nil

	case errors.Is(err, sql.ErrNoRows):
		created := &models.Alert{
			Severity:    alert.Severity,
			Category:    alert.Category,
			Message:     alert.Message,
			Data:        alert.Data,
			Fingerprint: alert.Fingerprint,
			FiredAt:     now,
			LastSeenAt:  now,
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO alerts (severity, category, message, data, fingerprint, fired_at, last_seen_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, created.Severity, created.Category, created.Message, data,
			created.Fingerprint, created.FiredAt, created.LastSeenAt,
		).Scan(&created.ID)
		if err != nil {
			return nil, storeErr("insert alert", err)
		}

		if err := tx.Commit(); err != nil {
			return nil, storeErr("commit upsert", err)
		}

		return &UpsertResult{Alert: created, Created: true}, nil

	default:
		return nil, storeErr("lookup open alert", err)
	}
}

func (r *AlertRepository) GetByID(ctx context.Context, id int64) (*models.Alert, error) {
	alert, err := scanAlert(r.db.QueryRowContext(ctx, `
		SELECT `+alertColumns+` FROM alerts WHERE id = $1
	`, id))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get alert by id", err)
	}
	return alert, nil
}

// Acknowledge is idempotent: an already-acknowledged alert is returned
// unchanged, and the original actor fields are never overwritten.
func (r *AlertRepository) Acknowledge(ctx context.Context, id int64, actorID int64) (*models.Alert, error) {
	alert, err := scanAlert(r.db.QueryRowContext(ctx, `
		UPDATE alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1 AND acknowledged = FALSE
		RETURNING `+alertColumns+`
	`, id, actorID, time.Now()))

	if err == nil {
		return alert, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, storeErr("acknowledge alert", err)
	}

	// Either unknown id or already acknowledged.
	return r.GetByID(ctx, id)
}

func (r *AlertRepository) GetRecent(ctx context.Context, limit int, includeAcknowledged bool) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
	`
	if !includeAcknowledged {
		query += ` WHERE acknowledged = FALSE`
	}
	query += ` ORDER BY fired_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, storeErr("query recent alerts", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, storeErr("scan recent alerts", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate recent alerts", err)
	}

	return alerts, nil
}

func (r *AlertRepository) GetStatistics(ctx context.Context, since time.Time) (*models.AlertStatistics, error) {
	stats := &models.AlertStatistics{
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT severity, category, acknowledged, count(*)
		FROM alerts
		WHERE fired_at >= $1
		GROUP BY severity, category, acknowledged
	`, since)
	if err != nil {
		return nil, storeErr("query alert statistics", err)
	}
	defer rows.Close()

	for rows.Next() {
		var severity, category string
		var acknowledged bool
		var count int
		if err := rows.Scan(&severity, &category, &acknowledged, &count); err != nil {
			return nil, storeErr("scan alert statistics", err)
		}

		stats.Total += count
		stats.BySeverity[severity] += count
		stats.ByCategory[category] += count
		if acknowledged {
			stats.Acknowledged += count
		} else {
			stats.Open += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate alert statistics", err)
	}

	return stats, nil
}

// DeleteOlderThan removes alerts fired before the cutoff regardless of
// acknowledgement state. Retention is age-based, not status-based.
func (r *AlertRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE fired_at < $1`, cutoff)
	if err != nil {
		return 0, storeErr("delete old alerts", err)
	}
	return result.RowsAffected()
}
