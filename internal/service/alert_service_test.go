package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
	"github.com/DilipViharika/PostgresTool-sub003/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: logger.ERROR})
	require.NoError(t, err)
	return log
}

// fakeAlertRepo is an in-memory repository honoring the dedup contract:
// at most one open alert per fingerprint.
type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []*models.Alert
	nextID int64
	fail   error
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{nextID: 1}
}

func (r *fakeAlertRepo) Upsert(_ context.Context, alert *models.Alert) (*repository.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fail != nil {
		return nil, r.fail
	}

	now := time.Now()
	for _, existing := range r.alerts {
		if existing.Fingerprint == alert.Fingerprint && !existing.Acknowledged {
			escalated := models.SeverityRank(alert.Severity) > models.SeverityRank(existing.Severity)
			if escalated {
				existing.Severity = alert.Severity
			}
			existing.LastSeenAt = now
			existing.Data = alert.Data
			copied := *existing
			return &repository.UpsertResult{Alert: &copied, Escalated: escalated}, nil
		}
	}

	created := &models.Alert{
		ID:          r.nextID,
		Severity:    alert.Severity,
		Category:    alert.Category,
		Message:     alert.Message,
		Data:        alert.Data,
		Fingerprint: alert.Fingerprint,
		FiredAt:     now,
		LastSeenAt:  now,
	}
	r.nextID++
	r.alerts = append(r.alerts, created)

	copied := *created
	return &repository.UpsertResult{Alert: &copied, Created: true}, nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id int64) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ID == id {
			copied := *a
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAlertRepo) Acknowledge(_ context.Context, id int64, actorID int64) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.alerts {
		if a.ID != id {
			continue
		}
		if !a.Acknowledged {
			now := time.Now()
			a.Acknowledged = true
			a.AcknowledgedBy = &actorID
			a.AcknowledgedAt = &now
		}
		copied := *a
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAlertRepo) GetRecent(_ context.Context, limit int, includeAcknowledged bool) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Alert
	for _, a := range r.alerts {
		if !includeAcknowledged && a.Acknowledged {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAlertRepo) GetStatistics(_ context.Context, since time.Time) (*models.AlertStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &models.AlertStatistics{
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, a := range r.alerts {
		if a.FiredAt.Before(since) {
			continue
		}
		stats.Total++
		stats.BySeverity[a.Severity]++
		stats.ByCategory[a.Category]++
		if a.Acknowledged {
			stats.Acknowledged++
		} else {
			stats.Open++
		}
	}
	return stats, nil
}

func (r *fakeAlertRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*models.Alert
	var deleted int64
	for _, a := range r.alerts {
		if a.FiredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	r.alerts = kept
	return deleted, nil
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	published []*models.Alert
}

func (b *fakeBroadcaster) Publish(alert *models.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, alert)
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

type fakeNotifier struct {
	mu         sync.Mutex
	dispatched []*models.Alert
}

func (n *fakeNotifier) Dispatch(alert *models.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dispatched = append(n.dispatched, alert)
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.dispatched)
}

func newTestService(t *testing.T) (*AlertService, *fakeAlertRepo, *fakeBroadcaster, *fakeNotifier) {
	t.Helper()
	repo := newFakeAlertRepo()
	hub := &fakeBroadcaster{}
	notif := &fakeNotifier{}
	svc := NewAlertService(repo, hub, notif, nil, newTestLogger(t))
	return svc, repo, hub, notif
}

func TestFireRecurrenceCollapsesIntoOpenAlert(t *testing.T) {
	svc, repo, hub, notif := newTestService(t)
	ctx := context.Background()

	verdict := Verdict{
		Severity:    models.SeverityWarning,
		Category:    models.CategoryConnectionSaturation,
		Message:     "Connection usage at 85.0%",
		Data:        map[string]interface{}{"usage_pct": 85.0},
		Fingerprint: "connection-saturation",
	}

	first, delivered, err := svc.FireVerdict(ctx, verdict)
	require.NoError(t, err)
	assert.True(t, delivered)

	second, delivered, err := svc.FireVerdict(ctx, verdict)
	require.NoError(t, err)
	assert.False(t, delivered)

	// Same identity, updated last-seen, one row total.
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.LastSeenAt.Before(first.LastSeenAt))
	repo.mu.Lock()
	assert.Len(t, repo.alerts, 1)
	repo.mu.Unlock()

	// Only the first occurrence was broadcast and notified.
	assert.Equal(t, 1, hub.count())
	assert.Equal(t, 1, notif.count())
}

func TestFireSeverityEscalationRedelivers(t *testing.T) {
	svc, _, hub, notif := newTestService(t)
	ctx := context.Background()

	warning := Verdict{
		Severity:    models.SeverityWarning,
		Category:    models.CategoryReplicationLag,
		Message:     "lagging",
		Fingerprint: "replication-lag:replica=10.0.0.6",
	}
	_, _, err := svc.FireVerdict(ctx, warning)
	require.NoError(t, err)

	critical := warning
	critical.Severity = models.SeverityCritical
	alert, delivered, err := svc.FireVerdict(ctx, critical)
	require.NoError(t, err)

	assert.True(t, delivered)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, 2, hub.count())
	assert.Equal(t, 2, notif.count())
}

func TestAcknowledgedFingerprintOpensFreshAlert(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	v := Verdict{
		Severity:    models.SeverityWarning,
		Category:    models.CategoryLockContention,
		Message:     "locks",
		Fingerprint: "lock-contention",
	}

	first, _, err := svc.FireVerdict(ctx, v)
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, first.ID, 1, "ops")
	require.NoError(t, err)

	second, delivered, err := svc.FireVerdict(ctx, v)
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestManualFireAndAcknowledge(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	alert, delivered, err := svc.Fire(ctx, models.SeverityCritical, models.CategoryManual,
		"disk almost full", nil, "")
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.False(t, alert.Acknowledged)
	assert.Equal(t, "manual:disk almost full", alert.Fingerprint)

	acked, err := svc.Acknowledge(ctx, alert.ID, 7, "ops")
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, int64(7), *acked.AcknowledgedBy)

	// Second acknowledgement is idempotent.
	again, err := svc.Acknowledge(ctx, alert.ID, 99, "someone-else")
	require.NoError(t, err)
	assert.True(t, again.Acknowledged)
	assert.Equal(t, int64(7), *again.AcknowledgedBy)
	assert.Equal(t, acked.AcknowledgedAt.Unix(), again.AcknowledgedAt.Unix())
}

func TestManualFireUsesDiscriminatorForFingerprint(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	alert, _, err := svc.Fire(ctx, models.SeverityWarning, models.CategoryManual,
		"something odd", nil, "host=db-2")
	require.NoError(t, err)
	assert.Equal(t, "manual:host=db-2", alert.Fingerprint)
}

func TestFireRejectsInvalidInput(t *testing.T) {
	svc, _, hub, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Fire(ctx, "NOTICE", models.CategoryManual, "msg", nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = svc.Fire(ctx, models.SeverityInfo, "nonsense", "msg", nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = svc.Fire(ctx, models.SeverityInfo, models.CategoryManual, "   ", nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, 0, hub.count())
}

func TestBulkAcknowledgeSkipsUnknownIDs(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	a1, _, err := svc.Fire(ctx, models.SeverityWarning, models.CategoryManual, "one", nil, "a")
	require.NoError(t, err)
	a2, _, err := svc.Fire(ctx, models.SeverityWarning, models.CategoryManual, "two", nil, "b")
	require.NoError(t, err)

	acked, err := svc.BulkAcknowledge(ctx, []int64{a1.ID, a2.ID, 999}, 3, "alice")
	require.NoError(t, err)

	require.Len(t, acked, 2)
	for _, a := range acked {
		assert.True(t, a.Acknowledged)
		require.NotNil(t, a.AcknowledgedBy)
		assert.Equal(t, int64(3), *a.AcknowledgedBy)
	}
}

func TestGetRecentFiltersAcknowledged(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	a1, _, err := svc.Fire(ctx, models.SeverityWarning, models.CategoryManual, "open one", nil, "x")
	require.NoError(t, err)
	_, _, err = svc.Fire(ctx, models.SeverityWarning, models.CategoryManual, "open two", nil, "y")
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, a1.ID, 1, "ops")
	require.NoError(t, err)

	open, err := svc.GetRecent(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.False(t, open[0].Acknowledged)

	all, err := svc.GetRecent(ctx, 10, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := svc.GetRecent(ctx, 1, true)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetStatistics(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	a1, _, err := svc.Fire(ctx, models.SeverityCritical, models.CategoryManual, "crit", nil, "a")
	require.NoError(t, err)
	_, _, err = svc.Fire(ctx, models.SeverityWarning, models.CategoryManual, "warn", nil, "b")
	require.NoError(t, err)

	_, err = svc.Acknowledge(ctx, a1.ID, 1, "ops")
	require.NoError(t, err)

	stats, err := svc.GetStatistics(ctx, "1h")
	require.NoError(t, err)

	assert.Equal(t, "1h", stats.Range)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Acknowledged)
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 1, stats.BySeverity[models.SeverityCritical])
	assert.Equal(t, 2, stats.ByCategory[models.CategoryManual])

	_, err = svc.GetStatistics(ctx, "2w")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCleanup(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	old, _, err := svc.Fire(ctx, models.SeverityInfo, models.CategoryManual, "ancient", nil, "old")
	require.NoError(t, err)
	_, _, err = svc.Fire(ctx, models.SeverityInfo, models.CategoryManual, "fresh", nil, "new")
	require.NoError(t, err)

	// Age the first alert past the retention cutoff.
	repo.mu.Lock()
	for _, a := range repo.alerts {
		if a.ID == old.ID {
			a.FiredAt = time.Now().AddDate(0, 0, -10)
		}
	}
	repo.mu.Unlock()

	count, err := svc.Cleanup(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// A window encompassing nothing deletes nothing.
	count, err = svc.Cleanup(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	_, err = svc.Cleanup(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFireSurfacesStoreFailure(t *testing.T) {
	svc, repo, hub, notif := newTestService(t)
	ctx := context.Background()

	repo.fail = repository.ErrStoreUnavailable

	_, _, err := svc.Fire(ctx, models.SeverityWarning, models.CategoryManual, "msg", nil, "")
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	assert.Equal(t, 0, hub.count())
	assert.Equal(t, 0, notif.count())
}
