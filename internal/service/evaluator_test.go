package service

import (
	"testing"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/config"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
	"github.com/DilipViharika/PostgresTool-sub003/internal/probe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testThresholds() config.ThresholdConfig {
	return config.ThresholdConfig{
		ConnUsageWarnPct: 80,
		ConnUsageCritPct: 95,
		LongQuerySeconds: 300,
		ReplLagBytes:     100 * 1024 * 1024,
		CacheHitPct:      90,
		DeadTuplePct:     20,
		BlockedLocks:     5,
	}
}

func TestEvaluateConnectionsBelowThreshold(t *testing.T) {
	verdicts := Evaluate(probe.ConnectionSample{Active: 50, Max: 100}, testThresholds())
	assert.Empty(t, verdicts)
}

func TestEvaluateConnectionsWarning(t *testing.T) {
	verdicts := Evaluate(probe.ConnectionSample{Active: 85, Max: 100}, testThresholds())
	require.Len(t, verdicts, 1)

	v := verdicts[0]
	assert.Equal(t, models.SeverityWarning, v.Severity)
	assert.Equal(t, models.CategoryConnectionSaturation, v.Category)
	assert.Equal(t, "connection-saturation", v.Fingerprint)
	assert.InDelta(t, 85.0, v.Data["usage_pct"], 0.01)
}

func TestEvaluateConnectionsCritical(t *testing.T) {
	verdicts := Evaluate(probe.ConnectionSample{Active: 96, Max: 100}, testThresholds())
	require.Len(t, verdicts, 1)
	assert.Equal(t, models.SeverityCritical, verdicts[0].Severity)
}

func TestEvaluateConnectionsZeroMax(t *testing.T) {
	verdicts := Evaluate(probe.ConnectionSample{Active: 10, Max: 0}, testThresholds())
	assert.Empty(t, verdicts)
}

func TestEvaluateLongQueriesOneVerdictPerPid(t *testing.T) {
	sample := probe.LongQuerySample{
		ThresholdSeconds: 300,
		Queries: []probe.LongQuery{
			{PID: 101, Duration: 400 * time.Second, Query: "SELECT ..."},
			{PID: 202, Duration: 900 * time.Second, Query: "UPDATE ..."},
		},
	}

	verdicts := Evaluate(sample, testThresholds())
	require.Len(t, verdicts, 2)

	assert.Equal(t, "long-running-query:pid=101", verdicts[0].Fingerprint)
	assert.Equal(t, "long-running-query:pid=202", verdicts[1].Fingerprint)
	assert.NotEqual(t, verdicts[0].Fingerprint, verdicts[1].Fingerprint)
	for _, v := range verdicts {
		assert.Equal(t, models.SeverityWarning, v.Severity)
		assert.Equal(t, models.CategoryLongRunningQuery, v.Category)
	}
}

func TestEvaluateLongQueriesEmpty(t *testing.T) {
	verdicts := Evaluate(probe.LongQuerySample{ThresholdSeconds: 300}, testThresholds())
	assert.Empty(t, verdicts)
}

func TestEvaluateReplicationLag(t *testing.T) {
	sample := probe.ReplicationSample{Replicas: []probe.Replica{
		{Client: "10.0.0.5", LagBytes: 5 * 1024 * 1024},
		{Client: "10.0.0.6", LagBytes: 200 * 1024 * 1024},
	}}

	verdicts := Evaluate(sample, testThresholds())
	require.Len(t, verdicts, 1)
	assert.Equal(t, models.SeverityCritical, verdicts[0].Severity)
	assert.Equal(t, "replication-lag:replica=10.0.0.6", verdicts[0].Fingerprint)
}

func TestEvaluateCacheHitRatio(t *testing.T) {
	verdicts := Evaluate(probe.CacheHitSample{RatioPct: 85.5}, testThresholds())
	require.Len(t, verdicts, 1)
	assert.Equal(t, models.SeverityWarning, verdicts[0].Severity)
	assert.Equal(t, models.CategoryCacheHitRatio, verdicts[0].Category)

	verdicts = Evaluate(probe.CacheHitSample{RatioPct: 99.2}, testThresholds())
	assert.Empty(t, verdicts)
}

func TestEvaluateDeadTuplesPerTable(t *testing.T) {
	sample := probe.DeadTupleSample{Tables: []probe.TableBloat{
		{Table: "public.orders", DeadTuples: 5000, LiveTuples: 10000, DeadPct: 33.3},
		{Table: "public.users", DeadTuples: 10, LiveTuples: 10000, DeadPct: 0.1},
	}}

	verdicts := Evaluate(sample, testThresholds())
	require.Len(t, verdicts, 1)
	assert.Equal(t, "dead-tuple-ratio:table=public.orders", verdicts[0].Fingerprint)
}

func TestEvaluateLocks(t *testing.T) {
	verdicts := Evaluate(probe.LockSample{Blocked: 3}, testThresholds())
	assert.Empty(t, verdicts)

	verdicts = Evaluate(probe.LockSample{Blocked: 7}, testThresholds())
	require.Len(t, verdicts, 1)
	assert.Equal(t, models.SeverityWarning, verdicts[0].Severity)
	assert.Equal(t, "lock-contention", verdicts[0].Fingerprint)
}
