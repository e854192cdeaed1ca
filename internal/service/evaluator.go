package service

import (
	"fmt"
	"strconv"

	"github.com/DilipViharika/PostgresTool-sub003/internal/config"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
	"github.com/DilipViharika/PostgresTool-sub003/internal/probe"
)

// Verdict is the outcome of comparing one sample (or one offending item
// within a sample) against the configured thresholds.
type Verdict struct {
	Severity    string
	Category    string
	Message     string
	Data        map[string]interface{}
	Fingerprint string
}

// Evaluate maps a probe sample to zero or more verdicts. A sample with
// multiple offending items (long queries, lagging replicas, bloated
// tables) yields one verdict per item, each with its own fingerprint
// dimension so independent incidents are tracked separately.
func Evaluate(sample probe.Sample, t config.ThresholdConfig) []Verdict {
	switch s := sample.(type) {
	case probe.ConnectionSample:
		return evaluateConnections(s, t)
	case probe.LongQuerySample:
		return evaluateLongQueries(s)
	case probe.ReplicationSample:
		return evaluateReplication(s, t)
	case probe.CacheHitSample:
		return evaluateCacheHit(s, t)
	case probe.DeadTupleSample:
		return evaluateDeadTuples(s, t)
	case probe.LockSample:
		return evaluateLocks(s, t)
	default:
		return nil
	}
}

func evaluateConnections(s probe.ConnectionSample, t config.ThresholdConfig) []Verdict {
	if s.Max == 0 {
		return nil
	}

	usagePct := float64(s.Active) * 100 / float64(s.Max)

	var severity string
	switch {
	case usagePct >= t.ConnUsageCritPct:
		severity = models.SeverityCritical
	case usagePct >= t.ConnUsageWarnPct:
		severity = models.SeverityWarning
	default:
		return nil
	}

	return []Verdict{{
		Severity: severity,
		Category: models.CategoryConnectionSaturation,
		Message: fmt.Sprintf("Connection usage at %.1f%% (%d of %d connections)",
			usagePct, s.Active, s.Max),
		Data: map[string]interface{}{
			"active":    s.Active,
			"max":       s.Max,
			"usage_pct": usagePct,
		},
		Fingerprint: models.Fingerprint(models.CategoryConnectionSaturation, ""),
	}}
}

func evaluateLongQueries(s probe.LongQuerySample) []Verdict {
	// The probe already filtered by duration; every returned query is an
	// independent incident keyed by backend pid.
	verdicts := make([]Verdict, 0, len(s.Queries))
	for _, q := range s.Queries {
		verdicts = append(verdicts, Verdict{
			Severity: models.SeverityWarning,
			Category: models.CategoryLongRunningQuery,
			Message: fmt.Sprintf("Query on pid %d running for %s (threshold %ds)",
				q.PID, q.Duration, s.ThresholdSeconds),
			Data: map[string]interface{}{
				"pid":              q.PID,
				"duration_seconds": int64(q.Duration.Seconds()),
				"query":            q.Query,
			},
			Fingerprint: models.Fingerprint(models.CategoryLongRunningQuery,
				"pid="+strconv.Itoa(q.PID)),
		})
	}
	return verdicts
}

func evaluateReplication(s probe.ReplicationSample, t config.ThresholdConfig) []Verdict {
	var verdicts []Verdict
	for _, r := range s.Replicas {
		if r.LagBytes < t.ReplLagBytes {
			continue
		}
		verdicts = append(verdicts, Verdict{
			Severity: models.SeverityCritical,
			Category: models.CategoryReplicationLag,
			Message: fmt.Sprintf("Replica %s lagging by %d MB",
				r.Client, r.LagBytes/(1024*1024)),
			Data: map[string]interface{}{
				"replica":   r.Client,
				"lag_bytes": r.LagBytes,
			},
			Fingerprint: models.Fingerprint(models.CategoryReplicationLag,
				"replica="+r.Client),
		})
	}
	return verdicts
}

func evaluateCacheHit(s probe.CacheHitSample, t config.ThresholdConfig) []Verdict {
	if s.RatioPct >= t.CacheHitPct {
		return nil
	}

	return []Verdict{{
		Severity: models.SeverityWarning,
		Category: models.CategoryCacheHitRatio,
		Message: fmt.Sprintf("Buffer cache hit ratio at %.1f%% (threshold %.0f%%)",
			s.RatioPct, t.CacheHitPct),
		Data: map[string]interface{}{
			"ratio_pct": s.RatioPct,
		},
		Fingerprint: models.Fingerprint(models.CategoryCacheHitRatio, ""),
	}}
}

func evaluateDeadTuples(s probe.DeadTupleSample, t config.ThresholdConfig) []Verdict {
	var verdicts []Verdict
	for _, tbl := range s.Tables {
		if tbl.DeadPct < t.DeadTuplePct {
			continue
		}
		verdicts = append(verdicts, Verdict{
			Severity: models.SeverityWarning,
			Category: models.CategoryDeadTupleRatio,
			Message: fmt.Sprintf("Table %s has %.1f%% dead tuples (%d dead / %d live)",
				tbl.Table, tbl.DeadPct, tbl.DeadTuples, tbl.LiveTuples),
			Data: map[string]interface{}{
				"table":       tbl.Table,
				"dead_tuples": tbl.DeadTuples,
				"live_tuples": tbl.LiveTuples,
				"dead_pct":    tbl.DeadPct,
			},
			Fingerprint: models.Fingerprint(models.CategoryDeadTupleRatio,
				"table="+tbl.Table),
		})
	}
	return verdicts
}

func evaluateLocks(s probe.LockSample, t config.ThresholdConfig) []Verdict {
	if s.Blocked < t.BlockedLocks {
		return nil
	}

	return []Verdict{{
		Severity: models.SeverityWarning,
		Category: models.CategoryLockContention,
		Message: fmt.Sprintf("%d lock requests waiting (threshold %d)",
			s.Blocked, t.BlockedLocks),
		Data: map[string]interface{}{
			"blocked": s.Blocked,
		},
		Fingerprint: models.Fingerprint(models.CategoryLockContention, ""),
	}}
}
