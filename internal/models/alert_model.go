package models

import (
	"fmt"
	"time"
)

// Alert Constants
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"

	CategoryConnectionSaturation = "connection-saturation"
	CategoryLongRunningQuery     = "long-running-query"
	CategoryReplicationLag       = "replication-lag"
	CategoryCacheHitRatio        = "cache-hit-ratio"
	CategoryDeadTupleRatio       = "dead-tuple-ratio"
	CategoryLockContention       = "lock-contention"
	CategoryProbeFailure         = "probe-failure"
	CategoryManual               = "manual"
)

var severityRanks = map[string]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

var validCategories = map[string]bool{
	CategoryConnectionSaturation: true,
	CategoryLongRunningQuery:     true,
	CategoryReplicationLag:       true,
	CategoryCacheHitRatio:        true,
	CategoryDeadTupleRatio:       true,
	CategoryLockContention:       true,
	CategoryProbeFailure:         true,
	CategoryManual:               true,
}

// SeverityRank returns the position of a severity in the total order
// INFO < WARNING < CRITICAL. Unknown severities rank below INFO.
func SeverityRank(severity string) int {
	if rank, ok := severityRanks[severity]; ok {
		return rank
	}
	return -1
}

func ValidSeverity(severity string) bool {
	_, ok := severityRanks[severity]
	return ok
}

func ValidCategory(category string) bool {
	return validCategories[category]
}

// Alert is the persistent record of a detected health condition.
// Severity and category are fixed at creation; the engine may only raise
// severity while the alert is open. Acknowledgement is monotonic.
type Alert struct {
	ID             int64                  `json:"id" db:"id"`
	Severity       string                 `json:"severity" db:"severity"`
	Category       string                 `json:"category" db:"category"`
	Message        string                 `json:"message" db:"message"`
	Data           map[string]interface{} `json:"data" db:"data"`
	Fingerprint    string                 `json:"fingerprint" db:"fingerprint"`
	FiredAt        time.Time              `json:"fired_at" db:"fired_at"`
	LastSeenAt     time.Time              `json:"last_seen_at" db:"last_seen_at"`
	Acknowledged   bool                   `json:"acknowledged" db:"acknowledged"`
	AcknowledgedBy *int64                 `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
}

// Fingerprint builds the dedup key for a category and a discriminating
// dimension. An empty dimension collapses to the category itself, so
// single-instance conditions share one open alert.
func Fingerprint(category, dimension string) string {
	if dimension == "" {
		return category
	}
	return fmt.Sprintf("%s:%s", category, dimension)
}

// AlertStatistics aggregates alerts fired within a time window.
type AlertStatistics struct {
	Range        string         `json:"range"`
	Total        int            `json:"total"`
	Acknowledged int            `json:"acknowledged"`
	Open         int            `json:"open"`
	BySeverity   map[string]int `json:"by_severity"`
	ByCategory   map[string]int `json:"by_category"`
}

// Supported statistics windows.
var statisticsRanges = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

func RangeDuration(name string) (time.Duration, error) {
	d, ok := statisticsRanges[name]
	if !ok {
		return 0, fmt.Errorf("unsupported statistics range %q (want 1h, 24h or 7d)", name)
	}
	return d, nil
}
