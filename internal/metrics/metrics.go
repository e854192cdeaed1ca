// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbhealth_monitor_cycles_total",
		Help: "Completed monitoring cycles.",
	})

	CyclesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbhealth_monitor_cycles_skipped_total",
		Help: "Ticks dropped because the previous cycle was still running.",
	})

	ProbeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbhealth_probe_failures_total",
		Help: "Probe failures by probe name.",
	}, []string{"probe"})

	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbhealth_alerts_fired_total",
		Help: "New or escalated alerts by severity.",
	}, []string{"severity"})

	AlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbhealth_alerts_suppressed_total",
		Help: "Recurrences collapsed into an existing open alert.",
	})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbhealth_notifications_sent_total",
		Help: "Notifications delivered to the provider.",
	})

	NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbhealth_notifications_failed_total",
		Help: "Notifications dropped after exhausting retries.",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dbhealth_subscribers_connected",
		Help: "Currently connected realtime subscribers.",
	})
)
