package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/config"
	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/metrics"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
	"github.com/DilipViharika/PostgresTool-sub003/internal/probe"
)

// alertFirer is the slice of the alert service the scheduler needs.
type alertFirer interface {
	FireVerdict(ctx context.Context, v Verdict) (*models.Alert, bool, error)
}

// MonitorService drives the probe → evaluate → fire pipeline on a fixed
// interval. Cycles are single-flight: a tick arriving while the previous
// cycle is still running is dropped, never queued.
type MonitorService struct {
	alerts     alertFirer
	probes     []probe.Probe
	thresholds config.ThresholdConfig
	log        *logger.Logger

	probeTimeout time.Duration
	metaAlerts   bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	cycleActive atomic.Bool
}

func NewMonitorService(alerts alertFirer, probes []probe.Probe, cfg config.MonitorConfig, thresholds config.ThresholdConfig, log *logger.Logger) *MonitorService {
	return &MonitorService{
		alerts:       alerts,
		probes:       probes,
		thresholds:   thresholds,
		log:          log,
		probeTimeout: cfg.ProbeTimeout,
		metaAlerts:   cfg.MetaAlerts,
	}
}

// Start launches the scheduler. Calling Start while already running is a
// no-op.
func (s *MonitorService) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Debug("Monitoring already running, start ignored")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(ctx, interval)

	s.log.Info("Monitoring started (interval %s, %d probes)", interval, len(s.probes))
}

// Stop halts the scheduler and waits for an in-flight cycle to finish so
// no alert is left half-persisted. Idempotent.
func (s *MonitorService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info("Monitoring stopped")
}

// Running reports whether the scheduler is active; exposed to the HTTP
// layer as the readiness flag.
func (s *MonitorService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *MonitorService) run(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.cycleActive.CompareAndSwap(false, true) {
				metrics.CyclesSkipped.Inc()
				s.log.Warn("Previous monitoring cycle still running, tick dropped")
				continue
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.cycleActive.Store(false)
				// The cycle runs detached from the scheduler context: Stop
				// halts the ticker and then waits for the cycle to finish
				// instead of aborting probes mid-query.
				s.runCycle(context.Background())
			}()
		}
	}
}

// runCycle executes every probe once. A probe failure skips only that
// probe; a store failure aborts the remaining steps of this cycle only.
func (s *MonitorService) runCycle(ctx context.Context) {
	start := time.Now()

	for _, p := range s.probes {
		sample, err := s.collect(ctx, p)
		if err != nil {
			metrics.ProbeFailures.WithLabelValues(p.Name()).Inc()
			if probe.Timeout(err) {
				s.log.Warn("Probe %s timed out, skipping this cycle", p.Name())
			} else {
				s.log.Error("Probe %s failed: %v", p.Name(), err)
			}
			s.fireMetaAlert(ctx, p.Name(), err)
			continue
		}

		for _, verdict := range Evaluate(sample, s.thresholds) {
			if _, _, err := s.alerts.FireVerdict(ctx, verdict); err != nil {
				// Store unreachable: abort this cycle, retry next tick.
				s.log.Error("Cycle aborted, alert store failure: %v", err)
				return
			}
		}
	}

	metrics.CyclesTotal.Inc()
	s.log.Debug("Monitoring cycle completed in %s", time.Since(start))
}

func (s *MonitorService) collect(ctx context.Context, p probe.Probe) (probe.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	return p.Collect(ctx)
}

// fireMetaAlert surfaces a skipped probe as a low-severity alert when
// enabled, so silently missing checks stay visible to operators.
func (s *MonitorService) fireMetaAlert(ctx context.Context, probeName string, cause error) {
	if !s.metaAlerts {
		return
	}

	_, _, err := s.alerts.FireVerdict(ctx, Verdict{
		Severity: models.SeverityInfo,
		Category: models.CategoryProbeFailure,
		Message:  "Health probe " + probeName + " unavailable",
		Data: map[string]interface{}{
			"probe": probeName,
			"cause": cause.Error(),
		},
		Fingerprint: models.Fingerprint(models.CategoryProbeFailure, probeName),
	})
	if err != nil {
		s.log.Error("Failed to fire probe-failure meta alert: %v", err)
	}
}
