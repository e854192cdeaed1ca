package notifier

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/config"
	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/metrics"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
)

// Dispatcher decides per alert whether to notify and hands delivery to a
// background worker. The firing path only enqueues; a slow or failing
// provider never delays fire() or the realtime broadcast.
type Dispatcher struct {
	provider Provider
	cfg      config.NotificationConfig
	log      *logger.Logger

	queue chan *models.Alert
	stop  chan struct{}
	wg    sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewDispatcher(provider Provider, cfg config.NotificationConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		cfg:      cfg,
		log:      log,
		queue:    make(chan *models.Alert, cfg.QueueSize),
		stop:     make(chan struct{}),
	}
}

func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go d.worker()
	})
}

// Stop drains nothing: queued alerts not yet delivered are dropped with a
// log line. Delivery is best-effort by design.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		d.wg.Wait()
	})
}

// Dispatch enqueues an alert for delivery if the policy allows it. Never
// blocks: when the queue is full the alert is dropped and logged.
func (d *Dispatcher) Dispatch(alert *models.Alert) {
	if !d.cfg.Enabled {
		return
	}
	if models.SeverityRank(alert.Severity) < models.SeverityRank(d.cfg.MinSeverity) {
		return
	}

	select {
	case d.queue <- alert:
	default:
		metrics.NotificationsFailed.Inc()
		d.log.Warn("Notification queue full, dropping alert %d", alert.ID)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stop:
			return
		case alert := <-d.queue:
			d.deliver(alert)
		}
	}
}

// deliver makes a bounded number of attempts, then drops the alert with a
// logged failure. One bad provider never stalls subsequent cycles.
func (d *Dispatcher) deliver(alert *models.Alert) {
	subject := fmt.Sprintf("[%s] %s: %s", alert.Severity, alert.Category, alert.Message)
	body := alertBody(alert)

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		lastErr = d.provider.Send(d.cfg.Recipients, subject, body)
		if lastErr == nil {
			metrics.NotificationsSent.Inc()
			d.log.Debug("Notification for alert %d delivered (attempt %d)", alert.ID, attempt)
			return
		}

		d.log.Warn("Notification attempt %d/%d for alert %d failed: %v",
			attempt, d.cfg.MaxAttempts, alert.ID, lastErr)

		if attempt < d.cfg.MaxAttempts {
			select {
			case <-d.stop:
				return
			case <-time.After(d.cfg.RetryDelay):
			}
		}
	}

	metrics.NotificationsFailed.Inc()
	d.log.Error("Notification for alert %d dropped after %d attempts: %v",
		alert.ID, d.cfg.MaxAttempts, lastErr)
}

// Digest sends a single summarized notification for a batch of alerts.
// Recipients may be overridden per call; the returned error reflects the
// send attempt itself, not individual alert inclusion.
func (d *Dispatcher) Digest(alerts []models.Alert, recipients []string) error {
	if len(alerts) == 0 {
		return fmt.Errorf("digest requires at least one alert")
	}
	if len(recipients) == 0 {
		recipients = d.cfg.Recipients
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Database health digest: %d alert(s)\n\n", len(alerts))
	for _, a := range alerts {
		status := "open"
		if a.Acknowledged {
			status = "acknowledged"
		}
		fmt.Fprintf(&b, "  [%s] %s: %s (%s, fired %s)\n",
			a.Severity, a.Category, a.Message, status, a.FiredAt.Format(time.RFC3339))
	}

	subject := fmt.Sprintf("Database health digest: %d alert(s)", len(alerts))
	if err := d.provider.Send(recipients, subject, b.String()); err != nil {
		metrics.NotificationsFailed.Inc()
		return fmt.Errorf("digest delivery failed: %w", err)
	}

	metrics.NotificationsSent.Inc()
	return nil
}

// SendTest asks the provider to verify delivery to a single recipient.
func (d *Dispatcher) SendTest(recipient string) error {
	return d.provider.SendTest(recipient)
}

func alertBody(alert *models.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Severity:    %s\n", alert.Severity)
	fmt.Fprintf(&b, "Category:    %s\n", alert.Category)
	fmt.Fprintf(&b, "Message:     %s\n", alert.Message)
	fmt.Fprintf(&b, "Fired at:    %s\n", alert.FiredAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Last seen:   %s\n", alert.LastSeenAt.Format(time.RFC3339))

	if len(alert.Data) > 0 {
		b.WriteString("\nDetails:\n")
		for key, value := range alert.Data {
			fmt.Fprintf(&b, "  %s: %v\n", key, value)
		}
	}

	return b.String()
}
