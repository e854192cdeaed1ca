package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
	"github.com/DilipViharika/PostgresTool-sub003/internal/metrics"
	"github.com/DilipViharika/PostgresTool-sub003/internal/models"
	"github.com/DilipViharika/PostgresTool-sub003/internal/repository"
)

// ErrInvalidInput marks malformed fire/cleanup payloads, rejected before
// they reach the pipeline.
var ErrInvalidInput = errors.New("invalid input")

// Broadcaster pushes alert events to connected realtime observers.
type Broadcaster interface {
	Publish(alert *models.Alert)
}

// Notifier hands alerts to the outbound notification worker. Dispatch
// must never block the firing path.
type Notifier interface {
	Dispatch(alert *models.Alert)
}

// EventPublisher is the optional secondary fan-out (MQTT).
type EventPublisher interface {
	PublishAlert(alert *models.Alert) error
}

// IAlertService is the engine surface consumed by the scheduler and the
// HTTP layer.
type IAlertService interface {
	Fire(ctx context.Context, severity, category, message string, data map[string]interface{}, discriminator string) (*models.Alert, bool, error)
	FireVerdict(ctx context.Context, v Verdict) (*models.Alert, bool, error)
	Acknowledge(ctx context.Context, id int64, actorID int64, actorName string) (*models.Alert, error)
	BulkAcknowledge(ctx context.Context, ids []int64, actorID int64, actorName string) ([]models.Alert, error)
	GetRecent(ctx context.Context, limit int, includeAcknowledged bool) ([]models.Alert, error)
	GetStatistics(ctx context.Context, rangeName string) (*models.AlertStatistics, error)
	Cleanup(ctx context.Context, olderThanDays int) (int64, error)
}

type AlertService struct {
	repo      repository.IAlertRepository
	hub       Broadcaster
	notifier  Notifier
	events    EventPublisher // nil when MQTT fan-out is disabled
	log       *logger.Logger
	snapLimit int
}

func NewAlertService(repo repository.IAlertRepository, hub Broadcaster, notifier Notifier, events EventPublisher, log *logger.Logger) *AlertService {
	return &AlertService{
		repo:      repo,
		hub:       hub,
		notifier:  notifier,
		events:    events,
		log:       log,
		snapLimit: 50,
	}
}

// Fire runs the dedup pipeline for a condition. Manual fires and
// probe-triggered fires go through the same path: the store collapses
// recurrences of an open fingerprint, and only a new alert or a severity
// escalation reaches the broadcaster and the notifier.
func (s *AlertService) Fire(ctx context.Context, severity, category, message string, data map[string]interface{}, discriminator string) (*models.Alert, bool, error) {
	if !models.ValidSeverity(severity) {
		return nil, false, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, severity)
	}
	if !models.ValidCategory(category) {
		return nil, false, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category)
	}
	if strings.TrimSpace(message) == "" {
		return nil, false, fmt.Errorf("%w: message cannot be empty", ErrInvalidInput)
	}

	if discriminator == "" {
		discriminator = message
	}

	return s.fire(ctx, &models.Alert{
		Severity:    severity,
		Category:    category,
		Message:     message,
		Data:        data,
		Fingerprint: models.Fingerprint(category, discriminator),
	})
}

// FireVerdict feeds an evaluator verdict into the pipeline.
func (s *AlertService) FireVerdict(ctx context.Context, v Verdict) (*models.Alert, bool, error) {
	return s.fire(ctx, &models.Alert{
		Severity:    v.Severity,
		Category:    v.Category,
		Message:     v.Message,
		Data:        v.Data,
		Fingerprint: v.Fingerprint,
	})
}

func (s *AlertService) fire(ctx context.Context, alert *models.Alert) (*models.Alert, bool, error) {
	result, err := s.repo.Upsert(ctx, alert)
	if err != nil {
		return nil, false, fmt.Errorf("failed to persist alert: %w", err)
	}

	delivered := result.Created || result.Escalated
	if delivered {
		s.deliver(result)
	} else {
		metrics.AlertsSuppressed.Inc()
		s.log.Debug("Recurrence collapsed into alert %d (%s)", result.Alert.ID, result.Alert.Fingerprint)
	}

	return result.Alert, delivered, nil
}

// deliver fans a new or escalated alert out to every observer channel.
// Notification delivery is asynchronous; nothing here blocks on it.
func (s *AlertService) deliver(result *repository.UpsertResult) {
	alert := result.Alert

	metrics.AlertsFired.WithLabelValues(alert.Severity).Inc()
	if result.Escalated {
		s.log.Warn("Alert %d escalated to %s: %s", alert.ID, alert.Severity, alert.Message)
	} else {
		s.log.Info("Alert fired [%s/%s]: %s", alert.Severity, alert.Category, alert.Message)
	}

	if s.hub != nil {
		s.hub.Publish(alert)
	}
	if s.notifier != nil {
		s.notifier.Dispatch(alert)
	}
	if s.events != nil {
		if err := s.events.PublishAlert(alert); err != nil {
			s.log.Error("MQTT alert publish failed: %v", err)
		}
	}
}

// Acknowledge marks an alert as handled. Idempotent; unknown ids return
// repository.ErrNotFound.
func (s *AlertService) Acknowledge(ctx context.Context, id int64, actorID int64, actorName string) (*models.Alert, error) {
	alert, err := s.repo.Acknowledge(ctx, id, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}

	s.log.Info("Alert %d acknowledged by %s (%d)", id, actorName, actorID)
	return alert, nil
}

// BulkAcknowledge acknowledges every id it can; unknown ids are skipped
// silently rather than failing the batch.
func (s *AlertService) BulkAcknowledge(ctx context.Context, ids []int64, actorID int64, actorName string) ([]models.Alert, error) {
	acked := make([]models.Alert, 0, len(ids))

	for _, id := range ids {
		alert, err := s.repo.Acknowledge(ctx, id, actorID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.log.Debug("Bulk acknowledge: alert %d not found, skipping", id)
				continue
			}
			return acked, fmt.Errorf("failed to bulk acknowledge: %w", err)
		}
		acked = append(acked, *alert)
	}

	s.log.Info("Bulk acknowledge by %s (%d): %d of %d alerts", actorName, actorID, len(acked), len(ids))
	return acked, nil
}

func (s *AlertService) GetRecent(ctx context.Context, limit int, includeAcknowledged bool) ([]models.Alert, error) {
	if limit <= 0 {
		limit = s.snapLimit
	}
	return s.repo.GetRecent(ctx, limit, includeAcknowledged)
}

func (s *AlertService) GetStatistics(ctx context.Context, rangeName string) (*models.AlertStatistics, error) {
	window, err := models.RangeDuration(rangeName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	stats, err := s.repo.GetStatistics(ctx, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}

	stats.Range = rangeName
	return stats, nil
}

// Cleanup permanently removes alerts fired before now - days.
func (s *AlertService) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	if olderThanDays < 1 {
		return 0, fmt.Errorf("%w: retention window must be at least 1 day", ErrInvalidInput)
	}

	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	count, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.log.Info("Cleanup removed %d alerts older than %d days", count, olderThanDays)
	}
	return count, nil
}

// Snapshot builds the summary pushed to a freshly connected subscriber.
func (s *AlertService) Snapshot(ctx context.Context) (interface{}, error) {
	open, err := s.repo.GetRecent(ctx, s.snapLimit, false)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"count":  len(open),
		"alerts": open,
	}, nil
}
