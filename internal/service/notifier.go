package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/lms-enroll-api/internal/models"
	"github.com/campuskit/lms-enroll-api/pkg/jobs"
)

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

// NopNotifier drops all notifications. Used in tests and as a fallback
// when no dispatcher is wired.
type NopNotifier struct{}

// Send implements Notifier.
func (NopNotifier) Send(ctx context.Context, n models.Notification) {}

// QueueNotifier hands notifications to the background dispatch queue.
// Delivery is best-effort: enqueue failures are logged and swallowed so
// the triggering state change is never rolled back or reported failed.
type QueueNotifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueueNotifier constructs a QueueNotifier.
func NewQueueNotifier(queue *jobs.Queue, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{queue: queue, logger: logger}
}

// Send implements Notifier.
func (n *QueueNotifier) Send(ctx context.Context, notification models.Notification) {
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "notification.deliver",
		Payload: notification,
	}
	if err := n.queue.Enqueue(job); err != nil {
		n.logger.Warn("failed to enqueue notification",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("title", notification.Title),
			zap.Error(err))
	}
}

// NewNotificationQueue builds the dispatch queue whose handler persists
// each notification record.
func NewNotificationQueue(repo notificationWriter, metrics *MetricsService, cfg jobs.QueueConfig, logger *zap.Logger) *jobs.Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(models.Notification)
		if !ok {
			logger.Error("notification job carried unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		if err := repo.Create(ctx, &notification); err != nil {
			if metrics != nil {
				metrics.ObserveNotification("failed")
			}
			return err
		}
		if metrics != nil {
			metrics.ObserveNotification("delivered")
		}
		logger.Debug("notification delivered",
			zap.String("recipient_id", notification.RecipientID),
			zap.String("title", notification.Title))
		return nil
	}
	cfg.Logger = logger
	return jobs.NewQueue("notifications", handler, cfg)
}
