package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/lms-enroll-api/internal/models"
	"github.com/campuskit/lms-enroll-api/pkg/jobs"
)

type channelNotificationWriter struct {
	created chan models.Notification
}

func (w *channelNotificationWriter) Create(ctx context.Context, n *models.Notification) error {
	w.created <- *n
	return nil
}

func TestQueueNotifierDeliversThroughQueue(t *testing.T) {
	writer := &channelNotificationWriter{created: make(chan models.Notification, 1)}
	queue := NewNotificationQueue(writer, nil, jobs.QueueConfig{Workers: 1}, zap.NewNop())
	queue.Start(context.Background())
	defer queue.Stop()

	notifier := NewQueueNotifier(queue, zap.NewNop())
	notifier.Send(context.Background(), models.Notification{
		RecipientID: "stu-1",
		Title:       "Enrollment approved: Algebra I",
		Message:     "Your enrollment in Algebra I has been approved.",
		ActorRole:   models.RoleTeacher,
	})

	select {
	case delivered := <-writer.created:
		assert.Equal(t, "stu-1", delivered.RecipientID)
		assert.Equal(t, models.RoleTeacher, delivered.ActorRole)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestQueueNotifierSwallowsEnqueueFailure(t *testing.T) {
	writer := &channelNotificationWriter{created: make(chan models.Notification, 1)}
	queue := NewNotificationQueue(writer, nil, jobs.QueueConfig{Workers: 1}, zap.NewNop())
	// queue never started: enqueue fails, Send must not panic or block
	notifier := NewQueueNotifier(queue, zap.NewNop())
	notifier.Send(context.Background(), models.Notification{RecipientID: "stu-1", Title: "x"})

	require.Empty(t, writer.created)
}
