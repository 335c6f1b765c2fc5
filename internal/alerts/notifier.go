// Package alerts records in-app notifications and runs the asynq worker
// that delivers them and retries stalled payouts and refunds in the
// background.
package alerts

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

// Notifier writes notification rows synchronously and enqueues background
// work over asynq. A nil Notifier is valid and does nothing, which keeps
// the engine testable without redis.
type Notifier struct {
	store  store.Store
	client *asynq.Client
}

func NewNotifier(s store.Store, redisURL string) (*Notifier, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	return &Notifier{store: s, client: asynq.NewClient(opt)}, nil
}

// NewStoreOnlyNotifier records notification rows without a queue. Used in
// tests and in deployments that run without redis.
func NewStoreOnlyNotifier(s store.Store) *Notifier {
	return &Notifier{store: s}
}

// Notify records a notification for the user and queues its delivery.
// Failures are logged and swallowed: a notification must never roll back
// the state change it announces.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, typ, title, body, reference string) {
	if n == nil || n.store == nil {
		return
	}
	row := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Body:      body,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	}
	if err := n.store.CreateNotification(ctx, row); err != nil {
		log.Printf("[alerts] record notification for %s failed: %v", userID, err)
		return
	}
	if n.client == nil {
		return
	}
	payload, _ := json.Marshal(NotifyPayload{
		NotificationID: row.ID,
		UserID:         userID,
		Type:           typ,
		Title:          title,
		QueuedAt:       row.CreatedAt,
	})
	if _, err := n.client.Enqueue(asynq.NewTask(TaskNotify, payload), asynq.Queue(QueueNotifications)); err != nil {
		log.Printf("[alerts] enqueue notification %s failed: %v", row.ID, err)
	}
}

// ScheduleRetryPayout queues a background payout retry after the delay.
func (n *Notifier) ScheduleRetryPayout(jobID uuid.UUID, delay time.Duration) {
	n.schedulePaymentRetry(TaskRetryPayout, jobID, delay)
}

// ScheduleRetryRefund queues a background refund retry after the delay.
func (n *Notifier) ScheduleRetryRefund(jobID uuid.UUID, delay time.Duration) {
	n.schedulePaymentRetry(TaskRetryRefund, jobID, delay)
}

func (n *Notifier) schedulePaymentRetry(taskType string, jobID uuid.UUID, delay time.Duration) {
	if n == nil || n.client == nil {
		return
	}
	payload, _ := json.Marshal(PaymentRetryPayload{JobID: jobID, QueuedAt: time.Now().UTC()})
	_, err := n.client.Enqueue(
		asynq.NewTask(taskType, payload),
		asynq.Queue(QueuePayments),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(10),
	)
	if err != nil {
		log.Printf("[alerts] enqueue %s for job %s failed: %v", taskType, jobID, err)
	}
}

func (n *Notifier) Close() error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.Close()
}
