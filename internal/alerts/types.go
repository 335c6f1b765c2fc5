package alerts

import (
	"time"

	"github.com/google/uuid"
)

// Task type names routed by the asynq mux.
const (
	TaskNotify      = "notify:deliver"
	TaskRetryPayout = "payment:retry_payout"
	TaskRetryRefund = "payment:retry_refund"
)

// Queues. Payment retries run on their own queue so a notification backlog
// never delays money movement.
const (
	QueueNotifications = "notifications"
	QueuePayments      = "payments"
)

// Notification types recorded against users.
const (
	NotifyJobOpen        = "job_open"
	NotifyPaymentFailed  = "payment_failed"
	NotifyJobAssigned    = "job_assigned"
	NotifyJobStarted     = "job_started"
	NotifyJobCompleted   = "job_completed"
	NotifyPayoutSent     = "payout_sent"
	NotifyPayoutDelayed  = "payout_delayed"
	NotifyJobCanceled    = "job_canceled"
	NotifyRefundIssued   = "refund_issued"
	NotifyDisputeOpened  = "dispute_opened"
	NotifyDisputeClosed  = "dispute_closed"
	NotifyApplicationNew = "application_new"
)

type NotifyPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	QueuedAt       time.Time `json:"queued_at"`
}

type PaymentRetryPayload struct {
	JobID    uuid.UUID `json:"job_id"`
	QueuedAt time.Time `json:"queued_at"`
}
