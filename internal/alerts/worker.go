package alerts

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// PaymentRetrier is implemented by the job state machine. The worker calls
// back into it to re-drive payouts and refunds that failed transiently.
type PaymentRetrier interface {
	RetryPayout(ctx context.Context, jobID uuid.UUID) error
	RetryRefund(ctx context.Context, jobID uuid.UUID) error
}

// Worker consumes the notification and payment queues.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewWorker(redisURL string, retrier PaymentRetrier) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			QueuePayments:      6,
			QueueNotifications: 4,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNotify, handleNotify)
	mux.HandleFunc(TaskRetryPayout, retryHandler(retrier.RetryPayout))
	mux.HandleFunc(TaskRetryRefund, retryHandler(retrier.RetryRefund))
	return &Worker{srv: srv, mux: mux}, nil
}

func (w *Worker) Run() error { return w.srv.Run(w.mux) }

func (w *Worker) Shutdown() { w.srv.Shutdown() }

// handleNotify is the delivery hook. The row is already in the store; real
// channels (email, push) would hang off this handler.
func handleNotify(_ context.Context, t *asynq.Task) error {
	var p NotifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		log.Printf("[alerts] dropping malformed notify payload: %v", err)
		return nil
	}
	log.Printf("[alerts] delivered %s to user %s: %s", p.Type, p.UserID, p.Title)
	return nil
}

// retryHandler adapts a retrier method to an asynq handler. Returning the
// error hands scheduling back to asynq's own retry with backoff.
func retryHandler(fn func(ctx context.Context, jobID uuid.UUID) error) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p PaymentRetryPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			log.Printf("[alerts] dropping malformed retry payload: %v", err)
			return nil
		}
		return fn(ctx, p.JobID)
	}
}
