// Package events publishes job lifecycle changes on a redis channel so
// other processes (feed fanout, search indexers) can react without polling.
// Publishing is fire-and-forget; a down redis never fails a transition.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gigvault/gigvault/internal/models"
)

const channelJobChanged = "gigvault:job_changed"

// JobEvent is the payload published on every committed status change.
type JobEvent struct {
	JobID   uuid.UUID        `json:"job_id"`
	Status  models.JobStatus `json:"status"`
	Version int64            `json:"version"`
	At      time.Time        `json:"at"`
}

type Bus struct {
	rdb *redis.Client
}

// NewBus connects to redis at the given URL. Callers may pass a nil Bus
// everywhere one is accepted; every method is a no-op on nil.
func NewBus(redisURL string) (*Bus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &Bus{rdb: redis.NewClient(opt)}, nil
}

// PublishJobChanged announces a committed transition. Errors are logged,
// never returned; the state change is already durable.
func (b *Bus) PublishJobChanged(ctx context.Context, job *models.Job) {
	if b == nil || b.rdb == nil {
		return
	}
	payload, err := json.Marshal(JobEvent{
		JobID:   job.ID,
		Status:  job.Status,
		Version: job.Version,
		At:      time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, channelJobChanged, payload).Err(); err != nil {
		log.Printf("[events] publish job %s failed: %v", job.ID, err)
	}
}

// SubscribeJobChanged returns a channel of decoded job events plus a stop
// function. Malformed payloads are skipped.
func (b *Bus) SubscribeJobChanged(ctx context.Context) (<-chan JobEvent, func(), error) {
	if b == nil || b.rdb == nil {
		ch := make(chan JobEvent)
		close(ch)
		return ch, func() {}, nil
	}
	sub := b.rdb.Subscribe(ctx, channelJobChanged)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}
	out := make(chan JobEvent, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			out <- ev
		}
	}()
	return out, func() { _ = sub.Close() }, nil
}

func (b *Bus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
