package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Fake is a scripted in-memory Processor for tests. Errors queued with
// FailNext are returned in order before the operation succeeds; every call
// is recorded with its idempotency key.
type Fake struct {
	mu       sync.Mutex
	failures map[string][]error
	calls    []FakeCall
	seq      int
}

type FakeCall struct {
	Op             string
	IdempotencyKey string
	AmountCents    int64
}

func NewFake() *Fake {
	return &Fake{failures: make(map[string][]error)}
}

// FailNext queues err to be returned by the next n calls of op.
// Ops: authorize, capture, transfer, refund, setup_intent, confirm, detach.
func (f *Fake) FailNext(op string, err error, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.failures[op] = append(f.failures[op], err)
	}
}

func (f *Fake) Calls(op string) []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FakeCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(op, key string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Op: op, IdempotencyKey: key, AmountCents: amount})
	if queue := f.failures[op]; len(queue) > 0 {
		err := queue[0]
		f.failures[op] = queue[1:]
		return err
	}
	return nil
}

func (f *Fake) nextID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return fmt.Sprintf("%s_%06d", prefix, f.seq)
}

func (f *Fake) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	if err := f.record("authorize", req.IdempotencyKey, req.AmountCents); err != nil {
		return nil, err
	}
	return &AuthorizeResult{HoldID: f.nextID("hold")}, nil
}

func (f *Fake) Capture(ctx context.Context, holdID, idempotencyKey string) error {
	return f.record("capture", idempotencyKey, 0)
}

func (f *Fake) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := f.record("transfer", req.IdempotencyKey, req.AmountCents); err != nil {
		return nil, err
	}
	return &TransferResult{TransferID: f.nextID("tr")}, nil
}

func (f *Fake) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if err := f.record("refund", req.IdempotencyKey, req.AmountCents); err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: f.nextID("re")}, nil
}

func (f *Fake) CreateSetupIntent(ctx context.Context, userID uuid.UUID) (*SetupIntent, error) {
	if err := f.record("setup_intent", "", 0); err != nil {
		return nil, err
	}
	id := f.nextID("seti")
	return &SetupIntent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (f *Fake) ConfirmSetupIntent(ctx context.Context, intentID, token string) (*CardInfo, error) {
	if err := f.record("confirm", intentID, 0); err != nil {
		return nil, err
	}
	return &CardInfo{
		MethodID:    f.nextID("pm"),
		Brand:       "visa",
		Last4:       "4242",
		ExpiryMonth: 12,
		ExpiryYear:  2030,
	}, nil
}

func (f *Fake) DetachPaymentMethod(ctx context.Context, methodID string) error {
	return f.record("detach", methodID, 0)
}

var _ Processor = (*Fake)(nil)
