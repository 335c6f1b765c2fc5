package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/models"
)

// Memory is an in-memory Store used by engine tests. It mirrors the
// Postgres implementation's semantics, including the optimistic version
// check on jobs, and is safe for concurrent use.
type Memory struct {
	mu             sync.Mutex
	users          map[uuid.UUID]*models.User
	jobs           map[uuid.UUID]*models.Job
	tasks          map[uuid.UUID]*models.Task
	applications   map[uuid.UUID]*models.Application
	escrows        map[uuid.UUID]*models.EscrowRecord
	ledger         map[uuid.UUID][]*models.LedgerEvent
	paymentMethods map[string]*models.PaymentMethod
	webhookEvents  map[string]string
	disputes       map[uuid.UUID]*models.Dispute
	reviews        map[uuid.UUID]*models.Review
	notifications  map[uuid.UUID][]*models.Notification
}

func NewMemory() *Memory {
	return &Memory{
		users:          make(map[uuid.UUID]*models.User),
		jobs:           make(map[uuid.UUID]*models.Job),
		tasks:          make(map[uuid.UUID]*models.Task),
		applications:   make(map[uuid.UUID]*models.Application),
		escrows:        make(map[uuid.UUID]*models.EscrowRecord),
		ledger:         make(map[uuid.UUID][]*models.LedgerEvent),
		paymentMethods: make(map[string]*models.PaymentMethod),
		webhookEvents:  make(map[string]string),
		disputes:       make(map[uuid.UUID]*models.Dispute),
		reviews:        make(map[uuid.UUID]*models.Review),
		notifications:  make(map[uuid.UUID][]*models.Notification),
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// ----- users -----

func (m *Memory) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----- jobs -----

func cloneJob(j *models.Job) *models.Job {
	cp := *j
	if j.WorkerID != nil {
		w := *j.WorkerID
		cp.WorkerID = &w
	}
	cp.RequiredSkills = append([]string(nil), j.RequiredSkills...)
	return &cp
}

func (m *Memory) CreateJob(ctx context.Context, j *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[j.ID]; ok {
		return ErrDuplicate
	}
	m.jobs[j.ID] = cloneJob(j)
	return nil
}

func (m *Memory) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(j), nil
}

func (m *Memory) UpdateJob(ctx context.Context, j *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.jobs[j.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != j.Version {
		return ErrVersionConflict
	}
	j.Version++
	j.UpdatedAt = time.Now().UTC()
	cp := cloneJob(j)
	cp.AmountCents = stored.AmountCents
	m.jobs[j.ID] = cp
	return nil
}

func (m *Memory) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.jobs {
		if j.Status == status {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListJobsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Job
	for _, j := range m.jobs {
		if j.PosterID == userID || (j.WorkerID != nil && *j.WorkerID == userID) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListJobs(ctx context.Context) ([]*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----- tasks -----

func (m *Memory) CreateTask(ctx context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *Memory) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) UpdateTask(ctx context.Context, t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *Memory) DeleteTask(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) ListTasks(ctx context.Context, jobID uuid.UUID) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Task
	for _, t := range m.tasks {
		if t.JobID == jobID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----- applications -----

func (m *Memory) CreateApplication(ctx context.Context, a *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.applications {
		if existing.JobID == a.JobID && existing.WorkerID == a.WorkerID && existing.Status != models.ApplicationRejected {
			return ErrDuplicate
		}
	}
	cp := *a
	m.applications[a.ID] = &cp
	return nil
}

func (m *Memory) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) GetApplicationForWorker(ctx context.Context, jobID, workerID uuid.UUID) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applications {
		if a.JobID == jobID && a.WorkerID == workerID && a.Status != models.ApplicationRejected {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) RejectSiblingApplications(ctx context.Context, jobID, acceptedID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.applications {
		if a.JobID == jobID && a.ID != acceptedID && a.Status == models.ApplicationPending {
			a.Status = models.ApplicationRejected
			a.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListApplications(ctx context.Context, jobID uuid.UUID) ([]*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Application
	for _, a := range m.applications {
		if a.JobID == jobID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----- escrow -----

func cloneEscrow(r *models.EscrowRecord) *models.EscrowRecord {
	cp := *r
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	cp.AuthorizedAt = copyTime(r.AuthorizedAt)
	cp.CapturedAt = copyTime(r.CapturedAt)
	cp.TransferredAt = copyTime(r.TransferredAt)
	cp.RefundedAt = copyTime(r.RefundedAt)
	return &cp
}

func (m *Memory) CreateEscrow(ctx context.Context, r *models.EscrowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.escrows[r.JobID]; ok {
		return ErrDuplicate
	}
	m.escrows[r.JobID] = cloneEscrow(r)
	return nil
}

func (m *Memory) GetEscrow(ctx context.Context, jobID uuid.UUID) (*models.EscrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.escrows[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEscrow(r), nil
}

func (m *Memory) UpdateEscrow(ctx context.Context, r *models.EscrowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.escrows[r.JobID]; !ok {
		return ErrNotFound
	}
	m.escrows[r.JobID] = cloneEscrow(r)
	return nil
}

func (m *Memory) AppendLedgerEvent(ctx context.Context, e *models.LedgerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.ledger[e.JobID] = append(m.ledger[e.JobID], &cp)
	return nil
}

func (m *Memory) ListLedgerEvents(ctx context.Context, jobID uuid.UUID) ([]*models.LedgerEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.ledger[jobID]
	out := make([]*models.LedgerEvent, 0, len(events))
	for _, e := range events {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

// ----- payment methods -----

func (m *Memory) CreatePaymentMethod(ctx context.Context, pm *models.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.paymentMethods[pm.ID]; ok {
		return ErrDuplicate
	}
	cp := *pm
	m.paymentMethods[pm.ID] = &cp
	return nil
}

func (m *Memory) GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.paymentMethods[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pm
	return &cp, nil
}

func (m *Memory) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]*models.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PaymentMethod
	for _, pm := range m.paymentMethods {
		if pm.UserID == userID {
			cp := *pm
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.paymentMethods[id]
	if !ok || target.UserID != userID {
		return ErrNotFound
	}
	for _, pm := range m.paymentMethods {
		if pm.UserID == userID {
			pm.IsDefault = pm.ID == id
		}
	}
	return nil
}

func (m *Memory) DeletePaymentMethod(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.paymentMethods[id]; !ok {
		return ErrNotFound
	}
	delete(m.paymentMethods, id)
	return nil
}

// ----- webhook dedup -----

func (m *Memory) MarkWebhookEvent(ctx context.Context, eventID, kind string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.webhookEvents[eventID]; seen {
		return false, nil
	}
	m.webhookEvents[eventID] = kind
	return true, nil
}

func (m *Memory) UnmarkWebhookEvent(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.webhookEvents, eventID)
	return nil
}

// ----- disputes -----

func (m *Memory) CreateDispute(ctx context.Context, d *models.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.disputes {
		if existing.JobID == d.JobID && existing.Status != models.DisputeResolved {
			return ErrDuplicate
		}
	}
	cp := *d
	m.disputes[d.ID] = &cp
	return nil
}

func (m *Memory) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *Memory) GetUnresolvedDisputeByJob(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disputes {
		if d.JobID == jobID && d.Status != models.DisputeResolved {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UpdateDispute(ctx context.Context, d *models.Dispute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.disputes[d.ID]; !ok {
		return ErrNotFound
	}
	cp := *d
	m.disputes[d.ID] = &cp
	return nil
}

func (m *Memory) ListDisputes(ctx context.Context, status string) ([]*models.Dispute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Dispute
	for _, d := range m.disputes {
		if status == "" || d.Status == status {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----- reviews -----

func (m *Memory) CreateReview(ctx context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.JobID == r.JobID && existing.ReviewerID == r.ReviewerID {
			return ErrDuplicate
		}
	}
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

func (m *Memory) GetReviewByJobReviewer(ctx context.Context, jobID, reviewerID uuid.UUID) (*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.JobID == jobID && r.ReviewerID == reviewerID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListReviewsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Review
	for _, r := range m.reviews {
		if r.RevieweeID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ----- notifications -----

func (m *Memory) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.notifications[n.UserID] = append(m.notifications[n.UserID], &cp)
	return nil
}

func (m *Memory) ListNotifications(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.notifications[userID]
	out := make([]*models.Notification, 0, len(rows))
	for _, n := range rows {
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}
