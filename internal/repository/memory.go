package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/segyhp/lead-intake/internal/domain"
)

// MemoryStore keeps applications, the outbox, email logs and admins in
// process. It backs STORE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu           sync.RWMutex
	applications map[string]*domain.Application
	tasks        map[string]*domain.NotificationTask
	logs         []*domain.EmailLog
	admins       map[string]*domain.AdminCredential
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		applications: make(map[string]*domain.Application),
		tasks:        make(map[string]*domain.NotificationTask),
		admins:       make(map[string]*domain.AdminCredential),
		now:          time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Applications returns the store as an ApplicationRepository.
func (s *MemoryStore) Applications() ApplicationRepository { return memoryApplications{s} }

// EmailLogs returns the store as an EmailLogRepository.
func (s *MemoryStore) EmailLogs() EmailLogRepository { return memoryEmailLogs{s} }

// Outbox returns the store as an OutboxRepository.
func (s *MemoryStore) Outbox() OutboxRepository { return memoryOutbox{s} }

// Admins returns the store as an AdminRepository.
func (s *MemoryStore) Admins() AdminRepository { return memoryAdmins{s} }

type memoryApplications struct{ s *MemoryStore }

func (r memoryApplications) Create(_ context.Context, app *domain.Application) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.applications[app.ID]; exists {
		return fmt.Errorf("application %s already exists", app.ID)
	}
	r.s.applications[app.ID] = app.Clone()
	return nil
}

func (r memoryApplications) GetByID(_ context.Context, id string) (*domain.Application, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	app, ok := r.s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return app.Clone(), nil
}

func (r memoryApplications) List(_ context.Context) ([]*domain.Application, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	apps := make([]*domain.Application, 0, len(r.s.applications))
	for _, app := range r.s.applications {
		apps = append(apps, app.Clone())
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].ID > apps[j].ID
		}
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	return apps, nil
}

func (r memoryApplications) UpdateStatus(_ context.Context, id string, status domain.Status) (*domain.StatusChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	app, ok := r.s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}

	now := r.s.now()
	change := &domain.StatusChange{
		ApplicationID: id,
		Email:         app.Email,
		RecipientName: app.FullName(),
		OldStatus:     app.Status,
		NewStatus:     status,
		ChangedAt:     now,
	}

	app.Status = status
	app.UpdatedAt = &now

	if change.Changed() {
		task := &domain.NotificationTask{
			ID:            uuid.NewString(),
			ApplicationID: id,
			Email:         change.Email,
			RecipientName: change.RecipientName,
			Status:        status,
			CreatedAt:     now,
			NextAttemptAt: now,
		}
		r.s.tasks[task.ID] = task
	}

	return change, nil
}

type memoryEmailLogs struct{ s *MemoryStore }

func (r memoryEmailLogs) Append(_ context.Context, entry *domain.EmailLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.SentAt = r.s.now()
	c := *entry
	r.s.logs = append(r.s.logs, &c)
	return nil
}

func (r memoryEmailLogs) ListByApplication(_ context.Context, applicationID string) ([]*domain.EmailLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entries := []*domain.EmailLog{}
	for _, entry := range r.s.logs {
		if entry.ApplicationID == applicationID {
			c := *entry
			entries = append(entries, &c)
		}
	}
	return entries, nil
}

type memoryOutbox struct{ s *MemoryStore }

func (r memoryOutbox) ClaimDue(_ context.Context, now time.Time, limit, maxAttempts int, lease time.Duration) ([]*domain.NotificationTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	due := make([]*domain.NotificationTask, 0)
	for _, task := range r.s.tasks {
		if task.DeliveredAt == nil && task.Attempts < maxAttempts && !task.NextAttemptAt.After(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.NotificationTask, 0, len(due))
	for _, task := range due {
		task.Attempts++
		task.NextAttemptAt = now.Add(lease)
		c := *task
		claimed = append(claimed, &c)
	}
	return claimed, nil
}

func (r memoryOutbox) MarkSent(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(t *domain.NotificationTask) { t.SentAt = &at })
}

func (r memoryOutbox) MarkDelivered(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(t *domain.NotificationTask) {
		t.DeliveredAt = &at
		t.LastError = nil
	})
}

func (r memoryOutbox) MarkFailed(_ context.Context, id string, reason string, nextAttemptAt time.Time) error {
	return r.update(id, func(t *domain.NotificationTask) {
		t.LastError = &reason
		t.NextAttemptAt = nextAttemptAt
	})
}

func (r memoryOutbox) CountPending(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, task := range r.s.tasks {
		if task.DeliveredAt == nil {
			count++
		}
	}
	return count, nil
}

func (r memoryOutbox) update(id string, fn func(t *domain.NotificationTask)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	task, ok := r.s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	fn(task)
	return nil
}

type memoryAdmins struct{ s *MemoryStore }

func (r memoryAdmins) FindByEmail(_ context.Context, email string) (*domain.AdminCredential, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	admin, ok := r.s.admins[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	c := *admin
	return &c, nil
}

func (r memoryAdmins) Create(_ context.Context, admin *domain.AdminCredential) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if _, exists := r.s.admins[email]; exists {
		return fmt.Errorf("admin %s already exists", email)
	}
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	admin.Email = email
	admin.CreatedAt = r.s.now()
	c := *admin
	r.s.admins[email] = &c
	return nil
}
