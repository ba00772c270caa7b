package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/broker"
	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/repository"
	customError "github.com/segyhp/lead-intake/pkg/errors"
	"github.com/segyhp/lead-intake/tests/mocks"
)

type serviceFixture struct {
	store   *repository.MemoryStore
	broker  *broker.Memory
	kicker  *mocks.CountingKicker
	now     time.Time
	service *ApplicationService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		broker: broker.NewMemory(),
		kicker: &mocks.CountingKicker{},
		now:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.store = repository.NewMemoryStore().WithClock(clock)
	f.service = NewApplicationService(f.store.Applications(), f.broker, f.kicker, zap.NewNop(), nil).WithClock(clock)
	t.Cleanup(func() { f.broker.Close() })
	return f
}

func validRequest() *domain.CreateApplicationRequest {
	return &domain.CreateApplicationRequest{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        "jane@example.com",
		Phone:        "0712345678",
		Location:     "Nairobi",
		LoanAmount:   "2000",
		LoanDuration: "5",
	}
}

func (f *serviceFixture) submit(t *testing.T, first string) *domain.Application {
	t.Helper()
	req := validRequest()
	req.FirstName = first
	app, err := f.service.Submit(context.Background(), req)
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	return app
}

func TestSubmit_Success(t *testing.T) {
	f := newServiceFixture(t)

	app, err := f.service.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, domain.StatusPending, app.Status)
	assert.Equal(t, f.now, app.CreatedAt)
	assert.Nil(t, app.UpdatedAt)

	stored, err := f.service.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", stored.FullName())
}

func TestSubmit_NormalizesInput(t *testing.T) {
	f := newServiceFixture(t)

	req := validRequest()
	req.FirstName = "  Jane "
	req.LoanAmount = "2000.00"
	req.LoanDuration = " 7 "

	app, err := f.service.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Jane", app.FirstName)
	assert.Equal(t, "2000", app.LoanAmount)
	assert.Equal(t, "7", app.LoanDuration)
}

func TestSubmit_ReportsEveryMissingField(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *domain.CreateApplicationRequest)
		missing []string
	}{
		{
			name:    "everything",
			mutate:  func(r *domain.CreateApplicationRequest) { *r = domain.CreateApplicationRequest{} },
			missing: []string{"firstName", "lastName", "email", "phone", "location", "loanAmount", "loanDuration"},
		},
		{
			name: "blank strings count as missing",
			mutate: func(r *domain.CreateApplicationRequest) {
				r.LastName = "   "
				r.Location = ""
			},
			missing: []string{"lastName", "location"},
		},
		{
			name:    "single",
			mutate:  func(r *domain.CreateApplicationRequest) { r.Phone = "" },
			missing: []string{"phone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			req := validRequest()
			tt.mutate(req)

			_, err := f.service.Submit(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, customError.ErrValidation)

			var verr *customError.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.missing, verr.MissingFields)

			apps, err := f.service.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, apps)
		})
	}
}

func TestSubmit_ReportsInvalidFields(t *testing.T) {
	f := newServiceFixture(t)
	req := validRequest()
	req.Email = "not-an-email"
	req.LoanAmount = "2100"
	req.LoanDuration = "30"

	_, err := f.service.Submit(context.Background(), req)

	var verr *customError.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, verr.MissingFields)
	assert.Equal(t, []string{"email", "loanAmount", "loanDuration"}, verr.InvalidFields)
}

func TestSubmit_StoreFailure(t *testing.T) {
	repo := &mocks.MockApplicationRepository{}
	b := &mocks.MockBroker{}
	svc := NewApplicationService(repo, b, nil, zap.NewNop(), nil)

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Application")).Return(errors.New("connection refused"))

	_, err := svc.Submit(context.Background(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, customError.ErrStoreFailure)
	assert.Equal(t, customError.ErrCodeDatabaseError, customError.CodeOf(err))

	repo.AssertExpectations(t)
	b.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestUpdateStatus_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		path      []domain.Status
		to        domain.Status
		confirmed bool
		code      string
	}{
		{name: "pending to approved", to: domain.StatusApproved},
		{name: "pending to rejected confirmed", to: domain.StatusRejected, confirmed: true},
		{name: "pending to rejected unconfirmed", to: domain.StatusRejected, code: customError.ErrCodeConfirmationRequired},
		{name: "rejected back to pending", path: []domain.Status{domain.StatusRejected}, to: domain.StatusPending},
		{name: "approved is final", path: []domain.Status{domain.StatusApproved}, to: domain.StatusRejected, confirmed: true, code: customError.ErrCodeTransitionNotAllowed},
		{name: "approved cannot reopen", path: []domain.Status{domain.StatusApproved}, to: domain.StatusPending, code: customError.ErrCodeTransitionNotAllowed},
		{name: "rejected cannot jump to approved", path: []domain.Status{domain.StatusRejected}, to: domain.StatusApproved, code: customError.ErrCodeTransitionNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			ctx := context.Background()
			app := f.submit(t, "Jane")

			for _, step := range tt.path {
				_, err := f.service.UpdateStatus(ctx, app.ID, step, true)
				require.NoError(t, err)
			}
			kicksBefore := f.kicker.Kicks()

			change, err := f.service.UpdateStatus(ctx, app.ID, tt.to, tt.confirmed)
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, customError.CodeOf(err))
				assert.Equal(t, kicksBefore, f.kicker.Kicks())
				return
			}

			require.NoError(t, err)
			assert.True(t, change.Changed())
			assert.Equal(t, tt.to, change.NewStatus)
			assert.Equal(t, kicksBefore+1, f.kicker.Kicks())

			stored, err := f.service.Get(ctx, app.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.to, stored.Status)
			require.NotNil(t, stored.UpdatedAt)
		})
	}
}

func TestUpdateStatus_SameStatusIsNoop(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.submit(t, "Jane")

	change, err := f.service.UpdateStatus(ctx, app.ID, domain.StatusPending, false)
	require.NoError(t, err)
	assert.False(t, change.Changed())
	assert.Zero(t, f.kicker.Kicks())

	pending, err := f.store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	stored, err := f.service.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.UpdatedAt)
}

func TestUpdateStatus_EnqueuesOneNotificationPerChange(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.submit(t, "Jane")

	_, err := f.service.UpdateStatus(ctx, app.ID, domain.StatusRejected, true)
	require.NoError(t, err)
	_, err = f.service.UpdateStatus(ctx, app.ID, domain.StatusPending, false)
	require.NoError(t, err)

	pending, err := f.store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
}

func TestUpdateStatus_Errors(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	app := f.submit(t, "Jane")

	_, err := f.service.UpdateStatus(ctx, "missing", domain.StatusApproved, false)
	assert.ErrorIs(t, err, customError.ErrApplicationNotFound)

	_, err = f.service.UpdateStatus(ctx, app.ID, domain.Status("archived"), false)
	assert.ErrorIs(t, err, customError.ErrValidation)
}

func TestUpdateStatus_StoreFailure(t *testing.T) {
	repo := &mocks.MockApplicationRepository{}
	kicker := &mocks.CountingKicker{}
	svc := NewApplicationService(repo, broker.NewMemory(), kicker, zap.NewNop(), nil)

	repo.On("GetByID", mock.Anything, "app-1").Return(&domain.Application{ID: "app-1", Status: domain.StatusPending}, nil)
	repo.On("UpdateStatus", mock.Anything, "app-1", domain.StatusApproved).Return(nil, errors.New("deadlock detected"))

	_, err := svc.UpdateStatus(context.Background(), "app-1", domain.StatusApproved, false)
	assert.ErrorIs(t, err, customError.ErrStoreFailure)
	assert.Zero(t, kicker.Kicks())
	repo.AssertExpectations(t)
}

func nextSnapshot(t *testing.T, ch <-chan domain.Snapshot) domain.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "stream closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return domain.Snapshot{}
}

func ids(snap domain.Snapshot) []string {
	out := make([]string, 0, len(snap.Applications))
	for _, app := range snap.Applications {
		out = append(out, app.ID)
	}
	return out
}

func TestWatch_SnapshotThenUpdates(t *testing.T) {
	f := newServiceFixture(t)
	older := f.submit(t, "Old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := f.service.Watch(ctx)
	require.NoError(t, err)

	first := nextSnapshot(t, stream)
	assert.Equal(t, []string{older.ID}, ids(first))
	assert.Equal(t, 1, first.Total)

	newer := f.submit(t, "New")
	second := nextSnapshot(t, stream)
	assert.Equal(t, []string{newer.ID, older.ID}, ids(second))

	_, err = f.service.UpdateStatus(context.Background(), older.ID, domain.StatusApproved, false)
	require.NoError(t, err)
	third := nextSnapshot(t, stream)
	require.Len(t, third.Applications, 2)
	assert.Equal(t, domain.StatusApproved, third.Applications[1].Status)
}

func TestWatch_CancelClosesStream(t *testing.T) {
	f := newServiceFixture(t)
	f.submit(t, "Jane")

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := f.service.Watch(ctx)
	require.NoError(t, err)
	nextSnapshot(t, stream)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return f.broker.Subscribers() == 0 }, time.Second, 10*time.Millisecond)

	// a fresh subscription starts over with the full list
	again, err := f.service.Watch(context.Background())
	require.NoError(t, err)
	assert.Len(t, nextSnapshot(t, again).Applications, 1)
}
