package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/broker"
	"github.com/segyhp/lead-intake/internal/domain"
	"github.com/segyhp/lead-intake/internal/lifecycle"
	"github.com/segyhp/lead-intake/internal/metrics"
	"github.com/segyhp/lead-intake/internal/repository"
	customError "github.com/segyhp/lead-intake/pkg/errors"
	"github.com/segyhp/lead-intake/pkg/utils"
)

// Kicker wakes the notification dispatcher after a status change.
type Kicker interface {
	Kick()
}

type ApplicationService struct {
	repo      repository.ApplicationRepository
	broker    broker.Broker
	kicker    Kicker
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewApplicationService(
	repo repository.ApplicationRepository,
	b broker.Broker,
	kicker Kicker,
	logger *zap.Logger,
	m *metrics.Metrics,
) *ApplicationService {
	return &ApplicationService{
		repo:      repo,
		broker:    b,
		kicker:    kicker,
		validator: NewValidator(),
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (s *ApplicationService) WithClock(now func() time.Time) *ApplicationService {
	s.now = now
	return s
}

// NewValidator returns a validator that reports json field names and knows
// the loan_amount and loan_duration tags.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("loan_amount", func(fl validator.FieldLevel) bool {
		_, ok := utils.MatchAllowedAmount(fl.Field().String(), domain.LoanAmounts)
		return ok
	})
	_ = v.RegisterValidation("loan_duration", func(fl validator.FieldLevel) bool {
		_, ok := utils.MatchAllowedAmount(fl.Field().String(), domain.LoanDurations)
		return ok
	})
	return v
}

// Submit validates an intake request and stores it as a pending application.
func (s *ApplicationService) Submit(ctx context.Context, req *domain.CreateApplicationRequest) (*domain.Application, error) {
	req.Normalize()

	if err := s.validate(req); err != nil {
		s.metrics.Submission("invalid")
		return nil, err
	}

	amount, _ := utils.MatchAllowedAmount(req.LoanAmount, domain.LoanAmounts)
	duration, _ := utils.MatchAllowedAmount(req.LoanDuration, domain.LoanDurations)

	app := &domain.Application{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		Location:     req.Location,
		LoanAmount:   amount,
		LoanDuration: duration,
		Status:       domain.StatusPending,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, app); err != nil {
		s.metrics.Submission("error")
		s.logger.Error("failed to store application", zap.Error(err))
		return nil, customError.WrapDatabaseError(err)
	}

	s.metrics.Submission("accepted")
	s.logger.Info("application submitted", zap.String("application_id", app.ID))
	s.publish(ctx, broker.Event{Kind: broker.KindCreated, ApplicationID: app.ID, Status: string(app.Status), At: app.CreatedAt})

	return app, nil
}

func (s *ApplicationService) validate(req *domain.CreateApplicationRequest) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &customError.ValidationError{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			verr.MissingFields = append(verr.MissingFields, fe.Field())
		} else {
			verr.InvalidFields = append(verr.InvalidFields, fe.Field())
		}
	}
	return verr
}

// List returns every application, newest first.
func (s *ApplicationService) List(ctx context.Context) ([]*domain.Application, error) {
	apps, err := s.repo.List(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return apps, nil
}

func (s *ApplicationService) Get(ctx context.Context, id string) (*domain.Application, error) {
	app, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapApplicationNotFound(id)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return app, nil
}

// Watch delivers the full ordered application list now and again after
// every change, until ctx ends. The channel is closed when the
// subscription ends, including when a refresh fails; subscribe again to
// retry.
func (s *ApplicationService) Watch(ctx context.Context) (<-chan domain.Snapshot, error) {
	// subscribe before the first read so no change slips between the two
	events, cancel, err := s.broker.Subscribe(ctx)
	if err != nil {
		return nil, customError.WrapCacheError(err)
	}

	first, err := s.snapshot(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan domain.Snapshot, 1)
	go func() {
		defer close(out)
		defer cancel()

		if !deliver(ctx, out, first) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				snap, err := s.snapshot(ctx)
				if err != nil {
					if ctx.Err() == nil {
						s.logger.Warn("live list refresh failed", zap.Error(err))
					}
					return
				}
				if !deliver(ctx, out, snap) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *ApplicationService) snapshot(ctx context.Context) (domain.Snapshot, error) {
	apps, err := s.List(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{Applications: apps, Total: len(apps)}, nil
}

func deliver(ctx context.Context, out chan<- domain.Snapshot, snap domain.Snapshot) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

// UpdateStatus applies an admin-requested transition. Moving to the current
// status is accepted and changes nothing.
func (s *ApplicationService) UpdateStatus(ctx context.Context, id string, to domain.Status, confirmed bool) (*domain.StatusChange, error) {
	if !to.Valid() {
		return nil, &customError.ValidationError{InvalidFields: []string{"status"}}
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == to {
		return &domain.StatusChange{
			ApplicationID: current.ID,
			Email:         current.Email,
			RecipientName: current.FullName(),
			OldStatus:     current.Status,
			NewStatus:     to,
			ChangedAt:     s.now().UTC(),
		}, nil
	}

	if err := lifecycle.Validate(current.Status, to, confirmed); err != nil {
		return nil, err
	}

	change, err := s.repo.UpdateStatus(ctx, id, to)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, customError.WrapApplicationNotFound(id)
	}
	if err != nil {
		s.logger.Error("failed to update application status", zap.String("application_id", id), zap.Error(err))
		return nil, customError.WrapDatabaseError(err)
	}

	if change.OldStatus != current.Status {
		// another admin wrote in between; last writer wins
		s.logger.Warn("concurrent status update",
			zap.String("application_id", id),
			zap.String("expected", string(current.Status)),
			zap.String("found", string(change.OldStatus)),
		)
	}

	if change.Changed() {
		s.metrics.Transition(string(change.OldStatus), string(change.NewStatus))
		s.logger.Info("application status changed",
			zap.String("application_id", id),
			zap.String("from", string(change.OldStatus)),
			zap.String("to", string(change.NewStatus)),
		)
		if s.kicker != nil {
			s.kicker.Kick()
		}
	}

	s.publish(ctx, broker.Event{Kind: broker.KindStatusChanged, ApplicationID: id, Status: string(to), At: change.ChangedAt})

	return change, nil
}

// publish logs and drops broker failures.
func (s *ApplicationService) publish(ctx context.Context, ev broker.Event) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish change event", zap.String("application_id", ev.ApplicationID), zap.Error(err))
	}
}
