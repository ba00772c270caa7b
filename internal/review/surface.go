package review

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/segyhp/lead-intake/internal/domain"
	customError "github.com/segyhp/lead-intake/pkg/errors"
)

// Applications is the part of the application service the surface drives.
type Applications interface {
	List(ctx context.Context) ([]*domain.Application, error)
	Get(ctx context.Context, id string) (*domain.Application, error)
	Watch(ctx context.Context) (<-chan domain.Snapshot, error)
	UpdateStatus(ctx context.Context, id string, to domain.Status, confirmed bool) (*domain.StatusChange, error)
}

// Surface gates every operation on an admin identity and allows at most one
// status update per application at a time.
type Surface struct {
	apps   Applications
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSurface(apps Applications, logger *zap.Logger) *Surface {
	return &Surface{
		apps:     apps,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

func authorize(identity *domain.Identity) error {
	if identity == nil || identity.Role != domain.RoleAdmin {
		return customError.ErrUnauthorized
	}
	return nil
}

// List returns the filtered application list.
func (s *Surface) List(ctx context.Context, identity *domain.Identity, f Filter) (domain.Snapshot, error) {
	if err := authorize(identity); err != nil {
		return domain.Snapshot{}, err
	}
	apps, err := s.apps.List(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	filtered := Apply(apps, f)
	return domain.Snapshot{Applications: filtered, Total: len(filtered)}, nil
}

func (s *Surface) Get(ctx context.Context, identity *domain.Identity, id string) (*domain.Application, error) {
	if err := authorize(identity); err != nil {
		return nil, err
	}
	return s.apps.Get(ctx, id)
}

// Stream delivers filtered snapshots until ctx ends. filters may carry a
// replacement filter at any time; the latest snapshot is re-filtered and
// sent again. A nil filters channel keeps the initial filter.
func (s *Surface) Stream(ctx context.Context, identity *domain.Identity, initial Filter, filters <-chan Filter) (<-chan domain.Snapshot, error) {
	if err := authorize(identity); err != nil {
		return nil, err
	}

	source, err := s.apps.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Snapshot, 1)
	go func() {
		defer close(out)

		filter := initial
		var latest *domain.Snapshot

		emit := func() bool {
			if latest == nil {
				return true
			}
			if ctx.Err() != nil {
				return false
			}
			filtered := Apply(latest.Applications, filter)
			select {
			case out <- domain.Snapshot{Applications: filtered, Total: len(filtered)}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-source:
				if !ok {
					return
				}
				latest = &snap
				if !emit() {
					return
				}
			case f, ok := <-filters:
				if !ok {
					filters = nil
					continue
				}
				filter = f
				if !emit() {
					return
				}
			}
		}
	}()

	return out, nil
}

// Transition applies a status change unless the same application already
// has one running through this surface.
func (s *Surface) Transition(ctx context.Context, identity *domain.Identity, id string, to domain.Status, confirmed bool) (*domain.StatusChange, error) {
	if err := authorize(identity); err != nil {
		return nil, err
	}

	if !s.acquire(id) {
		return nil, customError.WrapUpdateInFlight(id)
	}
	defer s.release(id)

	change, err := s.apps.UpdateStatus(ctx, id, to, confirmed)
	if err != nil {
		s.logger.Info("transition refused",
			zap.String("application_id", id),
			zap.String("to", string(to)),
			zap.String("admin", identity.Email),
			zap.Error(err),
		)
		return nil, err
	}
	return change, nil
}

// InFlight reports whether id has an update running.
func (s *Surface) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inFlight[id]
	return busy
}

func (s *Surface) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Surface) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
