package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/models"
)

type pushState struct {
	Subscriptions []models.PushSubscription `json:"subscriptions"`
}

// PushStore keeps web push subscriptions, one per endpoint.
type PushStore struct {
	mu   sync.RWMutex
	subs []models.PushSubscription

	snap snapshotter
	opts options
}

func NewPushStore(medium Medium, name string, opts ...Option) *PushStore {
	o := buildOptions(opts)
	return &PushStore{
		snap: snapshotter{medium: medium, name: name, log: o.log, metrics: o.metrics},
		opts: o,
	}
}

// SavePushSubscription stores the subscription for the department. An
// endpoint that is already known moves to the new department and keys.
func (s *PushStore) SavePushSubscription(ctx context.Context, departmentID, endpoint, p256dh, auth string) (models.PushSubscription, error) {
	if departmentID == "" || endpoint == "" || p256dh == "" || auth == "" {
		return models.PushSubscription{}, apperr.NewValidationError("department, endpoint and keys are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := models.PushSubscription{
		ID:           uuid.NewString(),
		DepartmentID: departmentID,
		Endpoint:     endpoint,
		P256dh:       p256dh,
		Auth:         auth,
		CreatedAt:    s.opts.now(),
	}
	if i := s.indexLocked(endpoint); i >= 0 {
		sub.ID = s.subs[i].ID
		s.subs[i] = sub
	} else {
		s.subs = append(s.subs, sub)
	}
	s.opts.log.Info("Push subscription saved", zap.String("department", departmentID))
	return sub, s.persistLocked(ctx)
}

// GetPushSubscriptions returns the subscriptions of the given departments.
func (s *PushStore) GetPushSubscriptions(departmentIDs ...string) []models.PushSubscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PushSubscription
	for _, sub := range s.subs {
		if slices.Contains(departmentIDs, sub.DepartmentID) {
			out = append(out, sub)
		}
	}
	return out
}

// DeletePushSubscription drops an endpoint, typically after the push
// service reported it gone. Unknown endpoints are ignored.
func (s *PushStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(endpoint)
	if i < 0 {
		return nil
	}
	s.subs = slices.Delete(s.subs, i, i+1)
	return s.persistLocked(ctx)
}

func (s *PushStore) Hydrate(ctx context.Context) error {
	var state pushState
	if _, err := s.snap.load(ctx, &state); err != nil {
		return err
	}
	s.mu.Lock()
	s.subs = state.Subscriptions
	s.mu.Unlock()
	return nil
}

func (s *PushStore) indexLocked(endpoint string) int {
	return slices.IndexFunc(s.subs, func(sub models.PushSubscription) bool { return sub.Endpoint == endpoint })
}

func (s *PushStore) persistLocked(ctx context.Context) error {
	return s.snap.save(ctx, pushState{Subscriptions: slices.Clone(s.subs)})
}
