package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/models"
)

type alertsState struct {
	Alerts []models.Alert `json:"alerts"`
}

// AlertStore keeps every alert in memory, in creation order, and snapshots
// the whole collection after each mutation.
type AlertStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*models.Alert

	snap snapshotter
	opts options
}

func NewAlertStore(medium Medium, name string, opts ...Option) *AlertStore {
	o := buildOptions(opts)
	return &AlertStore{
		byID: make(map[string]*models.Alert),
		snap: snapshotter{medium: medium, name: name, log: o.log, metrics: o.metrics},
		opts: o,
	}
}

// AddAlert stores a new alert. Empty ID, status, type, priority and
// responses are defaulted; both timestamps are set to now. On a
// persistence error the alert is still stored and returned.
func (s *AlertStore) AddAlert(ctx context.Context, a models.Alert) (models.Alert, error) {
	if a.FromDepartment == "" {
		return models.Alert{}, apperr.NewValidationError("alert requires a sending department")
	}
	if a.Type == "" {
		a.Type = models.AlertTypeInfo
	}
	if !a.Type.Valid() {
		return models.Alert{}, apperr.NewValidationError("invalid alert type", string(a.Type))
	}
	if a.Priority == "" {
		a.Priority = models.PriorityMedium
	}
	if !a.Priority.Valid() {
		return models.Alert{}, apperr.NewValidationError("invalid priority", string(a.Priority))
	}
	if a.Status == "" {
		a.Status = models.StatusPending
	}
	if !a.Status.Valid() {
		return models.Alert{}, apperr.NewValidationError("invalid status", string(a.Status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	} else if _, exists := s.byID[a.ID]; exists {
		return models.Alert{}, apperr.NewConflictError("alert already exists", a.ID)
	}

	now := s.opts.now()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.ToDepartments == nil {
		a.ToDepartments = []string{}
	}
	if a.Responses == nil {
		a.Responses = []models.AlertResponse{}
	}

	stored := a.Clone()
	s.byID[a.ID] = &stored
	s.order = append(s.order, a.ID)
	s.opts.metrics.AlertCreated(a.FromDepartment)
	s.opts.log.Info("Alert created",
		zap.String("alert_id", a.ID),
		zap.String("from", a.FromDepartment),
		zap.Strings("to", a.ToDepartments),
	)

	return a, s.persistLocked(ctx)
}

// UpdateAlert merges the non-nil fields of upd into the alert and appends
// its responses. Status changes go through the state machine; a completed
// alert accepts no further responses or status changes.
func (s *AlertStore) UpdateAlert(ctx context.Context, id string, upd models.AlertUpdate) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return models.Alert{}, apperr.NewNotFoundError("alert not found", id)
	}
	next := cur.Clone()

	if upd.Title != nil {
		next.Title = *upd.Title
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	if upd.Type != nil {
		if !upd.Type.Valid() {
			return models.Alert{}, apperr.NewValidationError("invalid alert type", string(*upd.Type))
		}
		next.Type = *upd.Type
	}
	if upd.Priority != nil {
		if !upd.Priority.Valid() {
			return models.Alert{}, apperr.NewValidationError("invalid priority", string(*upd.Priority))
		}
		next.Priority = *upd.Priority
	}

	now := s.opts.now()
	if len(upd.Responses) > 0 {
		if next.Status.Terminal() {
			return models.Alert{}, apperr.FromTransition(&models.InvalidTransitionError{From: next.Status, Event: models.EventRespond})
		}
		for _, r := range upd.Responses {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			r.AlertID = id
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			r.Files = append([]models.FileAttachment(nil), r.Files...)
			next.Responses = append(next.Responses, r)
		}
	}

	if upd.Status != nil {
		if !upd.Status.Valid() {
			return models.Alert{}, apperr.NewValidationError("invalid status", string(*upd.Status))
		}
		ev, err := models.EventFor(next.Status, *upd.Status)
		if err != nil {
			return models.Alert{}, transitionError(err)
		}
		if ev != "" {
			next.Status, _ = models.Transition(next.Status, ev)
		}
	}
	if upd.Event != "" {
		st, err := models.Transition(next.Status, upd.Event)
		if err != nil {
			return models.Alert{}, transitionError(err)
		}
		next.Status = st
	}
	next.UpdatedAt = now

	if next.Status != cur.Status {
		s.opts.metrics.StatusChanged(string(next.Status))
		s.opts.log.Info("Alert status changed",
			zap.String("alert_id", id),
			zap.String("from", string(cur.Status)),
			zap.String("to", string(next.Status)),
		)
	}
	s.opts.metrics.ResponsesAdded(len(upd.Responses))

	*cur = next
	return next.Clone(), s.persistLocked(ctx)
}

func transitionError(err error) error {
	var te *models.InvalidTransitionError
	if errors.As(err, &te) {
		return apperr.FromTransition(te)
	}
	return err
}

func (s *AlertStore) GetAlert(id string) (models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return models.Alert{}, apperr.NewNotFoundError("alert not found", id)
	}
	return a.Clone(), nil
}

// GetAlertsByDepartment returns the alerts the department sent or is a
// listed recipient of, in creation order.
func (s *AlertStore) GetAlertsByDepartment(departmentID string) []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Alert{}
	for _, id := range s.order {
		if a := s.byID[id]; a.VisibleTo(departmentID) {
			out = append(out, a.Clone())
		}
	}
	return out
}

func (s *AlertStore) GetPendingAlertCount(departmentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.byID {
		if a.Status == models.StatusPending && a.VisibleTo(departmentID) {
			n++
		}
	}
	return n
}

// GetAlertMetrics counts the alerts visible to the department. Received
// counts alerts where the department is a recipient but not the sender.
func (s *AlertStore) GetAlertMetrics(departmentID string) models.AlertMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m models.AlertMetrics
	for _, a := range s.byID {
		if !a.VisibleTo(departmentID) {
			continue
		}
		m.Total++
		if a.FromDepartment == departmentID {
			m.Sent++
		} else {
			m.Received++
		}
		switch a.Status {
		case models.StatusPending:
			m.Pending++
		case models.StatusInProgress:
			m.InProgress++
		case models.StatusCompleted:
			m.Completed++
		}
	}
	return m
}

// DeleteAlert removes the alert together with its responses and returns
// what was removed.
func (s *AlertStore) DeleteAlert(ctx context.Context, id string) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return models.Alert{}, apperr.NewNotFoundError("alert not found", id)
	}
	removed := a.Clone()
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.opts.log.Info("Alert deleted", zap.String("alert_id", id))
	return removed, s.persistLocked(ctx)
}

// Snapshot returns a deep copy of every alert in creation order.
func (s *AlertStore) Snapshot() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *AlertStore) snapshotLocked() []models.Alert {
	out := make([]models.Alert, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Hydrate replaces the in-memory alerts with the persisted snapshot. A
// missing snapshot leaves the store empty.
func (s *AlertStore) Hydrate(ctx context.Context) error {
	var state alertsState
	found, err := s.snap.load(ctx, &state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.byID = make(map[string]*models.Alert, len(state.Alerts))
	for _, a := range state.Alerts {
		if a.ID == "" {
			continue
		}
		if a.Responses == nil {
			a.Responses = []models.AlertResponse{}
		}
		if a.ToDepartments == nil {
			a.ToDepartments = []string{}
		}
		if _, dup := s.byID[a.ID]; !dup {
			s.order = append(s.order, a.ID)
		}
		stored := a
		s.byID[a.ID] = &stored
	}
	s.opts.log.Info("Alerts hydrated",
		zap.String("snapshot", s.snap.name),
		zap.Bool("found", found),
		zap.Int("count", len(s.order)),
	)
	return nil
}

func (s *AlertStore) persistLocked(ctx context.Context) error {
	return s.snap.save(ctx, alertsState{Alerts: s.snapshotLocked()})
}
