package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/models"
)

const (
	week  = 7 * 24 * time.Hour
	month = 30 * 24 * time.Hour
)

type recordsState struct {
	Records map[string][]models.FeatureRecord `json:"records"`
}

// RecordStore keeps feature records partitioned by "<department>-<feature>".
type RecordStore struct {
	mu         sync.RWMutex
	partitions map[string][]models.FeatureRecord

	snap snapshotter
	opts options
}

func NewRecordStore(medium Medium, name string, opts ...Option) *RecordStore {
	o := buildOptions(opts)
	return &RecordStore{
		partitions: make(map[string][]models.FeatureRecord),
		snap:       snapshotter{medium: medium, name: name, log: o.log, metrics: o.metrics},
		opts:       o,
	}
}

// AddRecord appends rec to its partition, creating the partition on first
// use. With a validator configured, Fields must match the feature's form.
func (s *RecordStore) AddRecord(ctx context.Context, departmentID, featureID string, rec models.FeatureRecord) (models.FeatureRecord, error) {
	if departmentID == "" || featureID == "" {
		return models.FeatureRecord{}, apperr.NewValidationError("department and feature are required")
	}
	if rec.Priority != "" && !rec.Priority.Valid() {
		return models.FeatureRecord{}, apperr.NewValidationError("invalid priority", string(rec.Priority))
	}
	if s.opts.validator != nil {
		if err := s.opts.validator.ValidateRecord(departmentID, featureID, rec.Fields); err != nil {
			return models.FeatureRecord{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.PartitionKey(departmentID, featureID)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else {
		for _, existing := range s.partitions[key] {
			if existing.ID == rec.ID {
				return models.FeatureRecord{}, apperr.NewConflictError("record already exists", rec.ID)
			}
		}
	}
	rec.DepartmentID = departmentID
	rec.FeatureID = featureID
	now := s.opts.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	s.partitions[key] = append(s.partitions[key], rec.Clone())
	s.opts.metrics.RecordCreated(departmentID, featureID)
	s.opts.log.Info("Record added",
		zap.String("record_id", rec.ID),
		zap.String("department", departmentID),
		zap.String("feature", featureID),
	)
	return rec, s.persistLocked(ctx)
}

// GetFeatureRecords returns a copy of the partition in insertion order.
func (s *RecordStore) GetFeatureRecords(departmentID, featureID string) []models.FeatureRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	part := s.partitions[models.PartitionKey(departmentID, featureID)]
	out := make([]models.FeatureRecord, 0, len(part))
	for _, r := range part {
		out = append(out, r.Clone())
	}
	return out
}

func (s *RecordStore) GetRecord(departmentID, featureID, id string) (models.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.partitions[models.PartitionKey(departmentID, featureID)] {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return models.FeatureRecord{}, apperr.NewNotFoundError("record not found", id)
}

// GetFeatureMetrics counts the partition. LastWeek and LastMonth use the
// closed window [now-N days, now]; records without a priority count
// toward Total only.
func (s *RecordStore) GetFeatureMetrics(departmentID, featureID string) models.FeatureMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return featureMetrics(s.partitions[models.PartitionKey(departmentID, featureID)], s.opts.now())
}

// GetDepartmentMetrics returns metrics for every feature partition of the
// department that holds at least one record.
func (s *RecordStore) GetDepartmentMetrics(departmentID string) map[string]models.FeatureMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.opts.now()
	out := make(map[string]models.FeatureMetrics)
	for key, part := range s.partitions {
		dept, feature, _ := strings.Cut(key, "-")
		if dept != departmentID || len(part) == 0 {
			continue
		}
		out[feature] = featureMetrics(part, now)
	}
	return out
}

func featureMetrics(records []models.FeatureRecord, now time.Time) models.FeatureMetrics {
	m := models.FeatureMetrics{Total: len(records)}
	weekAgo, monthAgo := now.Add(-week), now.Add(-month)
	for _, r := range records {
		if !r.CreatedAt.After(now) {
			if !r.CreatedAt.Before(weekAgo) {
				m.LastWeek++
			}
			if !r.CreatedAt.Before(monthAgo) {
				m.LastMonth++
			}
		}
		switch r.Priority {
		case models.PriorityHigh:
			m.Priority.High++
		case models.PriorityMedium:
			m.Priority.Medium++
		case models.PriorityLow:
			m.Priority.Low++
		}
	}
	return m
}

// DeleteRecord removes a record and returns it so callers can release its
// attachments.
func (s *RecordStore) DeleteRecord(ctx context.Context, departmentID, featureID, id string) (models.FeatureRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.PartitionKey(departmentID, featureID)
	part := s.partitions[key]
	for i, r := range part {
		if r.ID != id {
			continue
		}
		s.partitions[key] = append(part[:i:i], part[i+1:]...)
		s.opts.log.Info("Record deleted", zap.String("record_id", id), zap.String("partition", key))
		return r, s.persistLocked(ctx)
	}
	return models.FeatureRecord{}, apperr.NewNotFoundError("record not found", id)
}

// Snapshot returns a deep copy of all partitions keyed by partition key.
func (s *RecordStore) Snapshot() map[string][]models.FeatureRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *RecordStore) snapshotLocked() map[string][]models.FeatureRecord {
	out := make(map[string][]models.FeatureRecord, len(s.partitions))
	for key, part := range s.partitions {
		cp := make([]models.FeatureRecord, len(part))
		for i, r := range part {
			cp[i] = r.Clone()
		}
		out[key] = cp
	}
	return out
}

// Hydrate replaces the in-memory partitions with the persisted snapshot.
// Records missing their department or feature id take them from the
// partition they were filed under when the key splits unambiguously.
func (s *RecordStore) Hydrate(ctx context.Context) error {
	var state recordsState
	found, err := s.snap.load(ctx, &state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.partitions = make(map[string][]models.FeatureRecord, len(state.Records))
	total := 0
	for key, part := range state.Records {
		for i := range part {
			if part[i].DepartmentID == "" || part[i].FeatureID == "" {
				part[i].DepartmentID, part[i].FeatureID = splitPartitionKey(key, part[i])
			}
		}
		s.partitions[key] = part
		total += len(part)
	}
	s.opts.log.Info("Records hydrated",
		zap.String("snapshot", s.snap.name),
		zap.Bool("found", found),
		zap.Int("partitions", len(s.partitions)),
		zap.Int("count", total),
	)
	return nil
}

// splitPartitionKey recovers ids from "<dept>-<feature>". Department ids
// carry no dash, so the first dash is the separator.
func splitPartitionKey(key string, r models.FeatureRecord) (string, string) {
	dept, feature, ok := strings.Cut(key, "-")
	if !ok {
		return r.DepartmentID, r.FeatureID
	}
	if r.DepartmentID != "" {
		dept = r.DepartmentID
	}
	if r.FeatureID != "" {
		feature = r.FeatureID
	}
	return dept, feature
}

func (s *RecordStore) persistLocked(ctx context.Context) error {
	return s.snap.save(ctx, recordsState{Records: s.snapshotLocked()})
}
