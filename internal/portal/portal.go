// Package portal applies the form rules on top of the alert and record
// stores: who may respond, who may change a status, which attachments a
// submission may reference, and the alert that accompanies a record.
package portal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/blob"
	"workflow-portal-go/internal/catalog"
	"workflow-portal-go/internal/models"
	"workflow-portal-go/internal/store"
)

// Notifier is told about new alerts and responses after they are stored.
type Notifier interface {
	AlertCreated(ctx context.Context, alert models.Alert)
	ResponseAdded(ctx context.Context, alert models.Alert, resp models.AlertResponse)
}

type Service struct {
	catalog  *catalog.Catalog
	alerts   *store.AlertStore
	records  *store.RecordStore
	blobs    *blob.Store
	notifier Notifier
	log      *zap.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func New(cat *catalog.Catalog, alerts *store.AlertStore, records *store.RecordStore, blobs *blob.Store, opts ...Option) *Service {
	s := &Service{
		catalog: cat,
		alerts:  alerts,
		records: records,
		blobs:   blobs,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

type SubmitFormInput struct {
	DepartmentID      string                  `json:"departmentId" validate:"required"`
	FeatureID         string                  `json:"featureId" validate:"required"`
	Priority          models.Priority         `json:"priority" validate:"omitempty,oneof=high medium low"`
	Responsible       string                  `json:"responsible" validate:"required"`
	Description       string                  `json:"description" validate:"required"`
	Observation       string                  `json:"observation"`
	Fields            map[string]any          `json:"fields"`
	NotifyDepartments []string                `json:"notifyDepartments" validate:"omitempty,unique,dive,required"`
	Files             []models.FileAttachment `json:"files"`
}

// SubmitResult carries what SubmitForm created. Alert is nil when the
// submission named no recipients.
type SubmitResult struct {
	Record models.FeatureRecord `json:"record"`
	Alert  *models.Alert        `json:"alert,omitempty"`
}

// SubmitForm stores a feature record and, when recipients are named, the
// alert announcing it. A persistence error is returned together with a
// complete result: both objects exist in memory.
func (s *Service) SubmitForm(ctx context.Context, in SubmitFormInput) (SubmitResult, error) {
	in.Responsible = strings.TrimSpace(in.Responsible)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return SubmitResult{}, err
	}
	if in.FeatureID == models.NotificationsFeature {
		return SubmitResult{}, apperr.NewValidationError("notifications records are created by responses")
	}
	feature, ok := s.catalog.Feature(in.DepartmentID, in.FeatureID)
	if !ok {
		return SubmitResult{}, apperr.NewNotFoundError("feature not found", in.DepartmentID+"/"+in.FeatureID)
	}
	if err := s.checkRecipients(in.DepartmentID, in.NotifyDepartments); err != nil {
		return SubmitResult{}, err
	}
	files, err := s.checkFiles(in.Files)
	if err != nil {
		return SubmitResult{}, err
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	digests := models.Digests(files)
	if err := s.blobs.Claim(digests...); err != nil {
		return SubmitResult{}, err
	}
	rec, err := s.records.AddRecord(ctx, in.DepartmentID, in.FeatureID, models.FeatureRecord{
		Fields:            in.Fields,
		Priority:          priority,
		Status:            models.StatusPending,
		Responsible:       in.Responsible,
		Description:       in.Description,
		Observation:       in.Observation,
		NotifyDepartments: in.NotifyDepartments,
		Files:             files,
	})
	warn, err := s.soft(err)
	if err != nil {
		s.release(ctx, digests)
		return SubmitResult{}, err
	}
	result := SubmitResult{Record: rec}
	if len(in.NotifyDepartments) == 0 {
		return result, warn
	}

	if err := s.blobs.Claim(digests...); err != nil {
		return result, err
	}
	alert, err := s.alerts.AddAlert(ctx, models.Alert{
		Title:          "Novo registro em " + feature.Name,
		Description:    in.Description,
		Type:           models.AlertTypeInfo,
		FromDepartment: in.DepartmentID,
		ToDepartments:  in.NotifyDepartments,
		Priority:       priority,
		Files:          files,
	})
	alertWarn, err := s.soft(err)
	if err != nil {
		s.release(ctx, digests)
		return result, err
	}
	result.Alert = &alert
	if s.notifier != nil {
		s.notifier.AlertCreated(ctx, alert)
	}
	return result, errors.Join(warn, alertWarn)
}

type RespondInput struct {
	AlertID        string                  `json:"alertId" validate:"required"`
	FromDepartment string                  `json:"fromDepartment" validate:"required"`
	Message        string                  `json:"message" validate:"required"`
	Observation    string                  `json:"observation"`
	Responsible    string                  `json:"responsible" validate:"required"`
	Files          []models.FileAttachment `json:"files"`
}

type RespondResult struct {
	Alert    models.Alert         `json:"alert"`
	Response models.AlertResponse `json:"response"`
	Record   models.FeatureRecord `json:"record"`
}

// Respond appends a response to an alert and logs it in the responder's
// notifications partition. Completed alerts reject responses.
func (s *Service) Respond(ctx context.Context, in RespondInput) (RespondResult, error) {
	in.Message = strings.TrimSpace(in.Message)
	in.Responsible = strings.TrimSpace(in.Responsible)
	if err := validateStruct(in); err != nil {
		return RespondResult{}, err
	}
	if _, ok := s.catalog.Department(in.FromDepartment); !ok {
		return RespondResult{}, apperr.NewValidationError("unknown department", in.FromDepartment)
	}
	alert, err := s.alerts.GetAlert(in.AlertID)
	if err != nil {
		return RespondResult{}, err
	}
	if !alert.VisibleTo(in.FromDepartment) {
		return RespondResult{}, apperr.NewForbiddenError("department is not part of this alert", in.FromDepartment)
	}
	if alert.Status.Terminal() {
		return RespondResult{}, apperr.FromTransition(&models.InvalidTransitionError{From: alert.Status, Event: models.EventRespond})
	}
	files, err := s.checkFiles(in.Files)
	if err != nil {
		return RespondResult{}, err
	}

	digests := models.Digests(files)
	if err := s.blobs.Claim(digests...); err != nil {
		return RespondResult{}, err
	}
	resp := models.AlertResponse{
		ID:             uuid.NewString(),
		FromDepartment: in.FromDepartment,
		Message:        in.Message,
		Observation:    in.Observation,
		Responsible:    in.Responsible,
		Files:          files,
	}
	upd := models.AlertUpdate{Responses: []models.AlertResponse{resp}}
	// only a recipient's answer moves the alert forward; the sender uses SetStatus
	if alert.IsRecipient(in.FromDepartment) {
		upd.Event = models.EventRespond
	}
	updated, err := s.alerts.UpdateAlert(ctx, alert.ID, upd)
	warn, err := s.soft(err)
	if err != nil {
		s.release(ctx, digests)
		return RespondResult{}, err
	}
	if i := slices.IndexFunc(updated.Responses, func(r models.AlertResponse) bool { return r.ID == resp.ID }); i >= 0 {
		resp = updated.Responses[i]
	}
	result := RespondResult{Alert: updated, Response: resp}
	if s.notifier != nil {
		s.notifier.ResponseAdded(ctx, updated, resp)
	}

	if err := s.blobs.Claim(digests...); err != nil {
		return result, err
	}
	rec, err := s.records.AddRecord(ctx, in.FromDepartment, models.NotificationsFeature, models.FeatureRecord{
		AlertID:     alert.ID,
		Message:     resp.Message,
		Observation: resp.Observation,
		Responsible: resp.Responsible,
		Files:       files,
		Priority:    alert.Priority,
		CreatedAt:   resp.CreatedAt,
	})
	recWarn, err := s.soft(err)
	if err != nil {
		s.release(ctx, digests)
		return result, err
	}
	result.Record = rec
	return result, errors.Join(warn, recWarn)
}

// SetStatus moves an alert to target on behalf of its sender.
func (s *Service) SetStatus(ctx context.Context, alertID, actingDepartment string, target models.Status) (models.Alert, error) {
	if !target.Valid() {
		return models.Alert{}, apperr.NewValidationError("invalid status", string(target))
	}
	alert, err := s.alerts.GetAlert(alertID)
	if err != nil {
		return models.Alert{}, err
	}
	if alert.FromDepartment != actingDepartment {
		return models.Alert{}, apperr.NewForbiddenError("only the sending department can change the status", actingDepartment)
	}
	return s.alerts.UpdateAlert(ctx, alertID, models.AlertUpdate{Status: &target})
}

// DeleteAlert removes an alert with its responses and releases their
// attachments. Only the sender may delete.
func (s *Service) DeleteAlert(ctx context.Context, alertID, actingDepartment string) error {
	alert, err := s.alerts.GetAlert(alertID)
	if err != nil {
		return err
	}
	if alert.FromDepartment != actingDepartment {
		return apperr.NewForbiddenError("only the sending department can delete an alert", actingDepartment)
	}
	removed, err := s.alerts.DeleteAlert(ctx, alertID)
	warn, err := s.soft(err)
	if err != nil {
		return err
	}
	s.release(ctx, alertDigests(removed))
	return warn
}

// DeleteRecord removes a record from the acting department's own partition.
func (s *Service) DeleteRecord(ctx context.Context, departmentID, featureID, id, actingDepartment string) error {
	if departmentID != actingDepartment {
		return apperr.NewForbiddenError("records can only be deleted by their department", actingDepartment)
	}
	removed, err := s.records.DeleteRecord(ctx, departmentID, featureID, id)
	warn, err := s.soft(err)
	if err != nil {
		return err
	}
	s.release(ctx, models.Digests(removed.Files))
	return warn
}

func (s *Service) checkRecipients(sender string, recipients []string) error {
	for _, d := range recipients {
		if d == sender {
			return apperr.NewValidationError("a department cannot notify itself", d)
		}
		if _, ok := s.catalog.Department(d); !ok {
			return apperr.NewValidationError("unknown department", d)
		}
	}
	return nil
}

// checkFiles accepts only attachments uploaded through this service and
// rewrites their URL from the digest.
func (s *Service) checkFiles(files []models.FileAttachment) ([]models.FileAttachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	out := make([]models.FileAttachment, 0, len(files))
	for _, f := range files {
		if !blob.ValidDigest(f.Digest) || !s.blobs.Known(f.Digest) {
			return nil, apperr.NewValidationError("unknown attachment", f.Name)
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		f.URL = blob.URLPrefix + f.Digest
		out = append(out, f)
	}
	return out, nil
}

// soft splits a store error into a warning (persistence failed, the
// mutation stands) and a hard failure.
func (s *Service) soft(err error) (warn, hard error) {
	if err == nil {
		return nil, nil
	}
	if apperr.IsPersistence(err) {
		s.log.Warn("Change kept in memory only", zap.Error(err))
		return err, nil
	}
	return nil, err
}

func (s *Service) release(ctx context.Context, digests []string) {
	if len(digests) == 0 {
		return
	}
	if err := s.blobs.Release(ctx, digests...); err != nil {
		s.log.Warn("Failed to release attachments", zap.Strings("digests", digests), zap.Error(err))
	}
}

func alertDigests(a models.Alert) []string {
	out := models.Digests(a.Files)
	for _, r := range a.Responses {
		out = append(out, models.Digests(r.Files)...)
	}
	return out
}

// RestoreAttachmentRefs recounts attachment references from both stores.
// Call it after the stores are hydrated.
func (s *Service) RestoreAttachmentRefs(ctx context.Context) error {
	counts := make(map[string]int)
	for _, a := range s.alerts.Snapshot() {
		for _, d := range alertDigests(a) {
			counts[d]++
		}
	}
	for _, part := range s.records.Snapshot() {
		for _, r := range part {
			for _, d := range models.Digests(r.Files) {
				counts[d]++
			}
		}
	}
	if err := s.blobs.Restore(ctx, counts); err != nil {
		return fmt.Errorf("restore attachment refs: %w", err)
	}
	return nil
}
