package portal

import (
	"context"
	"io"
	"slices"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/blob"
	"workflow-portal-go/internal/blob/core"
	"workflow-portal-go/internal/models"
)

// Alerts returns the alerts visible to the department, newest first.
func (s *Service) Alerts(departmentID string) []models.Alert {
	alerts := s.alerts.GetAlertsByDepartment(departmentID)
	slices.SortStableFunc(alerts, func(a, b models.Alert) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return alerts
}

// Alert returns one alert if the viewing department may see it.
func (s *Service) Alert(id, viewer string) (models.Alert, error) {
	a, err := s.alerts.GetAlert(id)
	if err != nil {
		return models.Alert{}, err
	}
	if !a.VisibleTo(viewer) {
		return models.Alert{}, apperr.NewForbiddenError("alert is not visible to this department", viewer)
	}
	return a, nil
}

func (s *Service) PendingCount(departmentID string) int {
	return s.alerts.GetPendingAlertCount(departmentID)
}

func (s *Service) AlertMetrics(departmentID string) models.AlertMetrics {
	return s.alerts.GetAlertMetrics(departmentID)
}

// Records returns a feature partition, newest first.
func (s *Service) Records(departmentID, featureID string) ([]models.FeatureRecord, error) {
	if _, ok := s.catalog.Feature(departmentID, featureID); !ok {
		return nil, apperr.NewNotFoundError("feature not found", departmentID+"/"+featureID)
	}
	records := s.records.GetFeatureRecords(departmentID, featureID)
	slices.SortStableFunc(records, func(a, b models.FeatureRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return records, nil
}

func (s *Service) FeatureMetrics(departmentID, featureID string) (models.FeatureMetrics, error) {
	if _, ok := s.catalog.Feature(departmentID, featureID); !ok {
		return models.FeatureMetrics{}, apperr.NewNotFoundError("feature not found", departmentID+"/"+featureID)
	}
	return s.records.GetFeatureMetrics(departmentID, featureID), nil
}

// DepartmentMetrics returns metrics for every catalog feature of the
// department, including features with no records yet.
func (s *Service) DepartmentMetrics(departmentID string) (map[string]models.FeatureMetrics, error) {
	dept, ok := s.catalog.Department(departmentID)
	if !ok {
		return nil, apperr.NewNotFoundError("department not found", departmentID)
	}
	out := s.records.GetDepartmentMetrics(departmentID)
	for _, f := range dept.Features {
		if _, ok := out[f.ID]; !ok {
			out[f.ID] = models.FeatureMetrics{}
		}
	}
	return out, nil
}

// Upload stores attachment content ahead of a submission or response.
// The returned attachment is referenced by digest in a later call, or
// dropped with Discard.
func (s *Service) Upload(ctx context.Context, r io.Reader, meta blob.UploadMeta) (models.FileAttachment, error) {
	return s.blobs.Acquire(ctx, r, meta)
}

func (s *Service) Discard(ctx context.Context, digest string) error {
	return s.blobs.Discard(ctx, digest)
}

func (s *Service) OpenAttachment(ctx context.Context, digest string) (core.Info, io.ReadCloser, error) {
	return s.blobs.Open(ctx, digest)
}

// AttachmentURL returns a direct download URL, or core.ErrUnsupported
// when the backend serves content only through OpenAttachment.
func (s *Service) AttachmentURL(ctx context.Context, digest string) (string, error) {
	return s.blobs.PresignURL(ctx, digest, core.SignedURLOptions{})
}
