package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/export"
	"workflow-portal-go/internal/portal"
)

func (h *Handler) DepartmentsHandler(w http.ResponseWriter, r *http.Request) {
	depts := h.Portal.Catalog().Departments()
	writeJSON(w, http.StatusOK, map[string]any{
		"departments": depts,
		"count":       len(depts),
	})
}

func (h *Handler) DepartmentHandler(w http.ResponseWriter, r *http.Request) {
	dept, ok := h.Portal.Catalog().Department(r.PathValue("dept"))
	if !ok {
		h.writeError(w, r, apperr.NewNotFoundError("department not found", r.PathValue("dept")))
		return
	}
	writeJSON(w, http.StatusOK, dept)
}

func (h *Handler) DepartmentMetricsHandler(w http.ResponseWriter, r *http.Request) {
	m, err := h.Portal.DepartmentMetrics(r.PathValue("dept"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"departmentId": r.PathValue("dept"),
		"features":     m,
	})
}

// SubmitRecordHandler takes the form for the feature in the path.
func (h *Handler) SubmitRecordHandler(w http.ResponseWriter, r *http.Request) {
	var in portal.SubmitFormInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.DepartmentID = r.PathValue("dept")
	in.FeatureID = r.PathValue("feature")

	res, err := h.Portal.SubmitForm(r.Context(), in)
	h.writeResult(w, r, http.StatusCreated, map[string]any{
		"record": res.Record,
		"alert":  res.Alert,
	}, err)
}

func (h *Handler) RecordsHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Portal.Records(r.PathValue("dept"), r.PathValue("feature"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": recs,
		"count":   len(recs),
	})
}

func (h *Handler) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	acting, err := h.actingDepartment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	err = h.Portal.DeleteRecord(r.Context(), r.PathValue("dept"), r.PathValue("feature"), r.PathValue("id"), acting)
	h.writeResult(w, r, http.StatusOK, map[string]any{"deleted": true}, err)
}

func (h *Handler) FeatureMetricsHandler(w http.ResponseWriter, r *http.Request) {
	m, err := h.Portal.FeatureMetrics(r.PathValue("dept"), r.PathValue("feature"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ExportRecordsHandler downloads the feature's records as xlsx, newest first.
func (h *Handler) ExportRecordsHandler(w http.ResponseWriter, r *http.Request) {
	deptID, featureID := r.PathValue("dept"), r.PathValue("feature")
	recs, err := h.Portal.Records(deptID, featureID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	feature, _ := h.Portal.Catalog().Feature(deptID, featureID)

	data, err := export.Records(feature, recs)
	if err != nil {
		h.Log.Error("Failed to export records",
			zap.String("department", deptID),
			zap.String("feature", featureID),
			zap.Error(err))
		h.writeError(w, r, apperr.NewInternalError("Failed to export records"))
		return
	}

	filename := fmt.Sprintf("%s-%s-%s.xlsx", deptID, featureID, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
