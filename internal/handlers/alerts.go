package handlers

import (
	"net/http"

	"workflow-portal-go/internal/models"
	"workflow-portal-go/internal/portal"
)

func (h *Handler) AlertsHandler(w http.ResponseWriter, r *http.Request) {
	alerts := h.Portal.Alerts(r.PathValue("dept"))
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (h *Handler) PendingCountHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"count": h.Portal.PendingCount(r.PathValue("dept"))})
}

func (h *Handler) AlertMetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Portal.AlertMetrics(r.PathValue("dept")))
}

// AlertHandler returns one alert to a department that sent or received it.
func (h *Handler) AlertHandler(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.actingDepartment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	alert, err := h.Portal.Alert(r.PathValue("id"), viewer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) RespondHandler(w http.ResponseWriter, r *http.Request) {
	acting, err := h.actingDepartment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in portal.RespondInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.AlertID = r.PathValue("id")
	in.FromDepartment = acting

	res, err := h.Portal.Respond(r.Context(), in)
	h.writeResult(w, r, http.StatusCreated, map[string]any{
		"alert":    res.Alert,
		"response": res.Response,
		"record":   res.Record,
	}, err)
}

func (h *Handler) SetStatusHandler(w http.ResponseWriter, r *http.Request) {
	acting, err := h.actingDepartment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Status models.Status `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	alert, err := h.Portal.SetStatus(r.Context(), r.PathValue("id"), acting, req.Status)
	h.writeResult(w, r, http.StatusOK, map[string]any{"alert": alert}, err)
}

func (h *Handler) DeleteAlertHandler(w http.ResponseWriter, r *http.Request) {
	acting, err := h.actingDepartment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	err = h.Portal.DeleteAlert(r.Context(), r.PathValue("id"), acting)
	h.writeResult(w, r, http.StatusOK, map[string]any{"deleted": true}, err)
}
