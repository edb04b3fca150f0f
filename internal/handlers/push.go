package handlers

import (
	"net/http"

	"workflow-portal-go/internal/apperr"
)

// GetVAPIDKeyHandler returns the public VAPID key
func (h *Handler) GetVAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"publicKey": h.Push.PublicKey(),
	})
}

// SubscribePushHandler saves a push subscription for the selected department
func (h *Handler) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	dept, err := h.actingDepartment(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sub, err := h.Push.Subscribe(r.Context(), dept, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	h.writeResult(w, r, http.StatusCreated, map[string]any{"subscription": sub}, err)
}

func (h *Handler) UnsubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Endpoint == "" {
		h.writeError(w, r, apperr.NewValidationError("endpoint is required"))
		return
	}
	err := h.Push.Unsubscribe(r.Context(), req.Endpoint)
	h.writeResult(w, r, http.StatusOK, map[string]any{"deleted": true}, err)
}
