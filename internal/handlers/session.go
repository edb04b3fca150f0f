package handlers

import (
	"net/http"

	"github.com/gorilla/sessions"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/config"
)

// The session only remembers which department the browser is acting as.
// It is not authentication.
const (
	sessionName   = "portal-session"
	departmentKey = "department_id"
)

func newSessionStore(cfg config.SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// selectedDepartment returns the department stored in the session, or "".
func (h *Handler) selectedDepartment(r *http.Request) string {
	session, _ := h.sessions.Get(r, sessionName)
	id, _ := session.Values[departmentKey].(string)
	return id
}

func (h *Handler) actingDepartment(r *http.Request) (string, error) {
	id := h.selectedDepartment(r)
	if id == "" {
		return "", apperr.NewValidationError("No department selected", "POST /api/session first")
	}
	return id, nil
}

func (h *Handler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := h.selectedDepartment(r)
	resp := map[string]any{"departmentId": id, "department": nil}
	if dept, ok := h.Portal.Catalog().Department(id); ok {
		resp["department"] = dept
	}
	writeJSON(w, http.StatusOK, resp)
}

// SelectDepartmentHandler stores the acting department. An empty id clears
// the selection.
func (h *Handler) SelectDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DepartmentID string `json:"departmentId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	if req.DepartmentID == "" {
		delete(session.Values, departmentKey)
		session.Options.MaxAge = -1
		if err := session.Save(r, w); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"departmentId": "", "department": nil})
		return
	}

	dept, ok := h.Portal.Catalog().Department(req.DepartmentID)
	if !ok {
		h.writeError(w, r, apperr.NewValidationError("unknown department", req.DepartmentID))
		return
	}
	session.Values[departmentKey] = dept.ID
	if err := session.Save(r, w); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departmentId": dept.ID, "department": dept})
}
