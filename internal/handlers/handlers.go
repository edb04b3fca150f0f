package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"workflow-portal-go/internal/apperr"
	"workflow-portal-go/internal/config"
	"workflow-portal-go/internal/metrics"
	"workflow-portal-go/internal/portal"
	"workflow-portal-go/internal/push"
)

// maxJSONBody caps request bodies outside the upload route.
const maxJSONBody = 1 << 20

type Handler struct {
	Portal   *portal.Service
	Push     *push.Notifier
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	sessions sessions.Store
}

func NewHandler(p *portal.Service, n *push.Notifier, m *metrics.Metrics, log *zap.Logger, cfg config.SessionConfig) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Portal:   p,
		Push:     n,
		Metrics:  m,
		Log:      log,
		sessions: newSessionStore(cfg),
	}
}

// Routes registers every endpoint on a fresh mux. Each route is
// instrumented under its pattern.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /healthz", h.HealthHandler},

		{"GET /api/session", h.GetSessionHandler},
		{"POST /api/session", h.SelectDepartmentHandler},

		{"GET /api/departments", h.DepartmentsHandler},
		{"GET /api/departments/{dept}", h.DepartmentHandler},
		{"GET /api/departments/{dept}/metrics", h.DepartmentMetricsHandler},

		{"POST /api/departments/{dept}/features/{feature}/records", h.SubmitRecordHandler},
		{"GET /api/departments/{dept}/features/{feature}/records", h.RecordsHandler},
		{"DELETE /api/departments/{dept}/features/{feature}/records/{id}", h.DeleteRecordHandler},
		{"GET /api/departments/{dept}/features/{feature}/metrics", h.FeatureMetricsHandler},
		{"GET /api/departments/{dept}/features/{feature}/export", h.ExportRecordsHandler},

		{"GET /api/departments/{dept}/alerts", h.AlertsHandler},
		{"GET /api/departments/{dept}/alerts/pending-count", h.PendingCountHandler},
		{"GET /api/departments/{dept}/alerts/metrics", h.AlertMetricsHandler},
		{"GET /api/alerts/{id}", h.AlertHandler},
		{"POST /api/alerts/{id}/responses", h.RespondHandler},
		{"PUT /api/alerts/{id}/status", h.SetStatusHandler},
		{"DELETE /api/alerts/{id}", h.DeleteAlertHandler},

		{"POST /api/attachments", h.UploadHandler},
		{"GET /api/attachments/{digest}", h.DownloadHandler},
		{"DELETE /api/attachments/{digest}", h.DiscardUploadHandler},

		{"GET /api/push/vapid-key", h.GetVAPIDKeyHandler},
		{"POST /api/push/subscribe", h.SubscribePushHandler},
		{"DELETE /api/push/subscribe", h.UnsubscribePushHandler},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, h.Metrics.Instrument(rt.pattern, rt.handler))
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics.Handler())
	}
	return mux
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError answers with the AppError's status and a {"error": {...}} body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.Wrap(err)
	if appErr.Code >= http.StatusInternalServerError {
		h.Log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	} else {
		h.Log.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.String("type", string(appErr.Type)),
			zap.String("message", appErr.Message))
	}
	writeJSON(w, appErr.Code, map[string]any{"error": appErr})
}

// writeResult answers a mutation. A persistence failure still reports
// success, flagged with persisted=false and a warning.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, status int, body map[string]any, err error) {
	if err != nil && !apperr.IsPersistence(err) {
		h.writeError(w, r, err)
		return
	}
	body["persisted"] = err == nil
	if err != nil {
		body["warning"] = "A alteração foi aplicada mas não pôde ser salva. Ela será perdida se o servidor reiniciar."
		h.Log.Warn("Responding without persistence", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.NewValidationError("Invalid request", "empty body")
		}
		return apperr.NewValidationError("Invalid request", err.Error())
	}
	return nil
}
