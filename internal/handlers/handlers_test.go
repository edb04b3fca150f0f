package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"workflow-portal-go/internal/blob"
	"workflow-portal-go/internal/blob/memory"
	"workflow-portal-go/internal/catalog"
	"workflow-portal-go/internal/config"
	"workflow-portal-go/internal/export"
	"workflow-portal-go/internal/metrics"
	"workflow-portal-go/internal/portal"
	"workflow-portal-go/internal/push"
	"workflow-portal-go/internal/store"
)

type failingMedium struct{ *store.MemoryMedium }

func (failingMedium) Save(context.Context, string, []byte) error { return io.ErrShortWrite }

func newServer(t *testing.T, medium store.Medium) *httptest.Server {
	t.Helper()
	cat, err := catalog.Load("")
	require.NoError(t, err)

	m := metrics.New()
	names := store.NamesFor("portal-akron")
	alerts := store.NewAlertStore(medium, names.Alerts, store.WithMetrics(m))
	records := store.NewRecordStore(medium, names.Records, store.WithMetrics(m), store.WithValidator(cat))
	subs := store.NewPushStore(medium, names.Push)

	notifier, err := push.New(config.PushConfig{}, subs, push.WithMetrics(m))
	require.NoError(t, err)
	svc := portal.New(cat, alerts, records, blob.New(memory.New(), blob.WithMetrics(m)), portal.WithNotifier(notifier))

	h := NewHandler(svc, notifier, m, nil, config.SessionConfig{Secret: "test-secret-0123456789abcdef0123"})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

// browser is a client with its own cookie jar, so it keeps its own
// department selection.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: srv.URL, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (b *browser) do(method, path string, body any) (*http.Response, map[string]any) {
	b.t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(b.t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, b.base+path, rd)
	require.NoError(b.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return b.send(req)
}

func (b *browser) send(req *http.Request) (*http.Response, map[string]any) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(b.t, json.Unmarshal(raw, &out))
	} else {
		out = map[string]any{"raw": string(raw)}
	}
	return resp, out
}

func (b *browser) selectDepartment(id string) {
	b.t.Helper()
	resp, _ := b.do(http.MethodPost, "/api/session", map[string]string{"departmentId": id})
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
}

func (b *browser) upload(name, content string) map[string]any {
	b.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(b.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(b.t, err)
	require.NoError(b.t, mw.WriteField("lastModified", "1715342400000"))
	require.NoError(b.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, b.base+"/api/attachments", &buf)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, body := b.send(req)
	require.Equal(b.t, http.StatusCreated, resp.StatusCode, body)
	files := body["files"].([]any)
	require.Len(b.t, files, 1)
	return files[0].(map[string]any)
}

func purchaseBody(files ...map[string]any) map[string]any {
	body := map[string]any{
		"priority":    "high",
		"responsible": "M. Costa",
		"description": "Compra de aço",
		"fields": map[string]any{
			"material": "Aço",
			"quantity": 10,
			"supplier": "Fornecedor A",
			"deadline": "2024-06-01",
		},
		"notifyDepartments": []string{"pcp"},
	}
	if len(files) > 0 {
		body["files"] = files
	}
	return body
}

func errorType(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e["type"].(string)
	return s
}

func TestDepartmentsAndSession(t *testing.T) {
	srv := newServer(t, store.NewMemoryMedium())
	b := newBrowser(t, srv)

	resp, body := b.do(http.MethodGet, "/api/departments", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 10, body["count"])

	resp, body = b.do(http.MethodGet, "/api/departments/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorType(body))

	_, body = b.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, "", body["departmentId"])

	b.selectDepartment("purchasing")
	_, body = b.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, "purchasing", body["departmentId"])
	assert.NotNil(t, body["department"])

	resp, body = b.do(http.MethodPost, "/api/session", map[string]string{"departmentId": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", errorType(body))

	b.selectDepartment("")
	_, body = b.do(http.MethodGet, "/api/session", nil)
	assert.Equal(t, "", body["departmentId"])
}

func TestSubmitRespondAndComplete(t *testing.T) {
	srv := newServer(t, store.NewMemoryMedium())
	sender := newBrowser(t, srv)
	sender.selectDepartment("purchasing")
	recipient := newBrowser(t, srv)
	recipient.selectDepartment("pcp")

	file := sender.upload("pedido.pdf", "%PDF-1.4 pedido")
	digest := file["digest"].(string)
	assert.Equal(t, "/api/attachments/"+digest, file["url"])

	resp, body := sender.do(http.MethodPost, "/api/departments/purchasing/features/new-purchase/records", purchaseBody(file))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, true, body["persisted"])
	alert := body["alert"].(map[string]any)
	alertID := alert["id"].(string)
	assert.Equal(t, "pending", alert["status"])

	_, body = recipient.do(http.MethodGet, "/api/departments/pcp/alerts/pending-count", nil)
	assert.EqualValues(t, 1, body["count"])

	resp, _ = newBrowser(t, srv).do(http.MethodGet, "/api/alerts/"+alertID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	marketing := newBrowser(t, srv)
	marketing.selectDepartment("marketing")
	resp, body = marketing.do(http.MethodGet, "/api/alerts/"+alertID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errorType(body))

	resp, body = recipient.do(http.MethodPost, "/api/alerts/"+alertID+"/responses", map[string]any{
		"message":     "Programado para a semana 23",
		"responsible": "J. Silva",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "in_progress", body["alert"].(map[string]any)["status"])
	assert.Equal(t, "notifications", body["record"].(map[string]any)["featureId"])

	resp, _ = recipient.do(http.MethodPut, "/api/alerts/"+alertID+"/status", map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = sender.do(http.MethodPut, "/api/alerts/"+alertID+"/status", map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "completed", body["alert"].(map[string]any)["status"])

	resp, body = recipient.do(http.MethodPost, "/api/alerts/"+alertID+"/responses", map[string]any{
		"message":     "tarde demais",
		"responsible": "J. Silva",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", errorType(body))

	resp, body = sender.do(http.MethodGet, file["url"].(string)+"?name=pedido.pdf", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "%PDF-1.4 pedido", body["raw"])
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "pedido.pdf")

	resp, _ = sender.do(http.MethodDelete, "/api/alerts/"+alertID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = sender.do(http.MethodGet, "/api/alerts/"+alertID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// the record still holds the attachment
	resp, _ = sender.do(http.MethodGet, file["url"].(string), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmitValidation(t *testing.T) {
	srv := newServer(t, store.NewMemoryMedium())
	b := newBrowser(t, srv)

	body := purchaseBody()
	body["fields"].(map[string]any)["quantity"] = "dez"
	resp, out := b.do(http.MethodPost, "/api/departments/purchasing/features/new-purchase/records", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "schema_mismatch", errorType(out))

	resp, out = b.do(http.MethodPost, "/api/departments/purchasing/features/nope/records", purchaseBody())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", errorType(out))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/departments/purchasing/features/new-purchase/records", strings.NewReader("{"))
	require.NoError(t, err)
	resp, out = b.send(req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", errorType(out))
}

func TestPersistenceFailureIsReported(t *testing.T) {
	srv := newServer(t, failingMedium{store.NewMemoryMedium()})
	b := newBrowser(t, srv)

	resp, body := b.do(http.MethodPost, "/api/departments/purchasing/features/new-purchase/records", purchaseBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, false, body["persisted"])
	assert.NotEmpty(t, body["warning"])

	_, body = b.do(http.MethodGet, "/api/departments/purchasing/features/new-purchase/records", nil)
	assert.EqualValues(t, 1, body["count"])
}

func TestRecordsDeleteAndMetrics(t *testing.T) {
	srv := newServer(t, store.NewMemoryMedium())
	b := newBrowser(t, srv)

	body := purchaseBody()
	delete(body, "notifyDepartments")
	resp, out := b.do(http.MethodPost, "/api/departments/purchasing/features/new-purchase/records", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	assert.Nil(t, out["alert"])
	id := out["record"].(map[string]any)["id"].(string)

	_, out = b.do(http.MethodGet, "/api/departments/purchasing/features/new-purchase/metrics", nil)
	assert.EqualValues(t, 1, out["total"])

	_, out = b.do(http.MethodGet, "/api/departments/purchasing/metrics", nil)
	features := out["features"].(map[string]any)
	assert.Contains(t, features, "new-purchase")
	assert.Contains(t, features, "notifications")

	path := "/api/departments/purchasing/features/new-purchase/records/" + id
	resp, _ = b.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b.selectDepartment("pcp")
	resp, _ = b.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	b.selectDepartment("purchasing")
	resp, _ = b.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = b.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportRecords(t *testing.T) {
	srv := newServer(t, store.NewMemoryMedium())
	b := newBrowser(t, srv)
	for range 2 {
		resp, out := b.do(http.MethodPost, "/api/departments/purchasing/features/new-purchase/records", purchaseBody())
		require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	}

	resp, err := b.client.Get(srv.URL + "/api/departments/purchasing/features/new-purchase/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "purchasing-new-purchase-")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestAttachmentUploadAndDiscard(t *testing.T) {
	srv := newServer(t, store.NewMemoryMedium())
	b := newBrowser(t, srv)

	file := b.upload("foto.jpg", "jpeg bytes")
	url := file["url"].(string)

	resp, _ := b.do(http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = b.do(http.MethodGet, url, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = b.do(http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/attachments", strings.NewReader("not multipart"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	resp, _ = b.send(req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPushEndpoints(t *testing.T) {
	srv := newServer(t, store.NewMemoryMedium())
	b := newBrowser(t, srv)

	_, body := b.do(http.MethodGet, "/api/push/vapid-key", nil)
	assert.NotEmpty(t, body["publicKey"])

	sub := map[string]any{
		"endpoint": "https://push.example.com/abc",
		"keys":     map[string]string{"p256dh": "key", "auth": "secret"},
	}
	resp, _ := b.do(http.MethodPost, "/api/push/subscribe", sub)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b.selectDepartment("warehouse")
	resp, body = b.do(http.MethodPost, "/api/push/subscribe", sub)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "warehouse", body["subscription"].(map[string]any)["departmentId"])

	resp, _ = b.do(http.MethodDelete, "/api/push/subscribe", map[string]string{"endpoint": "https://push.example.com/abc"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer(t, store.NewMemoryMedium())
	b := newBrowser(t, srv)

	resp, body := b.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, body = b.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["raw"], `portal_http_requests_total{code="200",route="GET /healthz"} 1`)
}
