package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SnapshotWritten("alerts", nil)
		m.RecordCreated("purchasing", "new-purchase")
		m.AlertCreated("purchasing")
		m.ResponsesAdded(1)
		m.StatusChanged("completed")
		m.AttachmentStored(10)
		m.PushDelivered(errors.New("gone"))
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Instrument("GET /x", next))
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	m := New()
	h := m.Instrument("GET /api/alerts/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	for _, id := range []string{"a", "b"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/alerts/"+id, nil))
	}

	expected := `
# HELP portal_http_requests_total HTTP requests by route pattern and status code.
# TYPE portal_http_requests_total counter
portal_http_requests_total{code="404",route="GET /api/alerts/{id}"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "portal_http_requests_total"))
}

func TestSnapshotWritesByResult(t *testing.T) {
	m := New()
	m.SnapshotWritten("portal-akron-alerts", nil)
	m.SnapshotWritten("portal-akron-alerts", errors.New("down"))
	m.SnapshotWritten("portal-akron-alerts", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.snapshotWrites.WithLabelValues("portal-akron-alerts", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.snapshotWrites.WithLabelValues("portal-akron-alerts", "error")))
}
