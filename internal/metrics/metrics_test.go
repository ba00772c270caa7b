package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	m := New()

	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/admin/applications/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/applications/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/admin/applications/{id}", "404")))
}

func TestDomainCounters(t *testing.T) {
	m := New()
	m.Submission("accepted")
	m.Transition("pending", "approved")
	m.Transition("pending", "approved")
	m.Notification("failed")
	m.OutboxPending(3)
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("pending", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.outboxPending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.liveSubscribers))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Submission("accepted")
		m.Transition("pending", "rejected")
		m.Notification("sent")
		m.OutboxPending(1)
		m.StreamOpened()
		m.StreamClosed()
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Submission("rejected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "lead_intake_applications_submissions_total"))
}
