package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.CommandDispatched("GO_TO")
	m.CommandDispatched("GO_TO")
	m.CommandsTimedOut(3)
	m.SubscriptionOpened("commands")
	m.SubscriptionOpened("commands")
	m.SubscriptionClosed("commands")
	m.OutboxDelivery("CAMPAIGN", false)
	m.SetOutboxPending("CAMPAIGN", 4)
	m.Pull("online", true)
	m.MeasurementsPulled(5)
	m.APIRequest(http.MethodGet, http.StatusNotFound)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsDispatchedTotal.WithLabelValues("GO_TO")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CommandsTimedOutTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamSubscriptions.WithLabelValues("commands")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxDeliveriesTotal.WithLabelValues("CAMPAIGN", "failure")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.OutboxPending.WithLabelValues("CAMPAIGN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PullsTotal.WithLabelValues("online", "success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.MeasurementsPulledTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues(http.MethodGet, "Not Found")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CommandDispatched("GO_TO")
		m.CommandsTimedOut(1)
		m.SubscriptionOpened("updates")
		m.OutboxDelivery("POSITION", true)
		m.Pull("offline", false)
		m.APIRequest(http.MethodPost, http.StatusCreated)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.CommandDispatched("ABORT_CAMPAIGN")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fleetdispatch_commands_dispatched_total{type="ABORT_CAMPAIGN"} 1`)
}
