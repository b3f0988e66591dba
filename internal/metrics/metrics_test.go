package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Logins.WithLabelValues(ResultRejected))

	Logins.WithLabelValues(ResultRejected).Inc()

	assert.InDelta(t, before+1, testutil.ToFloat64(Logins.WithLabelValues(ResultRejected)), 0.001)
}

func TestHandlerExposesCounters(t *testing.T) {
	TicketsSold.Add(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tiketi_tickets_sold_total")
}
