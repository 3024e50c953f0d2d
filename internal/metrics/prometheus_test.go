package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/devices/{token}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/devices/{token}", "404"))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/devices/abc", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/devices/{token}", "404"))
	assert.Equal(t, before+1, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(renewalsTotal.WithLabelValues("paid"))
	RecordRenewal("paid")
	assert.Equal(t, before+1, testutil.ToFloat64(renewalsTotal.WithLabelValues("paid")))

	beforeWebhook := testutil.ToFloat64(webhookEventsTotal.WithLabelValues("succeeded", "duplicate"))
	RecordWebhook("succeeded", "duplicate")
	assert.Equal(t, beforeWebhook+1, testutil.ToFloat64(webhookEventsTotal.WithLabelValues("succeeded", "duplicate")))

	beforeExpired := testutil.ToFloat64(expiredTotal)
	RecordExpired(3)
	assert.Equal(t, beforeExpired+3, testutil.ToFloat64(expiredTotal))
}

func TestHandler_Exposes(t *testing.T) {
	RecordDeviceRegistration("added")

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "vpn_device_registrations_total"))
}
