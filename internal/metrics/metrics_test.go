package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("cancel", nil)
	m.ObserveOperation("cancel", errors.New("boom"))
	m.ObserveOperation("cancel", nil)

	body := scrape(t, m)
	assert.Contains(t, body, `rhmaster_billing_subscription_operations_total{operation="cancel",result="ok"} 2`)
	assert.Contains(t, body, `rhmaster_billing_subscription_operations_total{operation="cancel",result="error"} 1`)
}

func TestObserveWebhookAndPublished(t *testing.T) {
	m := New()
	m.ObserveWebhook("invoice.paid", nil)
	m.ObservePublished("trial.ending")

	body := scrape(t, m)
	assert.Contains(t, body, `rhmaster_billing_webhook_events_total{result="ok",type="invoice.paid"} 1`)
	assert.Contains(t, body, `rhmaster_billing_lifecycle_events_published_total{type="trial.ending"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("x", nil)
		m.ObserveWebhook("invoice.paid", nil)
		m.ObservePublished("trial.ending")
	})
}
