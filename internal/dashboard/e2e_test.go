package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/rhmaster-billing/internal/client"
	"github.com/magabrotheeeer/rhmaster-billing/internal/lifecycle"
)

// fakeBackend минимальный сервер подписок для сценариев страницы.
type fakeBackend struct {
	mu           sync.Mutex
	subscription string
	currentCalls int
	cancelBodies []map[string]any
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/api/subscription/current-subscription":
		b.currentCalls++
		if b.subscription == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"subscription not found"}`)
			return
		}
		_, _ = io.WriteString(w, b.subscription)
	case "/api/subscription/invoices":
		_, _ = io.WriteString(w, `[{"id":"in_1","status":"paid","amountDue":7900,"amountPaid":7900,"currency":"usd","created":"2026-03-01T00:00:00Z"}]`)
	case "/api/subscription/cancel-subscription":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.cancelBodies = append(b.cancelBodies, body)
		b.subscription = `{"id":1,"plan":"pro","status":"active","maxClients":50,"clientCount":5,
			"startDate":"2026-03-01T00:00:00Z","currentPeriodEnd":"2026-04-01T00:00:00Z",
			"autoRenew":false,"cancelAtPeriodEnd":true}`
		_, _ = io.WriteString(w, `{"message":"Subscription will be canceled at the end of the billing period"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

func startBackend(t *testing.T, b *fakeBackend) *client.Client {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return client.New(srv.URL, "token-1", time.Second)
}

func TestScenario_CancelAtPeriodEnd(t *testing.T) {
	backend := &fakeBackend{subscription: `{"id":1,"plan":"pro","status":"active","maxClients":50,"clientCount":5,
		"startDate":"2026-03-01T00:00:00Z","currentPeriodEnd":"2026-04-01T00:00:00Z",
		"autoRenew":true,"cancelAtPeriodEnd":false}`}
	api := startBackend(t, backend)
	notify := &recorder{}
	reader := NewReader(api, notify, newNoopLogger())
	controller := NewController(api, reader, notify, newNoopLogger())

	require.NoError(t, reader.Load(context.Background()))
	v := reader.View()
	assert.Equal(t, lifecycle.Active, v.State)
	assert.Equal(t, lifecycle.BadgeActive, v.Badge)
	assert.Len(t, v.Invoices, 1)

	controller.OpenCancelDialog()
	require.NoError(t, controller.Cancel(context.Background(), "too expensive", false))

	v = reader.View()
	assert.Equal(t, lifecycle.CancelScheduled, v.State)
	assert.Equal(t, lifecycle.BadgeCancelScheduled, v.Badge)
	assert.Equal(t, []Action{ActionReactivate}, v.Actions)
	assert.False(t, controller.DialogOpen())
	assert.Equal(t, []toast{{"success", "Subscription will be canceled at the end of the billing period"}}, notify.all())

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 2, backend.currentCalls, "one initial load and exactly one refetch")
	require.Len(t, backend.cancelBodies, 1)
	assert.Equal(t, map[string]any{"reason": "too expensive", "cancelImmediate": false}, backend.cancelBodies[0])
}

func TestScenario_NoSubscriptionUpsell(t *testing.T) {
	backend := &fakeBackend{}
	api := startBackend(t, backend)
	notify := &recorder{}
	reader := NewReader(api, notify, newNoopLogger())

	require.NoError(t, reader.Load(context.Background()))

	v := reader.View()
	assert.Equal(t, lifecycle.NoSubscription, v.State)
	assert.Nil(t, v.Subscription)
	assert.Empty(t, v.Badge)
	assert.False(t, v.ShowUsage)
	assert.False(t, v.ShowTrial)
	assert.Equal(t, []Action{ActionChoosePlan}, v.Actions)
	assert.Empty(t, notify.all())
}
