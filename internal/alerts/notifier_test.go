package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olv-group/prospect-intel/internal/resilience"
)

func testNotification() Notification {
	return Notification{
		Rule:       RuleHighPropensity,
		Severity:   SeverityHigh,
		CompanyID:  "c-1",
		AnalysisID: "a-1",
		CNPJ:       "11222333000181",
		Message:    "Empresa 11.222.333/0001-81 com Alta: score 90 (limite 80)",
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func captureServer(t *testing.T, status int) (*httptest.Server, <-chan []byte) {
	t.Helper()
	bodies := make(chan []byte, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies <- b
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, bodies
}

func TestWebhookNotifier(t *testing.T) {
	t.Parallel()

	srv, bodies := captureServer(t, http.StatusOK)
	w := NewWebhookNotifier(srv.URL)
	assert.Equal(t, ChannelWebhook, w.Name())

	require.NoError(t, w.Notify(context.Background(), testNotification()))

	var got Notification
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	assert.Equal(t, RuleHighPropensity, got.Rule)
	assert.Equal(t, "a-1", got.AnalysisID)
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	t.Parallel()

	srv, _ := captureServer(t, http.StatusBadGateway)
	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestWebhookNotifier_ClientError(t *testing.T) {
	t.Parallel()

	srv, _ := captureServer(t, http.StatusBadRequest)
	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), testNotification())
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestSlackNotifier(t *testing.T) {
	t.Parallel()

	srv, bodies := captureServer(t, http.StatusOK)
	s := NewSlackNotifier(srv.URL, "#vendas")
	assert.Equal(t, ChannelSlack, s.Name())

	require.NoError(t, s.Notify(context.Background(), testNotification()))

	var msg slackMessage
	require.NoError(t, json.Unmarshal(<-bodies, &msg))
	assert.Equal(t, "#vendas", msg.Channel)
	assert.Equal(t, testNotification().Message, msg.Text)
	require.Len(t, msg.Blocks, 3)
	assert.Equal(t, "divider", msg.Blocks[1].Type)
	require.Len(t, msg.Blocks[2].Fields, 4)
	assert.Equal(t, "*Fornecedor:*\n-", msg.Blocks[2].Fields[1].Text)
}

func TestNotifiersFromConfig(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NotifiersFromConfig("", "", ""))

	ns := NotifiersFromConfig("http://hook", "http://slack", "")
	require.Len(t, ns, 2)
	assert.Equal(t, ChannelWebhook, ns[0].Name())
	assert.Equal(t, ChannelSlack, ns[1].Name())
}
