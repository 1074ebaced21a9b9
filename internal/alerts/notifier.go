package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/olv-group/prospect-intel/internal/resilience"
)

// Notifier delivers a notification to one channel. A nil error means delivered.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// Channel names, recorded on alert events.
const (
	ChannelWebhook = "webhook"
	ChannelSlack   = "slack"
)

const notifyTimeout = 10 * time.Second

// WebhookNotifier POSTs the notification as JSON.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		client:  &http.Client{Timeout: notifyTimeout},
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig(ChannelWebhook)),
	}
}

func (w *WebhookNotifier) Name() string { return ChannelWebhook }

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	return w.breaker.Execute(ctx, func(ctx context.Context) error {
		return postJSON(ctx, w.client, w.url, ChannelWebhook, n)
	})
}

// SlackNotifier posts to a Slack incoming webhook using Block Kit.
type SlackNotifier struct {
	url     string
	channel string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewSlackNotifier creates a notifier for the incoming webhook url. channel
// overrides the webhook's default channel when set.
func NewSlackNotifier(url, channel string) *SlackNotifier {
	return &SlackNotifier{
		url:     url,
		channel: channel,
		client:  &http.Client{Timeout: notifyTimeout},
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig(ChannelSlack)),
	}
}

func (s *SlackNotifier) Name() string { return ChannelSlack }

func (s *SlackNotifier) Notify(ctx context.Context, n Notification) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return postJSON(ctx, s.client, s.url, ChannelSlack, slackPayload(s.channel, n))
	})
}

type slackMessage struct {
	Channel string       `json:"channel,omitempty"`
	Text    string       `json:"text"`
	Blocks  []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func slackPayload(channel string, n Notification) slackMessage {
	vendor := n.Vendor
	if vendor == "" {
		vendor = "-"
	}
	return slackMessage{
		Channel: channel,
		Text:    n.Message,
		Blocks: []slackBlock{
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("*%s*\n%s", n.Rule, n.Message)}},
			{Type: "divider"},
			{Type: "section", Fields: []slackText{
				{Type: "mrkdwn", Text: "*Severidade:*\n" + n.Severity},
				{Type: "mrkdwn", Text: "*Fornecedor:*\n" + vendor},
				{Type: "mrkdwn", Text: "*Análise:*\n" + n.AnalysisID},
				{Type: "mrkdwn", Text: "*Gerado em:*\n" + n.Timestamp.UTC().Format("2006-01-02 15:04 UTC")},
			}},
		},
	}
}

func postJSON(ctx context.Context, client *http.Client, url, target string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrapf(err, "alerts: marshal %s payload", target)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrapf(err, "alerts: create %s request", target)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrapf(err, "alerts: %s request", target)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	return resilience.CheckStatus(target, resp.StatusCode)
}

// NotifiersFromConfig builds a notifier for every configured channel.
func NotifiersFromConfig(webhookURL, slackURL, slackChannel string) []Notifier {
	var out []Notifier
	if webhookURL != "" {
		out = append(out, NewWebhookNotifier(webhookURL))
	}
	if slackURL != "" {
		out = append(out, NewSlackNotifier(slackURL, slackChannel))
	}
	return out
}
