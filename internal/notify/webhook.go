package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"umbrella/internal/config"
	"umbrella/internal/external"
	"umbrella/internal/types"
)

// Webhook event names.
const (
	eventPrecipitation   = "precipitation"
	eventFailure         = "failure"
	eventFailureResolved = "failure_resolved"
)

// webhookEvent is the envelope posted to the gateway.
type webhookEvent struct {
	Event         string               `json:"event"`
	SentAt        time.Time            `json:"sent_at"`
	Precipitation *PrecipitationNotice `json:"precipitation,omitempty"`
	Failure       *FailureNotice       `json:"failure,omitempty"`
}

// WebhookNotifier posts notification events to an external push gateway.
// Delivery goes through the shared BaseClient, with a breaker independent
// from the forecast client's so a dead gateway never blocks fetches.
type WebhookNotifier struct {
	base      *external.BaseClient
	url       string
	authToken types.SecretString
	clock     types.Clock
}

// NewWebhookNotifier creates a WebhookNotifier from the notify
// configuration.
func NewWebhookNotifier(cfg config.NotifyConfig, clock types.Clock, userAgent string, opts ...external.BaseClientOption) *WebhookNotifier {
	base := external.NewBaseClient(
		&http.Client{Timeout: cfg.Timeout},
		"notify-webhook",
		external.DefaultRetryPolicy(),
		userAgent,
		opts...,
	)
	return &WebhookNotifier{
		base:      base,
		url:       cfg.WebhookURL,
		authToken: cfg.AuthToken,
		clock:     clock,
	}
}

func (n *WebhookNotifier) ShowPrecipitation(ctx context.Context, notice PrecipitationNotice) error {
	return n.post(ctx, webhookEvent{Event: eventPrecipitation, Precipitation: &notice})
}

func (n *WebhookNotifier) ShowFailure(ctx context.Context, notice FailureNotice) error {
	return n.post(ctx, webhookEvent{Event: eventFailure, Failure: &notice})
}

func (n *WebhookNotifier) ClearFailure(ctx context.Context) error {
	return n.post(ctx, webhookEvent{Event: eventFailureResolved})
}

func (n *WebhookNotifier) post(ctx context.Context, event webhookEvent) error {
	event.SentAt = n.clock.Now()

	body, err := json.Marshal(event)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode webhook event", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build webhook request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := n.authToken.Unmask(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return types.NewAppError(types.ErrCodeUpstreamWebhook,
			fmt.Sprintf("webhook gateway returned %d", resp.StatusCode), nil)
	}
	return nil
}
