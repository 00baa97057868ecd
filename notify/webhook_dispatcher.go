package notify

import (
	"context"
	"docflow/common"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type webhookPayload struct {
	Recipient string  `json:"recipient"`
	Kind      Kind    `json:"kind"`
	Message   Message `json:"message"`
}

// WebhookDispatcher posts notifications as JSON to a mail relay endpoint.
type WebhookDispatcher struct {
	URL     string
	Headers http.Header
	Limiter *rate.Limiter
}

// NewWebhookDispatcher limits delivery to ratePerSecond requests with the given burst.
func NewWebhookDispatcher(url string, ratePerSecond float64, burst int) *WebhookDispatcher {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &WebhookDispatcher{URL: url, Limiter: rate.NewLimiter(limit, burst)}
}

func (d *WebhookDispatcher) Notify(ctx context.Context, recipient string, kind Kind, msg Message) {
	if d.URL == "" || recipient == "" {
		return
	}
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			logrus.Warnf("notification %s to %s dropped: %v", kind, recipient, err)
			return
		}
	}
	body, err := json.Marshal(&webhookPayload{Recipient: recipient, Kind: kind, Message: msg})
	if err != nil {
		logrus.Errorf("notification %s to %s not encoded: %v", kind, recipient, err)
		return
	}
	if _, err := common.HttpInvokeJson(ctx, http.MethodPost, d.URL, d.Headers, string(body)); err != nil {
		logrus.Warnf("notification %s to %s failed: %v", kind, recipient, err)
	}
}
