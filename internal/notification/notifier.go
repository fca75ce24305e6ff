package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookNotifier forwards events to an internal dispatch endpoint, the feed
// for in-app notifications.
type WebhookNotifier struct {
	http *resty.Client
}

func NewWebhookNotifier(dispatchURL string, timeout time.Duration) *WebhookNotifier {
	client := resty.New().
		SetBaseURL(dispatchURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &WebhookNotifier{http: client}
}

func (n *WebhookNotifier) Notify(ctx context.Context, userID int64, kind string, payload map[string]interface{}) error {
	body := map[string]interface{}{
		"user_id": userID,
		"kind":    kind,
		"payload": payload,
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/dispatch")
	if err != nil {
		return fmt.Errorf("notification dispatch: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notification dispatch returned %d", resp.StatusCode())
	}
	return nil
}
