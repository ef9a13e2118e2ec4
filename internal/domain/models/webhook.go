package models

import "time"

// WebhookSubscriber is an outbound endpoint that receives signal events.
type WebhookSubscriber struct {
	ID                  string     `json:"id"`
	URL                 string     `json:"url"`
	Secret              string     `json:"secret,omitempty"`
	Categories          []Category `json:"categories,omitempty"` // empty means all
	Active              bool       `json:"active"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	DisabledAt          *time.Time `json:"disabled_at,omitempty"`
}

// Wants reports whether the subscriber listens to category c.
func (s WebhookSubscriber) Wants(c Category) bool {
	if len(s.Categories) == 0 {
		return true
	}
	for _, x := range s.Categories {
		if x == c {
			return true
		}
	}
	return false
}

// WebhookEnvelope is the JSON body posted to subscribers.
type WebhookEnvelope struct {
	Version   string    `json:"version"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// DeliveryResult is the outcome of one webhook POST.
type DeliveryResult struct {
	SubscriberID string        `json:"subscriber_id"`
	StatusCode   int           `json:"status_code,omitempty"`
	Success      bool          `json:"success"`
	Disabled     bool          `json:"disabled,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}
