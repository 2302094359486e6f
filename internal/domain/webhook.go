package domain

import "time"

// Webhook event types emitted on terminal payment transitions.
const (
	EventPaymentVerified = "payment.verified"
	EventPaymentFailed   = "payment.failed"
	EventPaymentExpired  = "payment.expired"
)

// IsPaymentEventType reports whether s names an emitted event type.
func IsPaymentEventType(s string) bool {
	switch s {
	case EventPaymentVerified, EventPaymentFailed, EventPaymentExpired:
		return true
	}
	return false
}

// WebhookSubscription is a merchant-registered endpoint that receives
// signed payment lifecycle events.
type WebhookSubscription struct {
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	MerchantID string    `json:"merchant_id"`
	URL        string    `json:"url"`
	Secret     string    `json:"-"`
	EventType  string    `json:"event_type"`
	Active     bool      `json:"active"`
}

// WebhookDeliveryStatus tracks a single delivery attempt chain.
type WebhookDeliveryStatus string

const (
	WebhookDeliveryPending WebhookDeliveryStatus = "pending"
	WebhookDeliverySuccess WebhookDeliveryStatus = "success"
	WebhookDeliveryFailed  WebhookDeliveryStatus = "failed"
)

// WebhookDelivery is the audit record for one event sent to one
// subscription, retried with backoff until success or max attempts.
type WebhookDelivery struct {
	CreatedAt      time.Time             `json:"created_at"`
	NextRetryAt    *time.Time            `json:"next_retry_at"`
	DeliveredAt    *time.Time            `json:"delivered_at"`
	ErrorMessage   *string               `json:"error_message"`
	HTTPStatusCode *int                  `json:"http_status_code"`
	ID             string                `json:"id"`
	SubscriptionID string                `json:"subscription_id"`
	EventType      string                `json:"event_type"`
	Payload        []byte                `json:"payload"`
	Status         WebhookDeliveryStatus `json:"status"`
	Attempts       int32                 `json:"attempts"`
}
