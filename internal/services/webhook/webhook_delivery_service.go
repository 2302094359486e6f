package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
	"github.com/fetanpay/verification-service/pkg/observability"
	"github.com/fetanpay/verification-service/pkg/resilience"
)

// DeliveryService sends signed payment lifecycle events to merchant
// endpoints and keeps an audit row per delivery attempt chain.
type DeliveryService struct {
	webhooks   ports.WebhookRepository
	httpClient *http.Client
	backoff    resilience.BackoffStrategy
	logger     *zap.Logger
}

// Event is the wire payload POSTed to merchant endpoints
type Event struct {
	EventType  string                 `json:"event_type"`
	MerchantID string                 `json:"merchant_id"`
	Data       map[string]interface{} `json:"data"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewDeliveryService creates a new webhook delivery service
func NewDeliveryService(webhooks ports.WebhookRepository, httpClient *http.Client, logger *zap.Logger) *DeliveryService {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}

	return &DeliveryService{
		webhooks:   webhooks,
		httpClient: httpClient,
		backoff:    resilience.WebhookBackoff(),
		logger:     logger,
	}
}

// PublishPaymentEvent builds and delivers the event for a terminal
// payment transition. Delivery failures never propagate back into the
// payment flow; the retry loop picks them up.
func (s *DeliveryService) PublishPaymentEvent(ctx context.Context, eventType string, payment *domain.Payment) {
	event := &Event{
		EventType:  eventType,
		MerchantID: payment.MerchantID,
		Timestamp:  time.Now().UTC(),
		Data: map[string]interface{}{
			"payment_id":     payment.ID,
			"status":         string(payment.Status),
			"provider":       string(payment.Provider),
			"claimed_amount": payment.ClaimedAmount.String(),
			"tip_amount":     payment.TipAmount.String(),
			"currency":       payment.Currency,
			"receipt_url":    payment.ReceiptURL(),
			"verified_by":    payment.GetVerifiedBy(),
		},
	}

	if err := s.DeliverEvent(ctx, event); err != nil {
		s.logger.Error("Webhook event delivery failed",
			zap.Error(err),
			zap.String("event_type", eventType),
			zap.String("payment_id", payment.ID),
		)
	}
}

// DeliverEvent delivers a webhook event to all subscribed endpoints
func (s *DeliveryService) DeliverEvent(ctx context.Context, event *Event) error {
	s.logger.Info("Delivering webhook event",
		zap.String("event_type", event.EventType),
		zap.String("merchant_id", event.MerchantID),
	)

	subscriptions, err := s.webhooks.ListActiveByMerchantAndEvent(ctx, nil, event.MerchantID, event.EventType)
	if err != nil {
		s.logger.Error("Failed to fetch webhook subscriptions",
			zap.Error(err),
			zap.String("merchant_id", event.MerchantID),
			zap.String("event_type", event.EventType),
		)
		return fmt.Errorf("fetch webhook subscriptions: %w", err)
	}

	if len(subscriptions) == 0 {
		s.logger.Debug("No active webhook subscriptions found",
			zap.String("merchant_id", event.MerchantID),
			zap.String("event_type", event.EventType),
		)
		return nil
	}

	for _, subscription := range subscriptions {
		if err := s.deliverToSubscription(ctx, subscription, event); err != nil {
			s.logger.Error("Failed to deliver webhook",
				zap.Error(err),
				zap.String("subscription_id", subscription.ID),
				zap.String("webhook_url", subscription.URL),
			)
			// Continue to next subscription even if one fails
			continue
		}
	}

	return nil
}

// deliveryResult is the transport outcome of one webhook POST
type deliveryResult struct {
	statusCode int
	errMsg     string
	ok         bool
}

// post performs one signed POST. Transport only: the audit trail is the
// caller's problem, so first deliveries create a row and retries update
// the existing one.
func (s *DeliveryService) post(
	ctx context.Context,
	subscription *domain.WebhookSubscription,
	eventType string,
	timestamp time.Time,
	payload []byte,
) deliveryResult {
	start := time.Now()
	signature := s.generateSignature(payload, subscription.Secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, subscription.URL, bytes.NewReader(payload))
	if err != nil {
		observability.RecordWebhookDelivery(eventType, "pending", time.Since(start).Seconds())
		return deliveryResult{errMsg: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event-Type", eventType)
	req.Header.Set("X-Webhook-Timestamp", timestamp.Format(time.RFC3339))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		observability.RecordWebhookDelivery(eventType, "pending", time.Since(start).Seconds())
		return deliveryResult{errMsg: fmt.Sprintf("send request: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		observability.RecordWebhookDelivery(eventType, "success", time.Since(start).Seconds())
		return deliveryResult{statusCode: resp.StatusCode, ok: true}
	}

	observability.RecordWebhookDelivery(eventType, "pending", time.Since(start).Seconds())
	return deliveryResult{
		statusCode: resp.StatusCode,
		errMsg:     fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
	}
}

// deliverToSubscription delivers an event to a single webhook
// subscription and records a fresh delivery row for the attempt chain
func (s *DeliveryService) deliverToSubscription(
	ctx context.Context,
	subscription *domain.WebhookSubscription,
	event *Event,
) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	res := s.post(ctx, subscription, event.EventType, event.Timestamp, payload)
	if res.ok {
		return s.recordDeliverySuccess(ctx, subscription.ID, event.EventType, payload, res.statusCode)
	}

	return s.recordDeliveryFailure(ctx, subscription.ID, event.EventType, payload, res.statusCode, res.errMsg)
}

// generateSignature creates HMAC-SHA256 signature of the payload
func (s *DeliveryService) generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// recordDeliverySuccess records a successful webhook delivery
func (s *DeliveryService) recordDeliverySuccess(
	ctx context.Context,
	subscriptionID string,
	eventType string,
	payload []byte,
	httpStatusCode int,
) error {
	now := time.Now()
	delivery := &domain.WebhookDelivery{
		ID:             uuid.New().String(),
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		Payload:        payload,
		Status:         domain.WebhookDeliverySuccess,
		Attempts:       1,
		HTTPStatusCode: &httpStatusCode,
		DeliveredAt:    &now,
		CreatedAt:      now,
	}

	if err := s.webhooks.CreateDelivery(ctx, nil, delivery); err != nil {
		s.logger.Error("Failed to record webhook delivery success",
			zap.Error(err),
			zap.String("subscription_id", subscriptionID),
		)
		return err
	}

	s.logger.Info("Webhook delivered",
		zap.String("subscription_id", subscriptionID),
		zap.String("event_type", eventType),
		zap.Int("http_status", httpStatusCode),
	)

	return nil
}

// recordDeliveryFailure records a failed webhook delivery and schedules
// the first retry
func (s *DeliveryService) recordDeliveryFailure(
	ctx context.Context,
	subscriptionID string,
	eventType string,
	payload []byte,
	httpStatusCode int,
	errorMessage string,
) error {
	now := time.Now()
	nextRetry := now.Add(s.backoff.NextDelay(0))

	delivery := &domain.WebhookDelivery{
		ID:             uuid.New().String(),
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		Payload:        payload,
		Status:         domain.WebhookDeliveryPending, // will be retried
		Attempts:       1,
		ErrorMessage:   &errorMessage,
		NextRetryAt:    &nextRetry,
		CreatedAt:      now,
	}
	if httpStatusCode > 0 {
		delivery.HTTPStatusCode = &httpStatusCode
	}

	if err := s.webhooks.CreateDelivery(ctx, nil, delivery); err != nil {
		s.logger.Error("Failed to record webhook delivery failure",
			zap.Error(err),
			zap.String("subscription_id", subscriptionID),
		)
		return err
	}

	s.logger.Warn("Webhook delivery failed, scheduled for retry",
		zap.String("subscription_id", subscriptionID),
		zap.String("event_type", eventType),
		zap.Int("http_status", httpStatusCode),
		zap.String("error", errorMessage),
		zap.Time("next_retry", nextRetry),
	)

	return fmt.Errorf("webhook delivery failed: %s", errorMessage)
}

// RetryFailedDeliveries retries pending webhook deliveries
func (s *DeliveryService) RetryFailedDeliveries(ctx context.Context, maxRetries int) (int, error) {
	s.logger.Info("Starting webhook delivery retry process", zap.Int("max_retries", maxRetries))

	deliveries, err := s.webhooks.ListPendingDeliveries(ctx, nil, 100)
	if err != nil {
		return 0, fmt.Errorf("fetch pending deliveries: %w", err)
	}

	retried := 0
	for _, delivery := range deliveries {
		if int(delivery.Attempts) >= maxRetries {
			msg := "max retries exceeded"
			delivery.Status = domain.WebhookDeliveryFailed
			delivery.ErrorMessage = &msg
			delivery.NextRetryAt = nil
			if err := s.webhooks.UpdateDeliveryStatus(ctx, nil, delivery); err != nil {
				s.logger.Error("Failed to mark delivery as failed",
					zap.Error(err),
					zap.String("delivery_id", delivery.ID),
				)
			}
			continue
		}

		subscription, err := s.webhooks.GetSubscription(ctx, nil, delivery.SubscriptionID)
		if err != nil {
			s.logger.Error("Failed to get subscription for retry",
				zap.Error(err),
				zap.String("delivery_id", delivery.ID),
			)
			continue
		}

		var event Event
		if err := json.Unmarshal(delivery.Payload, &event); err != nil {
			s.logger.Error("Failed to unmarshal event payload",
				zap.Error(err),
				zap.String("delivery_id", delivery.ID),
			)
			continue
		}

		// Retries re-send the original payload bytes and only update the
		// existing audit row; a retry never creates a second row.
		res := s.post(ctx, subscription, delivery.EventType, event.Timestamp, delivery.Payload)
		delivery.Attempts++

		if res.ok {
			now := time.Now()
			delivery.Status = domain.WebhookDeliverySuccess
			delivery.NextRetryAt = nil
			delivery.DeliveredAt = &now
			delivery.ErrorMessage = nil
			delivery.HTTPStatusCode = &res.statusCode
			if err := s.webhooks.UpdateDeliveryStatus(ctx, nil, delivery); err != nil {
				s.logger.Error("Failed to record delivery success",
					zap.Error(err),
					zap.String("delivery_id", delivery.ID),
				)
			}
			retried++
		} else {
			nextRetry := time.Now().Add(s.backoff.NextDelay(int(delivery.Attempts)))
			delivery.NextRetryAt = &nextRetry
			delivery.ErrorMessage = &res.errMsg
			if res.statusCode > 0 {
				delivery.HTTPStatusCode = &res.statusCode
			}
			if err := s.webhooks.UpdateDeliveryStatus(ctx, nil, delivery); err != nil {
				s.logger.Error("Failed to reschedule delivery",
					zap.Error(err),
					zap.String("delivery_id", delivery.ID),
				)
			}
		}
	}

	s.logger.Info("Webhook retry process completed",
		zap.Int("total_pending", len(deliveries)),
		zap.Int("retried", retried),
	)

	return retried, nil
}

// StartRetryLoop periodically retries pending deliveries until ctx is
// cancelled
func (s *DeliveryService) StartRetryLoop(ctx context.Context, interval time.Duration, maxRetries int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Stopping webhook retry loop")
				return
			case <-ticker.C:
				if _, err := s.RetryFailedDeliveries(ctx, maxRetries); err != nil {
					s.logger.Error("Webhook retry pass failed", zap.Error(err))
				}
			}
		}
	}()
}
