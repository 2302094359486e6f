package webhook

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/domain"
)

// RegisterSubscriptionRequest carries a merchant's endpoint registration.
// Secret is optional; one is generated when omitted.
type RegisterSubscriptionRequest struct {
	MerchantID string
	URL        string
	Secret     string
	EventType  string
}

// RegisterSubscription validates and persists a webhook endpoint. The
// returned secret is the merchant's only chance to see a generated one:
// subscriptions never echo the secret back after creation.
func (s *DeliveryService) RegisterSubscription(ctx context.Context, req RegisterSubscriptionRequest) (*domain.WebhookSubscription, string, error) {
	if req.MerchantID == "" {
		return nil, "", domain.ErrMerchantRequired
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, "", domain.NewDomainError(domain.ErrorCodeValidationFailed, "url must be an absolute http(s) URL").
			WithDetail("url", req.URL)
	}

	if !domain.IsPaymentEventType(req.EventType) {
		return nil, "", domain.NewDomainError(domain.ErrorCodeValidationFailed, "unknown event type").
			WithDetail("event_type", req.EventType)
	}

	secret := req.Secret
	if secret == "" {
		secret = "whsec_" + uuid.New().String()
	}

	sub := &domain.WebhookSubscription{
		ID:         uuid.New().String(),
		MerchantID: req.MerchantID,
		URL:        req.URL,
		Secret:     secret,
		EventType:  req.EventType,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.webhooks.CreateSubscription(ctx, nil, sub); err != nil {
		return nil, "", fmt.Errorf("persist subscription: %w", err)
	}

	s.logger.Info("Webhook subscription registered",
		zap.String("subscription_id", sub.ID),
		zap.String("merchant_id", sub.MerchantID),
		zap.String("event_type", sub.EventType),
	)

	return sub, secret, nil
}

// ListSubscriptions returns all of a merchant's registered endpoints
func (s *DeliveryService) ListSubscriptions(ctx context.Context, merchantID string) ([]*domain.WebhookSubscription, error) {
	if merchantID == "" {
		return nil, domain.ErrMerchantRequired
	}
	return s.webhooks.ListSubscriptionsByMerchant(ctx, nil, merchantID)
}

// DeactivateSubscription stops deliveries to an endpoint. The
// subscription row survives so past delivery audits keep their parent.
func (s *DeliveryService) DeactivateSubscription(ctx context.Context, merchantID, id string) error {
	ok, err := s.webhooks.DeactivateSubscription(ctx, nil, merchantID, id)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if !ok {
		return domain.NewDomainError(domain.ErrorCodeWebhookNotFound, "webhook subscription not found").
			WithDetail("subscription_id", id)
	}

	s.logger.Info("Webhook subscription deactivated",
		zap.String("subscription_id", id),
		zap.String("merchant_id", merchantID),
	)

	return nil
}
