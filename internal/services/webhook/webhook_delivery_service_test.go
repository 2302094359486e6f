package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/testutil/mocks"
)

func activeSubscription(merchantID, url, secret, eventType string) *domain.WebhookSubscription {
	return &domain.WebhookSubscription{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		URL:        url,
		Secret:     secret,
		EventType:  eventType,
		Active:     true,
	}
}

func TestDeliverEvent_SignsAndDelivers(t *testing.T) {
	secret := "whsec_test"
	var gotBody []byte
	var gotSignature, gotEventType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Webhook-Signature")
		gotEventType = r.Header.Get("X-Webhook-Event-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := new(mocks.MockWebhookRepository)
	sub := activeSubscription("merchant-1", server.URL, secret, domain.EventPaymentVerified)

	repo.On("ListActiveByMerchantAndEvent", mock.Anything, nil, "merchant-1", domain.EventPaymentVerified).
		Return([]*domain.WebhookSubscription{sub}, nil)
	repo.On("CreateDelivery", mock.Anything, nil, mock.MatchedBy(func(d *domain.WebhookDelivery) bool {
		return d.Status == domain.WebhookDeliverySuccess && d.Attempts == 1
	})).Return(nil)

	svc := NewDeliveryService(repo, nil, zap.NewNop())

	err := svc.DeliverEvent(context.Background(), &Event{
		EventType:  domain.EventPaymentVerified,
		MerchantID: "merchant-1",
		Timestamp:  time.Now().UTC(),
		Data:       map[string]interface{}{"payment_id": "pay-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.EventPaymentVerified, gotEventType)

	// Signature must be HMAC-SHA256 of the exact body bytes.
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)

	repo.AssertExpectations(t)
}

func TestDeliverEvent_FailureSchedulesRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := new(mocks.MockWebhookRepository)
	sub := activeSubscription("merchant-1", server.URL, "whsec_test", domain.EventPaymentFailed)

	repo.On("ListActiveByMerchantAndEvent", mock.Anything, nil, "merchant-1", domain.EventPaymentFailed).
		Return([]*domain.WebhookSubscription{sub}, nil)
	repo.On("CreateDelivery", mock.Anything, nil, mock.MatchedBy(func(d *domain.WebhookDelivery) bool {
		return d.Status == domain.WebhookDeliveryPending && d.NextRetryAt != nil && d.ErrorMessage != nil
	})).Return(nil)

	svc := NewDeliveryService(repo, nil, zap.NewNop())

	// DeliverEvent swallows per-subscription failures; the audit row
	// carries the retry schedule.
	err := svc.DeliverEvent(context.Background(), &Event{
		EventType:  domain.EventPaymentFailed,
		MerchantID: "merchant-1",
		Timestamp:  time.Now().UTC(),
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestDeliverEvent_NoSubscriptionsIsNoop(t *testing.T) {
	repo := new(mocks.MockWebhookRepository)
	repo.On("ListActiveByMerchantAndEvent", mock.Anything, nil, "merchant-1", domain.EventPaymentExpired).
		Return([]*domain.WebhookSubscription{}, nil)

	svc := NewDeliveryService(repo, nil, zap.NewNop())

	err := svc.DeliverEvent(context.Background(), &Event{
		EventType:  domain.EventPaymentExpired,
		MerchantID: "merchant-1",
	})

	require.NoError(t, err)
	repo.AssertNotCalled(t, "CreateDelivery", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishPaymentEvent_BuildsPayload(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	repo := new(mocks.MockWebhookRepository)
	sub := activeSubscription("merchant-1", server.URL, "whsec_test", domain.EventPaymentVerified)

	repo.On("ListActiveByMerchantAndEvent", mock.Anything, nil, "merchant-1", domain.EventPaymentVerified).
		Return([]*domain.WebhookSubscription{sub}, nil)
	repo.On("CreateDelivery", mock.Anything, nil, mock.Anything).Return(nil)

	svc := NewDeliveryService(repo, nil, zap.NewNop())

	verifiedBy := "cbe-portal"
	payment := &domain.Payment{
		ID:            "pay-1",
		MerchantID:    "merchant-1",
		Provider:      domain.ProviderCBE,
		Method:        domain.PaymentMethodBank,
		Reference:     "FT25346B61Q5",
		Status:        domain.PaymentStatusVerified,
		ClaimedAmount: decimal.NewFromInt(250),
		TipAmount:     decimal.NewFromInt(25),
		Currency:      "ETB",
		VerifiedBy:    &verifiedBy,
	}

	svc.PublishPaymentEvent(context.Background(), domain.EventPaymentVerified, payment)

	body := string(gotBody)
	assert.Contains(t, body, `"payment_id":"pay-1"`)
	assert.Contains(t, body, `"status":"verified"`)
	assert.Contains(t, body, `"claimed_amount":"250"`)
	assert.Contains(t, body, "https://apps.cbe.com.et/?id=FT25346B61Q5")
}

func TestRetryFailedDeliveries_MaxRetriesExceeded(t *testing.T) {
	repo := new(mocks.MockWebhookRepository)

	delivery := &domain.WebhookDelivery{
		ID:             uuid.New().String(),
		SubscriptionID: uuid.New().String(),
		EventType:      domain.EventPaymentVerified,
		Payload:        []byte(`{}`),
		Status:         domain.WebhookDeliveryPending,
		Attempts:       5,
	}

	repo.On("ListPendingDeliveries", mock.Anything, nil, int32(100)).
		Return([]*domain.WebhookDelivery{delivery}, nil)
	repo.On("UpdateDeliveryStatus", mock.Anything, nil, mock.MatchedBy(func(d *domain.WebhookDelivery) bool {
		return d.Status == domain.WebhookDeliveryFailed
	})).Return(nil)

	svc := NewDeliveryService(repo, nil, zap.NewNop())

	retried, err := svc.RetryFailedDeliveries(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, 0, retried)
	repo.AssertExpectations(t)
}

func TestRetryFailedDeliveries_SuccessfulRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := new(mocks.MockWebhookRepository)
	sub := activeSubscription("merchant-1", server.URL, "whsec_test", domain.EventPaymentVerified)

	delivery := &domain.WebhookDelivery{
		ID:             uuid.New().String(),
		SubscriptionID: sub.ID,
		EventType:      domain.EventPaymentVerified,
		Payload:        []byte(`{"event_type":"payment.verified","merchant_id":"merchant-1"}`),
		Status:         domain.WebhookDeliveryPending,
		Attempts:       1,
	}

	repo.On("ListPendingDeliveries", mock.Anything, nil, int32(100)).
		Return([]*domain.WebhookDelivery{delivery}, nil)
	repo.On("GetSubscription", mock.Anything, nil, sub.ID).Return(sub, nil)
	repo.On("UpdateDeliveryStatus", mock.Anything, nil, mock.MatchedBy(func(d *domain.WebhookDelivery) bool {
		return d.Status == domain.WebhookDeliverySuccess && d.DeliveredAt != nil && d.Attempts == 2
	})).Return(nil)

	svc := NewDeliveryService(repo, nil, zap.NewNop())

	retried, err := svc.RetryFailedDeliveries(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, 1, retried)
	// A retry updates the original audit row; it never opens a new chain.
	repo.AssertNotCalled(t, "CreateDelivery", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestRetryFailedDeliveries_FailureUpdatesExistingRow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	repo := new(mocks.MockWebhookRepository)
	sub := activeSubscription("merchant-1", server.URL, "whsec_test", domain.EventPaymentVerified)

	delivery := &domain.WebhookDelivery{
		ID:             uuid.New().String(),
		SubscriptionID: sub.ID,
		EventType:      domain.EventPaymentVerified,
		Payload:        []byte(`{"event_type":"payment.verified","merchant_id":"merchant-1"}`),
		Status:         domain.WebhookDeliveryPending,
		Attempts:       1,
	}

	repo.On("ListPendingDeliveries", mock.Anything, nil, int32(100)).
		Return([]*domain.WebhookDelivery{delivery}, nil)
	repo.On("GetSubscription", mock.Anything, nil, sub.ID).Return(sub, nil)
	repo.On("UpdateDeliveryStatus", mock.Anything, nil, mock.MatchedBy(func(d *domain.WebhookDelivery) bool {
		return d.Status == domain.WebhookDeliveryPending &&
			d.Attempts == 2 &&
			d.NextRetryAt != nil &&
			d.ErrorMessage != nil &&
			d.HTTPStatusCode != nil && *d.HTTPStatusCode == http.StatusBadGateway
	})).Return(nil)

	svc := NewDeliveryService(repo, nil, zap.NewNop())

	retried, err := svc.RetryFailedDeliveries(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, 0, retried)
	repo.AssertNotCalled(t, "CreateDelivery", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}
