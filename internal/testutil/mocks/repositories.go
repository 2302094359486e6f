package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
)

// MockPaymentRepository implements ports.PaymentRepository for testing
type MockPaymentRepository struct {
	mock.Mock
}

var _ ports.PaymentRepository = (*MockPaymentRepository)(nil)

func (m *MockPaymentRepository) Create(ctx context.Context, tx ports.DBTX, payment *domain.Payment) error {
	args := m.Called(ctx, tx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.Payment, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, merchantID, key string) (*domain.Payment, error) {
	args := m.Called(ctx, tx, merchantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) ListByMerchant(ctx context.Context, tx ports.DBTX, merchantID string, limit, offset int32) ([]*domain.Payment, error) {
	args := m.Called(ctx, tx, merchantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) MarkVerified(ctx context.Context, tx ports.DBTX, id, verifiedBy string, verifiedAt time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, verifiedBy, verifiedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) MarkFailed(ctx context.Context, tx ports.DBTX, id, reason string) (bool, error) {
	args := m.Called(ctx, tx, id, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) MarkExpired(ctx context.Context, tx ports.DBTX, id string, cutoff time.Time) (bool, error) {
	args := m.Called(ctx, tx, id, cutoff)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentRepository) SetReceiptUploadURL(ctx context.Context, tx ports.DBTX, id, url string) error {
	args := m.Called(ctx, tx, id, url)
	return args.Error(0)
}

// MockClaimRepository implements ports.ClaimRepository for testing
type MockClaimRepository struct {
	mock.Mock
}

var _ ports.ClaimRepository = (*MockClaimRepository)(nil)

func (m *MockClaimRepository) Create(ctx context.Context, tx ports.DBTX, claim *domain.VerificationClaim) error {
	args := m.Called(ctx, tx, claim)
	return args.Error(0)
}

func (m *MockClaimRepository) ListByPayment(ctx context.Context, tx ports.DBTX, paymentID string) ([]*domain.VerificationClaim, error) {
	args := m.Called(ctx, tx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.VerificationClaim), args.Error(1)
}

func (m *MockClaimRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id string, status domain.ClaimStatus, resolvedAt time.Time) error {
	args := m.Called(ctx, tx, id, status, resolvedAt)
	return args.Error(0)
}

// MockWebhookRepository implements ports.WebhookRepository for testing
type MockWebhookRepository struct {
	mock.Mock
}

var _ ports.WebhookRepository = (*MockWebhookRepository)(nil)

func (m *MockWebhookRepository) CreateSubscription(ctx context.Context, tx ports.DBTX, sub *domain.WebhookSubscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockWebhookRepository) ListSubscriptionsByMerchant(ctx context.Context, tx ports.DBTX, merchantID string) ([]*domain.WebhookSubscription, error) {
	args := m.Called(ctx, tx, merchantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.WebhookSubscription), args.Error(1)
}

func (m *MockWebhookRepository) DeactivateSubscription(ctx context.Context, tx ports.DBTX, merchantID, id string) (bool, error) {
	args := m.Called(ctx, tx, merchantID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookRepository) ListActiveByMerchantAndEvent(ctx context.Context, tx ports.DBTX, merchantID, eventType string) ([]*domain.WebhookSubscription, error) {
	args := m.Called(ctx, tx, merchantID, eventType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.WebhookSubscription), args.Error(1)
}

func (m *MockWebhookRepository) GetSubscription(ctx context.Context, tx ports.DBTX, id string) (*domain.WebhookSubscription, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookSubscription), args.Error(1)
}

func (m *MockWebhookRepository) CreateDelivery(ctx context.Context, tx ports.DBTX, delivery *domain.WebhookDelivery) error {
	args := m.Called(ctx, tx, delivery)
	return args.Error(0)
}

func (m *MockWebhookRepository) ListPendingDeliveries(ctx context.Context, tx ports.DBTX, limit int32) ([]*domain.WebhookDelivery, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.WebhookDelivery), args.Error(1)
}

func (m *MockWebhookRepository) UpdateDeliveryStatus(ctx context.Context, tx ports.DBTX, delivery *domain.WebhookDelivery) error {
	args := m.Called(ctx, tx, delivery)
	return args.Error(0)
}

// MockReceiptStore implements ports.ReceiptStore for testing
type MockReceiptStore struct {
	mock.Mock
}

var _ ports.ReceiptStore = (*MockReceiptStore)(nil)

func (m *MockReceiptStore) Save(ctx context.Context, paymentID, filename, mimeType string, r io.Reader) (string, error) {
	args := m.Called(ctx, paymentID, filename, mimeType, r)
	return args.String(0), args.Error(1)
}

// MockConfirmationGateway implements ports.BankConfirmationGateway for testing
type MockConfirmationGateway struct {
	mock.Mock
}

var _ ports.BankConfirmationGateway = (*MockConfirmationGateway)(nil)

func (m *MockConfirmationGateway) Confirm(ctx context.Context, payment *domain.Payment, claim *domain.VerificationClaim) (*ports.ConfirmationResult, error) {
	args := m.Called(ctx, payment, claim)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ConfirmationResult), args.Error(1)
}

// TxRunner implements ports.TxManager by invoking the callback with a
// nil transaction, so repository mocks keep expecting nil as the tx
// argument. Calls counts the transactions a flow opened.
type TxRunner struct {
	Calls int
	Err   error
}

var _ ports.TxManager = (*TxRunner)(nil)

func (r *TxRunner) WithTx(ctx context.Context, fn func(tx ports.DBTX) error) error {
	r.Calls++
	if r.Err != nil {
		return r.Err
	}
	return fn(nil)
}

// NopLogger discards all log output
type NopLogger struct{}

var _ ports.Logger = (*NopLogger)(nil)

func (NopLogger) Info(msg string, fields ...ports.Field)  {}
func (NopLogger) Error(msg string, fields ...ports.Field) {}
func (NopLogger) Warn(msg string, fields ...ports.Field)  {}
func (NopLogger) Debug(msg string, fields ...ports.Field) {}
