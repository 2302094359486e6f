package ports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fetanpay/verification-service/internal/domain"
)

// DBTX is the subset of pgx transaction behavior repositories need.
// Passing nil runs the statement on the pool directly.
type DBTX = pgx.Tx

// TxManager runs a function inside a database transaction. The
// transaction is rolled back when fn returns an error.
type TxManager interface {
	WithTx(ctx context.Context, fn func(tx DBTX) error) error
}

// PaymentRepository persists payments and applies lifecycle transitions.
//
// All transition methods are single conditional UPDATEs guarded by
// status = 'pending'. They return (false, nil) when zero rows were
// affected, meaning the payment was already terminal: callers translate
// that into a Conflict. This gives at-most-one-writer semantics per
// payment without any cross-row locking.
type PaymentRepository interface {
	Create(ctx context.Context, tx DBTX, payment *domain.Payment) error
	GetByID(ctx context.Context, tx DBTX, id string) (*domain.Payment, error)
	GetByIdempotencyKey(ctx context.Context, tx DBTX, merchantID, key string) (*domain.Payment, error)
	ListByMerchant(ctx context.Context, tx DBTX, merchantID string, limit, offset int32) ([]*domain.Payment, error)

	// MarkVerified applies PENDING -> VERIFIED, setting verified_at and
	// verified_by exactly once.
	MarkVerified(ctx context.Context, tx DBTX, id, verifiedBy string, verifiedAt time.Time) (bool, error)

	// MarkFailed applies PENDING -> FAILED with the bank-side reason.
	MarkFailed(ctx context.Context, tx DBTX, id, reason string) (bool, error)

	// MarkExpired applies PENDING -> EXPIRED, guarded additionally by
	// expires_at <= cutoff so a stale caller cannot expire a live payment.
	MarkExpired(ctx context.Context, tx DBTX, id string, cutoff time.Time) (bool, error)

	// SetReceiptUploadURL attaches an uploaded receipt file to the payment.
	SetReceiptUploadURL(ctx context.Context, tx DBTX, id, url string) error
}

// ClaimRepository persists verification claims.
type ClaimRepository interface {
	Create(ctx context.Context, tx DBTX, claim *domain.VerificationClaim) error
	ListByPayment(ctx context.Context, tx DBTX, paymentID string) ([]*domain.VerificationClaim, error)
	UpdateStatus(ctx context.Context, tx DBTX, id string, status domain.ClaimStatus, resolvedAt time.Time) error
}

// WebhookRepository persists webhook subscriptions and delivery audit rows.
type WebhookRepository interface {
	CreateSubscription(ctx context.Context, tx DBTX, sub *domain.WebhookSubscription) error
	ListSubscriptionsByMerchant(ctx context.Context, tx DBTX, merchantID string) ([]*domain.WebhookSubscription, error)

	// DeactivateSubscription flips active to false for a subscription the
	// merchant owns. Returns (false, nil) when no active row matched.
	DeactivateSubscription(ctx context.Context, tx DBTX, merchantID, id string) (bool, error)

	ListActiveByMerchantAndEvent(ctx context.Context, tx DBTX, merchantID, eventType string) ([]*domain.WebhookSubscription, error)
	GetSubscription(ctx context.Context, tx DBTX, id string) (*domain.WebhookSubscription, error)
	CreateDelivery(ctx context.Context, tx DBTX, delivery *domain.WebhookDelivery) error
	ListPendingDeliveries(ctx context.Context, tx DBTX, limit int32) ([]*domain.WebhookDelivery, error)
	UpdateDeliveryStatus(ctx context.Context, tx DBTX, delivery *domain.WebhookDelivery) error
}
