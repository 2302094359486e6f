package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a payment claim.
// PENDING is the only non-terminal state; see CanTransitionTo.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusVerified PaymentStatus = "verified"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusExpired  PaymentStatus = "expired"
	// PaymentStatusUnverified marks manually logged payments (cash drawer,
	// offline bank transfer) that were never run through bank confirmation.
	PaymentStatusUnverified PaymentStatus = "unverified"
)

// ProviderCode identifies the bank or mobile-money provider a transfer
// was made through.
type ProviderCode string

const (
	ProviderCBE      ProviderCode = "CBE"
	ProviderTelebirr ProviderCode = "TELEBIRR"
	ProviderAwash    ProviderCode = "AWASH"
	ProviderBOA      ProviderCode = "BOA"
	ProviderDashen   ProviderCode = "DASHEN"
	ProviderOther    ProviderCode = "OTHER"
	ProviderCash     ProviderCode = "CASH"
)

// PaymentMethod distinguishes bank transfers from cash-in-hand records.
type PaymentMethod string

const (
	PaymentMethodBank PaymentMethod = "bank"
	PaymentMethodCash PaymentMethod = "cash"
)

// Payment represents a single bank-transfer payment claim made against a
// merchant. A payment is created PENDING when the payer (or merchant)
// initiates a claim, and is moved to a terminal state by the confirmation
// worker or by lazy expiry. Payments are never hard-deleted.
type Payment struct {
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	ExpiresAt        time.Time              `json:"expires_at"`
	VerifiedAt       *time.Time             `json:"verified_at"`
	VerifiedBy       *string                `json:"verified_by"`
	FailureReason    *string                `json:"failure_reason"`
	ReceiptUploadURL *string                `json:"receipt_upload_url"`
	IdempotencyKey   *string                `json:"idempotency_key"`
	Metadata         map[string]interface{} `json:"metadata"`
	ID               string                 `json:"id"`
	MerchantID       string                 `json:"merchant_id"`
	MerchantName     string                 `json:"merchant_name"`
	Reference        string                 `json:"reference"`
	ReceiverName     string                 `json:"receiver_name"`
	ReceiverAccount  string                 `json:"receiver_account"`
	Currency         string                 `json:"currency"`
	Provider         ProviderCode           `json:"provider"`
	Method           PaymentMethod          `json:"method"`
	Status           PaymentStatus          `json:"status"`
	ClaimedAmount    decimal.Decimal        `json:"claimed_amount"`
	TipAmount        decimal.Decimal        `json:"tip_amount"`
}

// IsTerminal returns true if the status admits no further transitions.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusVerified, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusUnverified:
		return true
	}
	return false
}

// CanTransitionTo reports whether a transition from s to target is legal.
// Only PENDING payments may move, and only into a terminal state.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	if s != PaymentStatusPending {
		return false
	}
	switch target {
	case PaymentStatusVerified, PaymentStatusFailed, PaymentStatusExpired:
		return true
	}
	return false
}

// IsExpiredAt reports whether the payment's expiry deadline has passed.
// Expiry is evaluated lazily at read time; there is no background sweeper.
func (p *Payment) IsExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// EffectiveStatus resolves the status a reader should see at the given
// instant: a PENDING payment past its deadline reads as EXPIRED even if
// the row has not been updated yet. The flag and the status must agree.
func (p *Payment) EffectiveStatus(now time.Time) PaymentStatus {
	if p.Status == PaymentStatusPending && p.IsExpiredAt(now) {
		return PaymentStatusExpired
	}
	return p.Status
}

// ReceiptURL returns the URL a human can open to view the original
// receipt. An uploaded receipt file takes precedence over the derived
// bank-portal link.
func (p *Payment) ReceiptURL() string {
	if p.ReceiptUploadURL != nil && *p.ReceiptUploadURL != "" {
		return *p.ReceiptUploadURL
	}
	return ReceiptPortalURL(p.Provider, p.Reference, p.Method)
}

// GetVerifiedBy safely retrieves the verifier identity.
func (p *Payment) GetVerifiedBy() string {
	if p.VerifiedBy != nil {
		return *p.VerifiedBy
	}
	return ""
}
