package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
	"github.com/fetanpay/verification-service/pkg/observability"
)

// DefaultExpiryWindow is how long a payment stays claimable after
// creation unless the merchant sets an explicit window.
const DefaultExpiryWindow = 20 * time.Minute

// DefaultCurrency is applied when the merchant omits one.
const DefaultCurrency = "ETB"

// EventPublisher receives terminal lifecycle transitions for webhook
// fan-out. Publishing is fire-and-forget from the service's view.
type EventPublisher interface {
	PublishPaymentEvent(ctx context.Context, eventType string, payment *domain.Payment)
}

// Service implements the payment lifecycle operations
type Service struct {
	payments ports.PaymentRepository
	events   EventPublisher
	logger   ports.Logger
	now      func() time.Time
}

// NewService creates a new payment service
func NewService(payments ports.PaymentRepository, events EventPublisher, logger ports.Logger) *Service {
	return &Service{
		payments: payments,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRequest carries merchant input for a new payment
type CreateRequest struct {
	MerchantID      string
	MerchantName    string
	Provider        domain.ProviderCode
	ReceiverName    string
	ReceiverAccount string
	ClaimedAmount   decimal.Decimal
	TipAmount       decimal.Decimal
	Currency        string
	ExpiryWindow    time.Duration
	IdempotencyKey  string
	Metadata        map[string]interface{}
}

// Create registers a new PENDING payment claim. Repeated calls with the
// same merchant-scoped idempotency key return the original payment.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Payment, error) {
	if req.MerchantID == "" {
		return nil, domain.ErrMerchantRequired
	}
	if req.ClaimedAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "claimed amount must be positive").
			WithDetail("claimed_amount", req.ClaimedAmount.String())
	}
	if req.TipAmount.IsNegative() {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "tip amount cannot be negative").
			WithDetail("tip_amount", req.TipAmount.String())
	}
	if !isKnownProvider(req.Provider) {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "unknown provider").
			WithDetail("provider", string(req.Provider))
	}

	if req.IdempotencyKey != "" {
		existing, err := s.payments.GetByIdempotencyKey(ctx, nil, req.MerchantID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("check idempotency key: %w", err)
		}
		if existing != nil {
			if !existing.ClaimedAmount.Equal(req.ClaimedAmount) || existing.Provider != req.Provider {
				return nil, domain.ErrIdempotencyConflict
			}
			s.logger.Info("returning existing payment for idempotency key",
				ports.String("idempotency_key", req.IdempotencyKey),
				ports.String("payment_id", existing.ID))
			return existing, nil
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	window := req.ExpiryWindow
	if window <= 0 {
		window = DefaultExpiryWindow
	}

	now := s.now()
	payment := &domain.Payment{
		ID:              uuid.New().String(),
		MerchantID:      req.MerchantID,
		MerchantName:    req.MerchantName,
		Provider:        req.Provider,
		Method:          domain.PaymentMethodBank,
		ReceiverName:    req.ReceiverName,
		ReceiverAccount: req.ReceiverAccount,
		ClaimedAmount:   req.ClaimedAmount,
		TipAmount:       req.TipAmount,
		Currency:        currency,
		Status:          domain.PaymentStatusPending,
		ExpiresAt:       now.Add(window),
		Metadata:        req.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		payment.IdempotencyKey = &key
	}

	if err := s.payments.Create(ctx, nil, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	s.logger.Info("payment created",
		ports.String("payment_id", payment.ID),
		ports.String("merchant_id", payment.MerchantID),
		ports.String("provider", string(payment.Provider)),
		ports.String("claimed_amount", payment.ClaimedAmount.String()))
	observability.RecordPaymentCreated(payment.MerchantID, string(payment.Provider), string(payment.Method))

	return payment, nil
}

// LogManualRequest records a payment that bypassed verification
type LogManualRequest struct {
	MerchantID    string
	MerchantName  string
	Provider      domain.ProviderCode
	Method        domain.PaymentMethod
	Reference     string
	ClaimedAmount decimal.Decimal
	TipAmount     decimal.Decimal
	Currency      string
	Metadata      map[string]interface{}
}

// LogManual records a cash or offline bank payment as UNVERIFIED. The
// record is terminal on arrival: it never enters the confirmation flow.
func (s *Service) LogManual(ctx context.Context, req LogManualRequest) (*domain.Payment, error) {
	if req.MerchantID == "" {
		return nil, domain.ErrMerchantRequired
	}
	if req.ClaimedAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "claimed amount must be positive")
	}

	method := req.Method
	if method == "" {
		method = domain.PaymentMethodCash
	}
	provider := req.Provider
	if provider == "" {
		provider = domain.ProviderCash
	}
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	now := s.now()
	payment := &domain.Payment{
		ID:            uuid.New().String(),
		MerchantID:    req.MerchantID,
		MerchantName:  req.MerchantName,
		Provider:      provider,
		Method:        method,
		Reference:     req.Reference,
		ClaimedAmount: req.ClaimedAmount,
		TipAmount:     req.TipAmount,
		Currency:      currency,
		Status:        domain.PaymentStatusUnverified,
		ExpiresAt:     now,
		Metadata:      req.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.payments.Create(ctx, nil, payment); err != nil {
		return nil, fmt.Errorf("log manual payment: %w", err)
	}

	s.logger.Info("manual payment logged",
		ports.String("payment_id", payment.ID),
		ports.String("merchant_id", payment.MerchantID),
		ports.String("method", string(payment.Method)))
	observability.RecordPaymentCreated(payment.MerchantID, string(payment.Provider), string(payment.Method))
	s.recordResolved(payment)

	return payment, nil
}

// Get retrieves a payment scoped to the calling merchant
func (s *Service) Get(ctx context.Context, merchantID, paymentID string) (*domain.Payment, error) {
	payment, err := s.resolve(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.MerchantID != merchantID {
		return nil, domain.ErrAuthMerchantMismatch
	}
	return payment, nil
}

// List retrieves a merchant's payments, newest first. Expiry is resolved
// per row so a stale PENDING never leaks into the listing.
func (s *Service) List(ctx context.Context, merchantID string, limit, offset int32) ([]*domain.Payment, error) {
	if merchantID == "" {
		return nil, domain.ErrMerchantRequired
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	payments, err := s.payments.ListByMerchant(ctx, nil, merchantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	now := s.now()
	for _, p := range payments {
		if p.Status == domain.PaymentStatusPending && p.IsExpiredAt(now) {
			s.expire(ctx, p)
		}
	}

	return payments, nil
}

// GetPublic resolves a payment for the unauthenticated status page.
// This is the read path that polls every 10 seconds, so it also carries
// lazy expiry: a PENDING payment past its deadline is expired here.
func (s *Service) GetPublic(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.resolve(ctx, paymentID)
}

// MarkVerified applies PENDING -> VERIFIED on behalf of the confirmation
// worker. A payment already terminal returns PAYMENT_TERMINAL.
func (s *Service) MarkVerified(ctx context.Context, paymentID, verifiedBy string) (*domain.Payment, error) {
	moved, err := s.payments.MarkVerified(ctx, nil, paymentID, verifiedBy, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if !moved {
		return nil, s.terminalConflict(ctx, paymentID)
	}

	payment, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}

	s.logger.Info("payment verified",
		ports.String("payment_id", paymentID),
		ports.String("verified_by", verifiedBy))
	s.recordResolved(payment)
	s.events.PublishPaymentEvent(ctx, domain.EventPaymentVerified, payment)

	return payment, nil
}

// MarkFailed applies PENDING -> FAILED with the bank-side reason
func (s *Service) MarkFailed(ctx context.Context, paymentID, reason string) (*domain.Payment, error) {
	moved, err := s.payments.MarkFailed(ctx, nil, paymentID, reason)
	if err != nil {
		return nil, fmt.Errorf("mark failed: %w", err)
	}
	if !moved {
		return nil, s.terminalConflict(ctx, paymentID)
	}

	payment, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, fmt.Errorf("reload payment: %w", err)
	}

	s.logger.Info("payment failed",
		ports.String("payment_id", paymentID),
		ports.String("reason", reason))
	s.recordResolved(payment)
	s.events.PublishPaymentEvent(ctx, domain.EventPaymentFailed, payment)

	return payment, nil
}

// resolve loads a payment and applies lazy expiry before returning it.
func (s *Service) resolve(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status == domain.PaymentStatusPending && payment.IsExpiredAt(s.now()) {
		s.expire(ctx, payment)
	}

	return payment, nil
}

// expire persists the lazy EXPIRED transition. Losing the conditional
// update race is fine: someone else moved the payment first, and the
// reload picks up whatever state won.
func (s *Service) expire(ctx context.Context, payment *domain.Payment) {
	moved, err := s.payments.MarkExpired(ctx, nil, payment.ID, payment.ExpiresAt)
	if err != nil {
		s.logger.Error("failed to persist expiry",
			ports.String("payment_id", payment.ID),
			ports.Err(err))
		payment.Status = domain.PaymentStatusExpired
		return
	}

	if moved {
		payment.Status = domain.PaymentStatusExpired
		s.logger.Info("payment expired",
			ports.String("payment_id", payment.ID))
		s.recordResolved(payment)
		s.events.PublishPaymentEvent(ctx, domain.EventPaymentExpired, payment)
		return
	}

	if fresh, err := s.payments.GetByID(ctx, nil, payment.ID); err == nil {
		*payment = *fresh
	}
}

// terminalConflict distinguishes "not found" from "already terminal"
// after a conditional update matched zero rows.
func (s *Service) terminalConflict(ctx context.Context, paymentID string) error {
	payment, err := s.payments.GetByID(ctx, nil, paymentID)
	if err != nil {
		return err
	}
	return domain.NewDomainError(domain.ErrorCodePaymentTerminal, "payment already reached a terminal state").
		WithDetail("payment_id", paymentID).
		WithDetail("status", string(payment.Status))
}

// recordResolved publishes terminal-state counters. Amounts are shifted
// to minor units so ETB 250.50 counts as 25050.
func (s *Service) recordResolved(payment *domain.Payment) {
	observability.RecordPaymentResolved(
		payment.MerchantID,
		string(payment.Provider),
		string(payment.Status),
		payment.Currency,
		payment.ClaimedAmount.Shift(2).IntPart(),
	)
}

func isKnownProvider(p domain.ProviderCode) bool {
	switch p {
	case domain.ProviderCBE, domain.ProviderTelebirr, domain.ProviderAwash,
		domain.ProviderBOA, domain.ProviderDashen, domain.ProviderOther:
		return true
	}
	return false
}
