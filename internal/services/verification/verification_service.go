package verification

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
	"github.com/fetanpay/verification-service/pkg/observability"
)

// PaymentLifecycle is the slice of the payment service the verification
// flow needs: expiry-aware reads plus the two terminal transitions.
type PaymentLifecycle interface {
	GetPublic(ctx context.Context, paymentID string) (*domain.Payment, error)
	MarkVerified(ctx context.Context, paymentID, verifiedBy string) (*domain.Payment, error)
	MarkFailed(ctx context.Context, paymentID, reason string) (*domain.Payment, error)
}

// ClaimQueue hands accepted claims to the confirmation worker.
type ClaimQueue interface {
	Enqueue(payment *domain.Payment, claim *domain.VerificationClaim) error
}

// Service accepts verification claims from payers. A claim is either a
// typed transaction reference or an uploaded receipt file, never both.
// Accepting a claim changes nothing about the payment's status: the
// confirmation worker owns all transitions.
type Service struct {
	db       ports.TxManager
	payments ports.PaymentRepository
	claims   ports.ClaimRepository
	receipts ports.ReceiptStore
	lifecyle PaymentLifecycle
	queue    ClaimQueue
	logger   ports.Logger
	now      func() time.Time
}

// NewService creates a new verification service
func NewService(
	db ports.TxManager,
	payments ports.PaymentRepository,
	claims ports.ClaimRepository,
	receipts ports.ReceiptStore,
	lifecycle PaymentLifecycle,
	queue ClaimQueue,
	logger ports.Logger,
) *Service {
	return &Service{
		db:       db,
		payments: payments,
		claims:   claims,
		receipts: receipts,
		lifecyle: lifecycle,
		queue:    queue,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitClaimRequest carries one claim variant. Reference and File are
// mutually exclusive.
type SubmitClaimRequest struct {
	PaymentID string
	Reference string
	File      io.Reader
	Filename  string
	MimeType  string
}

// SubmitClaim validates and persists a claim, then queues it for
// asynchronous bank confirmation. Resubmission against a terminal
// payment (including one that lazily expired on this read) returns
// PAYMENT_TERMINAL.
func (s *Service) SubmitClaim(ctx context.Context, req SubmitClaimRequest) (*domain.VerificationClaim, error) {
	hasReference := req.Reference != ""
	hasFile := req.File != nil

	if hasReference && hasFile {
		return nil, domain.ErrClaimVariantConflict
	}
	if !hasReference && !hasFile {
		return nil, domain.ErrClaimReferenceMissing
	}

	// GetPublic applies lazy expiry, so a stale PENDING payment is
	// already EXPIRED by the time we check it.
	payment, err := s.lifecyle.GetPublic(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return nil, domain.NewDomainError(domain.ErrorCodePaymentTerminal, "payment already reached a terminal state").
			WithDetail("payment_id", payment.ID).
			WithDetail("status", string(payment.Status))
	}

	claim := &domain.VerificationClaim{
		ID:        uuid.New().String(),
		PaymentID: payment.ID,
		Status:    domain.ClaimStatusQueued,
		CreatedAt: s.now(),
	}

	if hasReference {
		if err := domain.ValidateReference(payment.Provider, req.Reference); err != nil {
			return nil, err
		}
		ref := req.Reference
		claim.Kind = domain.ClaimKindReference
		claim.Reference = &ref
	} else {
		// The file write happens outside the transaction; only the two
		// rows referencing it need to land together.
		url, err := s.receipts.Save(ctx, payment.ID, req.Filename, req.MimeType, req.File)
		if err != nil {
			observability.RecordReceiptUpload(req.MimeType, "rejected")
			return nil, fmt.Errorf("store receipt file: %w", err)
		}
		observability.RecordReceiptUpload(req.MimeType, "stored")
		mime := req.MimeType
		claim.Kind = domain.ClaimKindReceiptUpload
		claim.ReceiptURL = &url
		claim.MimeType = &mime
	}

	// A receipt-upload claim touches two rows: the claim itself and the
	// payment's receipt_upload_url. One transaction keeps them agreeing.
	err = s.db.WithTx(ctx, func(tx ports.DBTX) error {
		if claim.Kind == domain.ClaimKindReceiptUpload {
			if err := s.payments.SetReceiptUploadURL(ctx, tx, payment.ID, *claim.ReceiptURL); err != nil {
				return fmt.Errorf("attach receipt to payment: %w", err)
			}
		}
		if err := s.claims.Create(ctx, tx, claim); err != nil {
			return fmt.Errorf("persist claim: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if claim.ReceiptURL != nil {
		payment.ReceiptUploadURL = claim.ReceiptURL
	}

	if err := s.queue.Enqueue(payment, claim); err != nil {
		// The claim row survives; a queue hiccup only delays confirmation.
		s.logger.Warn("failed to queue claim for confirmation",
			ports.String("claim_id", claim.ID),
			ports.String("payment_id", payment.ID),
			ports.Err(err))
	}

	s.logger.Info("verification claim accepted",
		ports.String("claim_id", claim.ID),
		ports.String("payment_id", payment.ID),
		ports.String("kind", string(claim.Kind)))
	observability.RecordClaimSubmitted(string(payment.Provider), string(claim.Kind))

	return claim, nil
}

// ListClaims retrieves all claims made against a payment
func (s *Service) ListClaims(ctx context.Context, paymentID string) ([]*domain.VerificationClaim, error) {
	return s.claims.ListByPayment(ctx, nil, paymentID)
}
