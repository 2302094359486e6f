package ports

import (
	"context"

	"github.com/fetanpay/verification-service/internal/domain"
)

// ConfirmationOutcome is the bank-side verdict on a claim.
type ConfirmationOutcome string

const (
	// OutcomeConfirmed: the reference exists, belongs to the provider,
	// and the amount matches within tolerance.
	OutcomeConfirmed ConfirmationOutcome = "confirmed"
	// OutcomeRejected: the bank explicitly rejected the claim (reference
	// not found, wrong amount, reference already used).
	OutcomeRejected ConfirmationOutcome = "rejected"
	// OutcomeIndeterminate: the bank side could not answer yet. The
	// payment stays PENDING and the worker retries with backoff.
	OutcomeIndeterminate ConfirmationOutcome = "indeterminate"
)

// ConfirmationResult carries the gateway's verdict.
type ConfirmationResult struct {
	Outcome      ConfirmationOutcome
	RejectReason string
	// VerifiedBy identifies the confirming system (recorded on the
	// PENDING -> VERIFIED transition).
	VerifiedBy string
}

// BankConfirmationGateway is the port to the bank-side confirmation
// collaborator. How a claimed reference is actually checked against a
// real bank transaction is external to this service; implementations
// plug in here. Transient failures return an error (retried), a firm
// verdict returns a result.
type BankConfirmationGateway interface {
	Confirm(ctx context.Context, payment *domain.Payment, claim *domain.VerificationClaim) (*ConfirmationResult, error)
}
