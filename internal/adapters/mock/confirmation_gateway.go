package mock

import (
	"context"

	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
)

// IndeterminateConfirmationGateway is the default BankConfirmationGateway
// until a bank-side integration is wired for the deployment. Every claim
// resolves as indeterminate, which leaves the payment PENDING: nothing is
// ever verified or failed on guesswork.
type IndeterminateConfirmationGateway struct {
	logger *zap.Logger
}

// NewIndeterminateConfirmationGateway creates the stub gateway
func NewIndeterminateConfirmationGateway(logger *zap.Logger) *IndeterminateConfirmationGateway {
	return &IndeterminateConfirmationGateway{logger: logger}
}

// Confirm never reaches a verdict
func (g *IndeterminateConfirmationGateway) Confirm(ctx context.Context, payment *domain.Payment, claim *domain.VerificationClaim) (*ports.ConfirmationResult, error) {
	g.logger.Info("No bank confirmation backend configured, leaving payment pending",
		zap.String("payment_id", payment.ID),
		zap.String("claim_id", claim.ID),
		zap.String("provider", string(payment.Provider)),
	)

	return &ports.ConfirmationResult{
		Outcome: ports.OutcomeIndeterminate,
	}, nil
}
