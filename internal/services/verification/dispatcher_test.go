package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
	"github.com/fetanpay/verification-service/internal/testutil/mocks"
	"github.com/fetanpay/verification-service/pkg/resilience"
)

func newTestDispatcher(gateway ports.BankConfirmationGateway, lifecycle PaymentLifecycle, claims ports.ClaimRepository) *Dispatcher {
	return NewDispatcher(
		gateway,
		lifecycle,
		claims,
		&resilience.FixedBackoff{Delay: time.Millisecond},
		DispatcherConfig{Workers: 1, QueueSize: 8, MaxAttempts: 3},
		mocks.NopLogger{},
	)
}

func queuedClaim(paymentID string) *domain.VerificationClaim {
	ref := "FT25346B61Q5"
	return &domain.VerificationClaim{
		ID:        uuid.New().String(),
		PaymentID: paymentID,
		Kind:      domain.ClaimKindReference,
		Status:    domain.ClaimStatusQueued,
		Reference: &ref,
		CreatedAt: time.Now(),
	}
}

func TestDispatcher_ConfirmedVerdictVerifiesPayment(t *testing.T) {
	gateway := new(mocks.MockConfirmationGateway)
	lifecycle := new(MockLifecycle)
	claims := new(mocks.MockClaimRepository)
	d := newTestDispatcher(gateway, lifecycle, claims)

	payment := pendingPayment(domain.ProviderCBE)
	claim := queuedClaim(payment.ID)

	gateway.On("Confirm", mock.Anything, payment, claim).
		Return(&ports.ConfirmationResult{Outcome: ports.OutcomeConfirmed, VerifiedBy: "cbe-portal"}, nil)
	lifecycle.On("MarkVerified", mock.Anything, payment.ID, "cbe-portal").
		Return(&domain.Payment{ID: payment.ID, Status: domain.PaymentStatusVerified}, nil)
	claims.On("UpdateStatus", mock.Anything, nil, claim.ID, domain.ClaimStatusConfirmed, mock.AnythingOfType("time.Time")).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	require.NoError(t, d.Enqueue(payment, claim))
	d.Stop()

	lifecycle.AssertExpectations(t)
	claims.AssertExpectations(t)
}

func TestDispatcher_RejectedVerdictFailsPayment(t *testing.T) {
	gateway := new(mocks.MockConfirmationGateway)
	lifecycle := new(MockLifecycle)
	claims := new(mocks.MockClaimRepository)
	d := newTestDispatcher(gateway, lifecycle, claims)

	payment := pendingPayment(domain.ProviderBOA)
	claim := queuedClaim(payment.ID)

	gateway.On("Confirm", mock.Anything, payment, claim).
		Return(&ports.ConfirmationResult{Outcome: ports.OutcomeRejected, RejectReason: "reference not found"}, nil)
	lifecycle.On("MarkFailed", mock.Anything, payment.ID, "reference not found").
		Return(&domain.Payment{ID: payment.ID, Status: domain.PaymentStatusFailed}, nil)
	claims.On("UpdateStatus", mock.Anything, nil, claim.ID, domain.ClaimStatusRejected, mock.AnythingOfType("time.Time")).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	require.NoError(t, d.Enqueue(payment, claim))
	d.Stop()

	lifecycle.AssertExpectations(t)
	claims.AssertExpectations(t)
}

func TestDispatcher_TransientErrorsRetryThenGiveUp(t *testing.T) {
	gateway := new(mocks.MockConfirmationGateway)
	lifecycle := new(MockLifecycle)
	claims := new(mocks.MockClaimRepository)
	d := newTestDispatcher(gateway, lifecycle, claims)

	payment := pendingPayment(domain.ProviderAwash)
	claim := queuedClaim(payment.ID)

	// Every attempt fails transiently; payment must stay untouched.
	gateway.On("Confirm", mock.Anything, mock.Anything, claim).
		Return(nil, assert.AnError).Times(3)
	lifecycle.On("GetPublic", mock.Anything, payment.ID).Return(payment, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	require.NoError(t, d.Enqueue(payment, claim))
	d.Stop()

	gateway.AssertExpectations(t)
	lifecycle.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
	lifecycle.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_StopsWhenPaymentGoesTerminalMidFlight(t *testing.T) {
	gateway := new(mocks.MockConfirmationGateway)
	lifecycle := new(MockLifecycle)
	claims := new(mocks.MockClaimRepository)
	d := newTestDispatcher(gateway, lifecycle, claims)

	payment := pendingPayment(domain.ProviderDashen)
	claim := queuedClaim(payment.ID)
	expired := &domain.Payment{ID: payment.ID, Status: domain.PaymentStatusExpired}

	// First attempt: no verdict yet. Reload sees the payment expired.
	gateway.On("Confirm", mock.Anything, payment, claim).
		Return(&ports.ConfirmationResult{Outcome: ports.OutcomeIndeterminate}, nil).Once()
	lifecycle.On("GetPublic", mock.Anything, payment.ID).Return(expired, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	require.NoError(t, d.Enqueue(payment, claim))
	d.Stop()

	gateway.AssertNumberOfCalls(t, "Confirm", 1)
	lifecycle.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_EnqueueFailsWhenQueueFull(t *testing.T) {
	gateway := new(mocks.MockConfirmationGateway)
	lifecycle := new(MockLifecycle)
	claims := new(mocks.MockClaimRepository)
	d := NewDispatcher(gateway, lifecycle, claims, nil,
		DispatcherConfig{Workers: 1, QueueSize: 1, MaxAttempts: 1}, mocks.NopLogger{})

	payment := pendingPayment(domain.ProviderCBE)

	// Workers never started, so the single slot fills immediately.
	require.NoError(t, d.Enqueue(payment, queuedClaim(payment.ID)))
	err := d.Enqueue(payment, queuedClaim(payment.ID))
	assert.Error(t, err)
}
