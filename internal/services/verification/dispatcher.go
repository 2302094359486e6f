package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
	"github.com/fetanpay/verification-service/pkg/observability"
	"github.com/fetanpay/verification-service/pkg/resilience"
)

// DispatcherConfig tunes the confirmation worker pool
type DispatcherConfig struct {
	// Workers is the number of concurrent confirmation goroutines
	Workers int
	// QueueSize bounds the claim backlog
	QueueSize int
	// MaxAttempts bounds gateway retries per claim
	MaxAttempts int
}

// DefaultDispatcherConfig returns sensible defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     4,
		QueueSize:   256,
		MaxAttempts: 5,
	}
}

type job struct {
	payment *domain.Payment
	claim   *domain.VerificationClaim
}

// Dispatcher runs the asynchronous confirmation flow: claims go in, the
// bank gateway is consulted with retries, and a firm verdict drives the
// payment's one legal transition. Indeterminate verdicts leave the
// payment PENDING for the expiry clock to resolve.
type Dispatcher struct {
	gateway  ports.BankConfirmationGateway
	payments PaymentLifecycle
	claims   ports.ClaimRepository
	backoff  resilience.BackoffStrategy
	logger   ports.Logger
	config   DispatcherConfig

	queue chan job
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDispatcher creates a confirmation dispatcher
func NewDispatcher(
	gateway ports.BankConfirmationGateway,
	payments PaymentLifecycle,
	claims ports.ClaimRepository,
	backoff resilience.BackoffStrategy,
	cfg DispatcherConfig,
	logger ports.Logger,
) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultDispatcherConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDispatcherConfig().QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultDispatcherConfig().MaxAttempts
	}
	if backoff == nil {
		backoff = resilience.ConfirmationBackoff()
	}

	return &Dispatcher{
		gateway:  gateway,
		payments: payments,
		claims:   claims,
		backoff:  backoff,
		logger:   logger,
		config:   cfg,
		queue:    make(chan job, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers drain until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.logger.Info("confirmation dispatcher started",
		ports.Int("workers", d.config.Workers),
		ports.Int("queue_size", d.config.QueueSize))
}

// Stop closes the queue and waits for in-flight confirmations
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
	d.logger.Info("confirmation dispatcher stopped")
}

// Enqueue hands a claim to the worker pool without blocking the request
// path. A full queue is reported to the caller.
func (d *Dispatcher) Enqueue(payment *domain.Payment, claim *domain.VerificationClaim) error {
	select {
	case d.queue <- job{payment: payment, claim: claim}:
		return nil
	default:
		return fmt.Errorf("confirmation queue full (%d pending)", d.config.QueueSize)
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.queue:
			if !ok {
				return
			}
			d.process(ctx, j)
		}
	}
}

// process consults the gateway with retries until a firm verdict, the
// attempt budget runs out, or the payment expires under us.
func (d *Dispatcher) process(ctx context.Context, j job) {
	for attempt := 0; attempt < d.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := d.backoff.NextDelay(attempt - 1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			// Re-read so a payment that went terminal between attempts
			// (expiry, another claim) is not confirmed twice.
			fresh, err := d.payments.GetPublic(ctx, j.payment.ID)
			if err != nil {
				d.logger.Error("failed to reload payment between attempts",
					ports.String("payment_id", j.payment.ID),
					ports.Err(err))
				return
			}
			if fresh.Status.IsTerminal() {
				d.logger.Info("payment went terminal while claim was in flight",
					ports.String("payment_id", j.payment.ID),
					ports.String("claim_id", j.claim.ID),
					ports.String("status", string(fresh.Status)))
				return
			}
			j.payment = fresh
		}

		result, err := d.gateway.Confirm(ctx, j.payment, j.claim)
		if err != nil {
			// Transient gateway failure: retry, never fail the payment.
			observability.RecordConfirmationAttempt(string(j.payment.Provider), "error")
			d.logger.Warn("confirmation attempt failed",
				ports.String("payment_id", j.payment.ID),
				ports.String("claim_id", j.claim.ID),
				ports.Int("attempt", attempt+1),
				ports.Err(err))
			continue
		}

		observability.RecordConfirmationAttempt(string(j.payment.Provider), string(result.Outcome))

		switch result.Outcome {
		case ports.OutcomeConfirmed:
			d.confirm(ctx, j, result)
			return
		case ports.OutcomeRejected:
			d.reject(ctx, j, result)
			return
		case ports.OutcomeIndeterminate:
			// No verdict yet. Keep retrying within budget; the payment
			// stays PENDING either way.
			continue
		default:
			d.logger.Error("gateway returned unknown outcome",
				ports.String("outcome", string(result.Outcome)),
				ports.String("claim_id", j.claim.ID))
			return
		}
	}

	d.logger.Info("confirmation attempts exhausted, payment stays pending",
		ports.String("payment_id", j.payment.ID),
		ports.String("claim_id", j.claim.ID),
		ports.Int("attempts", d.config.MaxAttempts))
}

func (d *Dispatcher) confirm(ctx context.Context, j job, result *ports.ConfirmationResult) {
	verifiedBy := result.VerifiedBy
	if verifiedBy == "" {
		verifiedBy = "bank-confirmation"
	}

	if _, err := d.payments.MarkVerified(ctx, j.payment.ID, verifiedBy); err != nil {
		// Losing to a concurrent transition is expected; anything else is not.
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == domain.ErrorCodePaymentTerminal {
			d.logger.Info("verified verdict arrived after terminal transition",
				ports.String("payment_id", j.payment.ID))
		} else {
			d.logger.Error("failed to apply verified transition",
				ports.String("payment_id", j.payment.ID),
				ports.Err(err))
		}
		return
	}

	if err := d.claims.UpdateStatus(ctx, nil, j.claim.ID, domain.ClaimStatusConfirmed, time.Now()); err != nil {
		d.logger.Error("failed to mark claim confirmed",
			ports.String("claim_id", j.claim.ID),
			ports.Err(err))
	}

	observability.RecordConfirmationDuration(string(j.payment.Provider), time.Since(j.claim.CreatedAt).Seconds())
}

func (d *Dispatcher) reject(ctx context.Context, j job, result *ports.ConfirmationResult) {
	reason := result.RejectReason
	if reason == "" {
		reason = "bank rejected the claim"
	}

	if _, err := d.payments.MarkFailed(ctx, j.payment.ID, reason); err != nil {
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == domain.ErrorCodePaymentTerminal {
			d.logger.Info("rejected verdict arrived after terminal transition",
				ports.String("payment_id", j.payment.ID))
		} else {
			d.logger.Error("failed to apply failed transition",
				ports.String("payment_id", j.payment.ID),
				ports.Err(err))
		}
		return
	}

	if err := d.claims.UpdateStatus(ctx, nil, j.claim.ID, domain.ClaimStatusRejected, time.Now()); err != nil {
		d.logger.Error("failed to mark claim rejected",
			ports.String("claim_id", j.claim.ID),
			ports.Err(err))
	}

	observability.RecordConfirmationDuration(string(j.payment.Provider), time.Since(j.claim.CreatedAt).Seconds())
}
