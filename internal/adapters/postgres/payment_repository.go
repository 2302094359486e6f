package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
)

const paymentColumns = `id, merchant_id, merchant_name, provider, method, reference,
	receiver_name, receiver_account, claimed_amount, tip_amount, currency, status,
	expires_at, verified_at, verified_by, failure_reason, receipt_upload_url,
	idempotency_key, metadata, created_at, updated_at`

// PaymentRepository implements ports.PaymentRepository on pgx.
//
// Lifecycle transitions are single conditional UPDATEs guarded by
// status = 'pending'; zero rows affected means the payment was already
// terminal and surfaces as (false, nil).
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create inserts a new payment row
func (r *PaymentRepository) Create(ctx context.Context, tx ports.DBTX, payment *domain.Payment) error {
	id, err := uuid.Parse(payment.ID)
	if err != nil {
		return fmt.Errorf("invalid payment ID: %w", err)
	}

	claimed, err := decimalToNumeric(payment.ClaimedAmount)
	if err != nil {
		return fmt.Errorf("convert claimed amount: %w", err)
	}
	tip, err := decimalToNumeric(payment.TipAmount)
	if err != nil {
		return fmt.Errorf("convert tip amount: %w", err)
	}

	metadataBytes := []byte("{}")
	if payment.Metadata != nil {
		metadataBytes, err = json.Marshal(payment.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	_, err = pick(r.pool, tx).Exec(ctx, `
		INSERT INTO payments (
			id, merchant_id, merchant_name, provider, method, reference,
			receiver_name, receiver_account, claimed_amount, tip_amount, currency,
			status, expires_at, receipt_upload_url, idempotency_key, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id,
		payment.MerchantID,
		payment.MerchantName,
		string(payment.Provider),
		string(payment.Method),
		nullText(payment.Reference),
		nullText(payment.ReceiverName),
		nullText(payment.ReceiverAccount),
		claimed,
		tip,
		payment.Currency,
		string(payment.Status),
		payment.ExpiresAt,
		nullTextPtr(payment.ReceiptUploadURL),
		nullTextPtr(payment.IdempotencyKey),
		metadataBytes,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*domain.Payment, error) {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrPaymentNotFound
	}

	row := pick(r.pool, tx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment by id: %w", err)
	}

	return payment, nil
}

// GetByIdempotencyKey returns the payment previously created under the
// given merchant-scoped idempotency key, or (nil, nil) if none exists.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, tx ports.DBTX, merchantID, key string) (*domain.Payment, error) {
	row := pick(r.pool, tx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE merchant_id = $1 AND idempotency_key = $2`,
		merchantID, key)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by idempotency key: %w", err)
	}

	return payment, nil
}

// ListByMerchant retrieves a merchant's payments, newest first
func (r *PaymentRepository) ListByMerchant(ctx context.Context, tx ports.DBTX, merchantID string, limit, offset int32) ([]*domain.Payment, error) {
	rows, err := pick(r.pool, tx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE merchant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		merchantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return payments, nil
}

// MarkVerified applies PENDING -> VERIFIED exactly once
func (r *PaymentRepository) MarkVerified(ctx context.Context, tx ports.DBTX, id, verifiedBy string, verifiedAt time.Time) (bool, error) {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return false, domain.ErrPaymentNotFound
	}

	tag, err := pick(r.pool, tx).Exec(ctx, `
		UPDATE payments
		SET status = 'verified', verified_at = $2, verified_by = $3, updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		paymentID, verifiedAt, verifiedBy)
	if err != nil {
		return false, fmt.Errorf("mark payment verified: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// MarkFailed applies PENDING -> FAILED with the bank-side reason
func (r *PaymentRepository) MarkFailed(ctx context.Context, tx ports.DBTX, id, reason string) (bool, error) {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return false, domain.ErrPaymentNotFound
	}

	tag, err := pick(r.pool, tx).Exec(ctx, `
		UPDATE payments
		SET status = 'failed', failure_reason = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'`,
		paymentID, nullText(reason))
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// MarkExpired applies PENDING -> EXPIRED. The extra expires_at guard
// means a stale caller cannot expire a payment whose deadline moved.
func (r *PaymentRepository) MarkExpired(ctx context.Context, tx ports.DBTX, id string, cutoff time.Time) (bool, error) {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return false, domain.ErrPaymentNotFound
	}

	tag, err := pick(r.pool, tx).Exec(ctx, `
		UPDATE payments
		SET status = 'expired', updated_at = now()
		WHERE id = $1 AND status = 'pending' AND expires_at <= $2`,
		paymentID, cutoff)
	if err != nil {
		return false, fmt.Errorf("mark payment expired: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// SetReceiptUploadURL attaches an uploaded receipt file to the payment
func (r *PaymentRepository) SetReceiptUploadURL(ctx context.Context, tx ports.DBTX, id, url string) error {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrPaymentNotFound
	}

	tag, err := pick(r.pool, tx).Exec(ctx, `
		UPDATE payments SET receipt_upload_url = $2, updated_at = now() WHERE id = $1`,
		paymentID, url)
	if err != nil {
		return fmt.Errorf("set receipt upload url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}

	return nil
}

// scanPayment maps one row onto the domain model
func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p                uuid.UUID
		provider, method string
		status           string
		reference        pgtype.Text
		receiverName     pgtype.Text
		receiverAccount  pgtype.Text
		claimed, tip     pgtype.Numeric
		verifiedAt       pgtype.Timestamptz
		verifiedBy       pgtype.Text
		failureReason    pgtype.Text
		receiptUploadURL pgtype.Text
		idempotencyKey   pgtype.Text
		metadataBytes    []byte
		payment          domain.Payment
	)

	err := row.Scan(
		&p,
		&payment.MerchantID,
		&payment.MerchantName,
		&provider,
		&method,
		&reference,
		&receiverName,
		&receiverAccount,
		&claimed,
		&tip,
		&payment.Currency,
		&status,
		&payment.ExpiresAt,
		&verifiedAt,
		&verifiedBy,
		&failureReason,
		&receiptUploadURL,
		&idempotencyKey,
		&metadataBytes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.ID = p.String()
	payment.Provider = domain.ProviderCode(provider)
	payment.Method = domain.PaymentMethod(method)
	payment.Status = domain.PaymentStatus(status)
	if reference.Valid {
		payment.Reference = reference.String
	}
	if receiverName.Valid {
		payment.ReceiverName = receiverName.String
	}
	if receiverAccount.Valid {
		payment.ReceiverAccount = receiverAccount.String
	}
	payment.VerifiedAt = timePtr(verifiedAt)
	payment.VerifiedBy = textPtr(verifiedBy)
	payment.FailureReason = textPtr(failureReason)
	payment.ReceiptUploadURL = textPtr(receiptUploadURL)
	payment.IdempotencyKey = textPtr(idempotencyKey)

	payment.ClaimedAmount, err = pgNumericToDecimal(claimed)
	if err != nil {
		return nil, fmt.Errorf("convert claimed amount: %w", err)
	}
	payment.TipAmount, err = pgNumericToDecimal(tip)
	if err != nil {
		return nil, fmt.Errorf("convert tip amount: %w", err)
	}

	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &payment.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &payment, nil
}
