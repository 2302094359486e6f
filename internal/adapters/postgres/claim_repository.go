package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
)

// ClaimRepository implements ports.ClaimRepository on pgx
type ClaimRepository struct {
	pool *pgxpool.Pool
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(pool *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

// Create inserts a new verification claim
func (r *ClaimRepository) Create(ctx context.Context, tx ports.DBTX, claim *domain.VerificationClaim) error {
	id, err := uuid.Parse(claim.ID)
	if err != nil {
		return fmt.Errorf("invalid claim ID: %w", err)
	}
	paymentID, err := uuid.Parse(claim.PaymentID)
	if err != nil {
		return fmt.Errorf("invalid payment ID: %w", err)
	}

	_, err = pick(r.pool, tx).Exec(ctx, `
		INSERT INTO verification_claims (id, payment_id, kind, status, reference, receipt_url, mime_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		paymentID,
		string(claim.Kind),
		string(claim.Status),
		nullTextPtr(claim.Reference),
		nullTextPtr(claim.ReceiptURL),
		nullTextPtr(claim.MimeType),
	)
	if err != nil {
		return fmt.Errorf("create claim: %w", err)
	}

	return nil
}

// ListByPayment retrieves all claims made against a payment, oldest first
func (r *ClaimRepository) ListByPayment(ctx context.Context, tx ports.DBTX, paymentID string) ([]*domain.VerificationClaim, error) {
	id, err := uuid.Parse(paymentID)
	if err != nil {
		return nil, domain.ErrPaymentNotFound
	}

	rows, err := pick(r.pool, tx).Query(ctx, `
		SELECT id, payment_id, kind, status, reference, receipt_url, mime_type, resolved_at, created_at
		FROM verification_claims
		WHERE payment_id = $1
		ORDER BY created_at ASC`,
		id)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []*domain.VerificationClaim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	return claims, nil
}

// UpdateStatus records the confirmation worker's verdict on a claim
func (r *ClaimRepository) UpdateStatus(ctx context.Context, tx ports.DBTX, id string, status domain.ClaimStatus, resolvedAt time.Time) error {
	claimID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid claim ID: %w", err)
	}

	tag, err := pick(r.pool, tx).Exec(ctx, `
		UPDATE verification_claims SET status = $2, resolved_at = $3 WHERE id = $1`,
		claimID, string(status), resolvedAt)
	if err != nil {
		return fmt.Errorf("update claim status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeInternalError, "claim not found").
			WithDetail("claim_id", id)
	}

	return nil
}

func scanClaim(row pgx.Row) (*domain.VerificationClaim, error) {
	var (
		id         uuid.UUID
		paymentID  uuid.UUID
		kind       string
		status     string
		reference  pgtype.Text
		receiptURL pgtype.Text
		mimeType   pgtype.Text
		resolvedAt pgtype.Timestamptz
		claim      domain.VerificationClaim
	)

	err := row.Scan(&id, &paymentID, &kind, &status, &reference, &receiptURL, &mimeType, &resolvedAt, &claim.CreatedAt)
	if err != nil {
		return nil, err
	}

	claim.ID = id.String()
	claim.PaymentID = paymentID.String()
	claim.Kind = domain.ClaimKind(kind)
	claim.Status = domain.ClaimStatus(status)
	claim.Reference = textPtr(reference)
	claim.ReceiptURL = textPtr(receiptURL)
	claim.MimeType = textPtr(mimeType)
	claim.ResolvedAt = timePtr(resolvedAt)

	return &claim, nil
}
