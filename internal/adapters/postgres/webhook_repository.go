package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/domain/ports"
)

// WebhookRepository implements ports.WebhookRepository on pgx
type WebhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

// CreateSubscription inserts a merchant-registered endpoint
func (r *WebhookRepository) CreateSubscription(ctx context.Context, tx ports.DBTX, sub *domain.WebhookSubscription) error {
	id, err := uuid.Parse(sub.ID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}

	_, err = pick(r.pool, tx).Exec(ctx, `
		INSERT INTO webhook_subscriptions (id, merchant_id, url, secret, event_type, active)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id,
		sub.MerchantID,
		sub.URL,
		sub.Secret,
		sub.EventType,
		sub.Active,
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	return nil
}

// ListSubscriptionsByMerchant retrieves all of a merchant's subscriptions,
// active or not
func (r *WebhookRepository) ListSubscriptionsByMerchant(ctx context.Context, tx ports.DBTX, merchantID string) ([]*domain.WebhookSubscription, error) {
	rows, err := pick(r.pool, tx).Query(ctx, `
		SELECT id, merchant_id, url, secret, event_type, active, created_at
		FROM webhook_subscriptions
		WHERE merchant_id = $1
		ORDER BY created_at DESC`,
		merchantID)
	if err != nil {
		return nil, fmt.Errorf("list merchant subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.WebhookSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list merchant subscriptions: %w", err)
	}

	return subs, nil
}

// DeactivateSubscription flips active to false, scoped to the owning
// merchant so one merchant cannot disable another's endpoint
func (r *WebhookRepository) DeactivateSubscription(ctx context.Context, tx ports.DBTX, merchantID, id string) (bool, error) {
	subID, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}

	tag, err := pick(r.pool, tx).Exec(ctx, `
		UPDATE webhook_subscriptions
		SET active = false
		WHERE id = $1 AND merchant_id = $2 AND active = true`,
		subID, merchantID)
	if err != nil {
		return false, fmt.Errorf("deactivate subscription: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListActiveByMerchantAndEvent retrieves active subscriptions matching an event type
func (r *WebhookRepository) ListActiveByMerchantAndEvent(ctx context.Context, tx ports.DBTX, merchantID, eventType string) ([]*domain.WebhookSubscription, error) {
	rows, err := pick(r.pool, tx).Query(ctx, `
		SELECT id, merchant_id, url, secret, event_type, active, created_at
		FROM webhook_subscriptions
		WHERE merchant_id = $1 AND event_type = $2 AND active = true`,
		merchantID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.WebhookSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	return subs, nil
}

// GetSubscription retrieves a subscription by its ID
func (r *WebhookRepository) GetSubscription(ctx context.Context, tx ports.DBTX, id string) (*domain.WebhookSubscription, error) {
	subID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrorCodeInternalError, "subscription not found").
			WithDetail("subscription_id", id)
	}

	row := pick(r.pool, tx).QueryRow(ctx, `
		SELECT id, merchant_id, url, secret, event_type, active, created_at
		FROM webhook_subscriptions WHERE id = $1`,
		subID)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeInternalError, "subscription not found").
				WithDetail("subscription_id", id)
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return sub, nil
}

// CreateDelivery inserts a delivery audit row
func (r *WebhookRepository) CreateDelivery(ctx context.Context, tx ports.DBTX, delivery *domain.WebhookDelivery) error {
	id, err := uuid.Parse(delivery.ID)
	if err != nil {
		return fmt.Errorf("invalid delivery ID: %w", err)
	}
	subID, err := uuid.Parse(delivery.SubscriptionID)
	if err != nil {
		return fmt.Errorf("invalid subscription ID: %w", err)
	}

	var httpStatus pgtype.Int4
	if delivery.HTTPStatusCode != nil {
		httpStatus = pgtype.Int4{Int32: int32(*delivery.HTTPStatusCode), Valid: true}
	}

	_, err = pick(r.pool, tx).Exec(ctx, `
		INSERT INTO webhook_deliveries (
			id, subscription_id, event_type, payload, status, attempts,
			next_retry_at, delivered_at, error_message, http_status_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id,
		subID,
		delivery.EventType,
		delivery.Payload,
		string(delivery.Status),
		delivery.Attempts,
		nullTime(delivery.NextRetryAt),
		nullTime(delivery.DeliveredAt),
		nullTextPtr(delivery.ErrorMessage),
		httpStatus,
	)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}

	return nil
}

// ListPendingDeliveries retrieves deliveries due for a (re)attempt
func (r *WebhookRepository) ListPendingDeliveries(ctx context.Context, tx ports.DBTX, limit int32) ([]*domain.WebhookDelivery, error) {
	rows, err := pick(r.pool, tx).Query(ctx, `
		SELECT id, subscription_id, event_type, payload, status, attempts,
		       next_retry_at, delivered_at, error_message, http_status_code, created_at
		FROM webhook_deliveries
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= now())
		ORDER BY created_at ASC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*domain.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}

	return deliveries, nil
}

// UpdateDeliveryStatus persists the outcome of a delivery attempt
func (r *WebhookRepository) UpdateDeliveryStatus(ctx context.Context, tx ports.DBTX, delivery *domain.WebhookDelivery) error {
	id, err := uuid.Parse(delivery.ID)
	if err != nil {
		return fmt.Errorf("invalid delivery ID: %w", err)
	}

	var httpStatus pgtype.Int4
	if delivery.HTTPStatusCode != nil {
		httpStatus = pgtype.Int4{Int32: int32(*delivery.HTTPStatusCode), Valid: true}
	}

	_, err = pick(r.pool, tx).Exec(ctx, `
		UPDATE webhook_deliveries
		SET status = $2, attempts = $3, next_retry_at = $4, delivered_at = $5,
		    error_message = $6, http_status_code = $7
		WHERE id = $1`,
		id,
		string(delivery.Status),
		delivery.Attempts,
		nullTime(delivery.NextRetryAt),
		nullTime(delivery.DeliveredAt),
		nullTextPtr(delivery.ErrorMessage),
		httpStatus,
	)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}

	return nil
}

func scanSubscription(row pgx.Row) (*domain.WebhookSubscription, error) {
	var (
		id         uuid.UUID
		merchantID string
		sub        domain.WebhookSubscription
	)

	err := row.Scan(&id, &merchantID, &sub.URL, &sub.Secret, &sub.EventType, &sub.Active, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}

	sub.ID = id.String()
	sub.MerchantID = merchantID

	return &sub, nil
}

func scanDelivery(row pgx.Row) (*domain.WebhookDelivery, error) {
	var (
		id          uuid.UUID
		subID       uuid.UUID
		status      string
		nextRetryAt pgtype.Timestamptz
		deliveredAt pgtype.Timestamptz
		errMsg      pgtype.Text
		httpStatus  pgtype.Int4
		d           domain.WebhookDelivery
	)

	err := row.Scan(&id, &subID, &d.EventType, &d.Payload, &status, &d.Attempts,
		&nextRetryAt, &deliveredAt, &errMsg, &httpStatus, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	d.ID = id.String()
	d.SubscriptionID = subID.String()
	d.Status = domain.WebhookDeliveryStatus(status)
	d.NextRetryAt = timePtr(nextRetryAt)
	d.DeliveredAt = timePtr(deliveredAt)
	d.ErrorMessage = textPtr(errMsg)
	if httpStatus.Valid {
		v := int(httpStatus.Int32)
		d.HTTPStatusCode = &v
	}

	return &d, nil
}
