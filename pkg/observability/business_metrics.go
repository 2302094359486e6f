package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Payment lifecycle metrics
	paymentsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_created_total",
		Help: "Total number of payment claims created",
	}, []string{
		"merchant_id",
		"provider", // CBE, TELEBIRR, BOA, AWASH, DASHEN, OTHER, CASH
		"method",   // bank, cash
	})

	paymentsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_resolved_total",
		Help: "Total number of payments reaching a terminal state",
	}, []string{
		"merchant_id",
		"provider",
		"status", // verified, failed, expired, unverified
	})

	paymentAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_amount_total",
		Help: "Total claimed amount by terminal status, in minor units",
	}, []string{
		"merchant_id",
		"provider",
		"status",
		"currency",
	})

	// Verification claim metrics
	claimsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verification_claims_total",
		Help: "Total verification claims submitted by payers",
	}, []string{
		"provider",
		"kind", // reference, receipt_upload
	})

	confirmationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bank_confirmation_attempts_total",
		Help: "Total bank confirmation attempts by the worker",
	}, []string{
		"provider",
		"outcome", // confirmed, rejected, indeterminate, error
	})

	confirmationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bank_confirmation_duration_seconds",
		Help:    "Time from claim acceptance to a confirmation verdict",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{
		"provider",
	})

	// Webhook delivery metrics
	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Total webhook delivery attempts",
	}, []string{
		"event_type",
		"status", // success, failed, pending
	})

	webhookDeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Time to deliver a webhook",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{
		"event_type",
	})

	// Receipt upload metrics
	receiptUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_uploads_total",
		Help: "Total receipt file uploads",
	}, []string{
		"mime_type",
		"status", // stored, rejected
	})
)

// RecordPaymentCreated records a new payment claim
func RecordPaymentCreated(merchantID, provider, method string) {
	paymentsCreatedTotal.WithLabelValues(merchantID, provider, method).Inc()
}

// RecordPaymentResolved records a payment reaching a terminal state.
// Verified-to-created ratio is derived in PromQL:
// sum(rate(payments_resolved_total{status="verified"}[5m])) by (merchant_id)
// /
// sum(rate(payments_created_total[5m])) by (merchant_id)
func RecordPaymentResolved(merchantID, provider, status, currency string, amountMinorUnits int64) {
	paymentsResolvedTotal.WithLabelValues(merchantID, provider, status).Inc()
	paymentAmountTotal.WithLabelValues(merchantID, provider, status, currency).Add(float64(amountMinorUnits))
}

// RecordClaimSubmitted records a payer's verification claim
func RecordClaimSubmitted(provider, kind string) {
	claimsSubmittedTotal.WithLabelValues(provider, kind).Inc()
}

// RecordConfirmationAttempt records one bank confirmation attempt
func RecordConfirmationAttempt(provider, outcome string) {
	confirmationAttemptsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordConfirmationDuration records the claim-to-verdict latency
func RecordConfirmationDuration(provider string, seconds float64) {
	confirmationDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordWebhookDelivery records a webhook delivery attempt
func RecordWebhookDelivery(eventType, status string, duration float64) {
	webhookDeliveriesTotal.WithLabelValues(eventType, status).Inc()
	webhookDeliveryDuration.WithLabelValues(eventType).Observe(duration)
}

// RecordReceiptUpload records a receipt file upload attempt
func RecordReceiptUpload(mimeType, status string) {
	receiptUploadsTotal.WithLabelValues(mimeType, status).Inc()
}
