package payment

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/middleware"
	paymentsvc "github.com/fetanpay/verification-service/internal/services/payment"
	verificationsvc "github.com/fetanpay/verification-service/internal/services/verification"
	webhooksvc "github.com/fetanpay/verification-service/internal/services/webhook"
)

// maxUploadBytes bounds multipart claim bodies (10 MiB)
const maxUploadBytes = 10 << 20

// Handler serves the payment REST endpoints
type Handler struct {
	payments     *paymentsvc.Service
	verification *verificationsvc.Service
	webhooks     *webhooksvc.DeliveryService
	logger       *zap.Logger
}

// NewHandler creates a new payment handler
func NewHandler(
	payments *paymentsvc.Service,
	verification *verificationsvc.Service,
	webhooks *webhooksvc.DeliveryService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		payments:     payments,
		verification: verification,
		webhooks:     webhooks,
		logger:       logger,
	}
}

// createPaymentRequest is the POST /api/v1/payments body
type createPaymentRequest struct {
	Provider        string                 `json:"provider"`
	ReceiverName    string                 `json:"receiver_name"`
	ReceiverAccount string                 `json:"receiver_account"`
	ClaimedAmount   string                 `json:"claimed_amount"`
	TipAmount       string                 `json:"tip_amount"`
	Currency        string                 `json:"currency"`
	ExpirySeconds   int64                  `json:"expiry_seconds"`
	MerchantName    string                 `json:"merchant_name"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// CreatePayment handles POST /api/v1/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claimed, err := decimal.NewFromString(req.ClaimedAmount)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "claimed_amount must be a decimal string")
		return
	}
	tip := decimal.Zero
	if req.TipAmount != "" {
		tip, err = decimal.NewFromString(req.TipAmount)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "tip_amount must be a decimal string")
			return
		}
	}

	payment, err := h.payments.Create(r.Context(), paymentsvc.CreateRequest{
		MerchantID:      merchantID,
		MerchantName:    req.MerchantName,
		Provider:        domain.ProviderCode(strings.ToUpper(req.Provider)),
		ReceiverName:    req.ReceiverName,
		ReceiverAccount: req.ReceiverAccount,
		ClaimedAmount:   claimed,
		TipAmount:       tip,
		Currency:        req.Currency,
		ExpiryWindow:    time.Duration(req.ExpirySeconds) * time.Second,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
		Metadata:        req.Metadata,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, payment)
}

// logManualRequest is the POST /api/v1/payments/manual body
type logManualRequest struct {
	Provider      string                 `json:"provider"`
	Method        string                 `json:"method"`
	Reference     string                 `json:"reference"`
	ClaimedAmount string                 `json:"claimed_amount"`
	TipAmount     string                 `json:"tip_amount"`
	Currency      string                 `json:"currency"`
	MerchantName  string                 `json:"merchant_name"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// LogManualPayment handles POST /api/v1/payments/manual
func (h *Handler) LogManualPayment(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req logManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claimed, err := decimal.NewFromString(req.ClaimedAmount)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "claimed_amount must be a decimal string")
		return
	}
	tip := decimal.Zero
	if req.TipAmount != "" {
		tip, err = decimal.NewFromString(req.TipAmount)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "tip_amount must be a decimal string")
			return
		}
	}

	payment, err := h.payments.LogManual(r.Context(), paymentsvc.LogManualRequest{
		MerchantID:    merchantID,
		MerchantName:  req.MerchantName,
		Provider:      domain.ProviderCode(strings.ToUpper(req.Provider)),
		Method:        domain.PaymentMethod(strings.ToLower(req.Method)),
		Reference:     req.Reference,
		ClaimedAmount: claimed,
		TipAmount:     tip,
		Currency:      req.Currency,
		Metadata:      req.Metadata,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, payment)
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	payment, err := h.payments.Get(r.Context(), merchantID, r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, payment)
}

// ListPayments handles GET /api/v1/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := parseInt32(r.URL.Query().Get("limit"), 50)
	offset := parseInt32(r.URL.Query().Get("offset"), 0)

	payments, err := h.payments.List(r.Context(), merchantID, limit, offset)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"limit":    limit,
		"offset":   offset,
	})
}

// publicStatusResponse is the unauthenticated status page payload
type publicStatusResponse struct {
	PaymentID        string `json:"payment_id"`
	MerchantName     string `json:"merchant_name"`
	Status           string `json:"status"`
	IsExpired        bool   `json:"is_expired"`
	Provider         string `json:"receiver_provider"`
	Reference        string `json:"reference,omitempty"`
	ReceiverName     string `json:"receiver_name,omitempty"`
	ReceiverAccount  string `json:"receiver_account,omitempty"`
	Amount           string `json:"amount"`
	TipAmount        string `json:"tip_amount"`
	Currency         string `json:"currency"`
	ReceiptURL       string `json:"receipt_url,omitempty"`
	ExpiresAt        string `json:"expires_at"`
	SecondsRemaining int64  `json:"seconds_remaining"`
	FailureReason    string `json:"failure_reason,omitempty"`
}

// GetPublicStatus handles GET /payments/{id}/public.
// This is the endpoint the status page polls every 10 seconds; the
// countdown ticks client-side off seconds_remaining.
func (h *Handler) GetPublicStatus(w http.ResponseWriter, r *http.Request) {
	payment, err := h.payments.GetPublic(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	remaining := int64(time.Until(payment.ExpiresAt).Seconds())
	if remaining < 0 || payment.Status != domain.PaymentStatusPending {
		remaining = 0
	}

	resp := publicStatusResponse{
		PaymentID:        payment.ID,
		MerchantName:     payment.MerchantName,
		Status:           string(payment.Status),
		IsExpired:        payment.Status == domain.PaymentStatusExpired,
		Provider:         string(payment.Provider),
		Reference:        payment.Reference,
		ReceiverName:     payment.ReceiverName,
		ReceiverAccount:  payment.ReceiverAccount,
		Amount:           payment.ClaimedAmount.String(),
		TipAmount:        payment.TipAmount.String(),
		Currency:         payment.Currency,
		ReceiptURL:       payment.ReceiptURL(),
		ExpiresAt:        payment.ExpiresAt.UTC().Format(time.RFC3339),
		SecondsRemaining: remaining,
	}
	if payment.FailureReason != nil {
		resp.FailureReason = *payment.FailureReason
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// submitClaimRequest is the JSON variant of POST /api/v1/payments/{id}/verify
type submitClaimRequest struct {
	Reference string `json:"reference"`
}

// SubmitClaim handles POST /payments/{id}/verify. The payer
// submits either a JSON body with a transaction reference or a
// multipart body with a receipt file, never both.
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")

	req := verificationsvc.SubmitClaimRequest{PaymentID: paymentID}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid multipart body")
			return
		}

		req.Reference = r.FormValue("reference")

		file, header, err := r.FormFile("receipt")
		if err == nil {
			defer file.Close()
			req.File = file
			req.Filename = header.Filename
			req.MimeType = header.Header.Get("Content-Type")
		} else if err != http.ErrMissingFile {
			h.respondError(w, http.StatusBadRequest, "invalid receipt file")
			return
		}
	} else {
		var body submitClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Reference = body.Reference
	}

	claim, err := h.verification.SubmitClaim(r.Context(), req)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	// Confirmation is asynchronous: the payment comes back still pending.
	payment, err := h.payments.GetPublic(r.Context(), paymentID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"payment": payment,
		"claim":   claim,
	})
}

// ListClaims handles GET /api/v1/payments/{id}/claims
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	paymentID := r.PathValue("id")

	// Ownership check before exposing the claim trail.
	if _, err := h.payments.Get(r.Context(), merchantID, paymentID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	claims, err := h.verification.ListClaims(r.Context(), paymentID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"claims": claims})
}

func parseInt32(s string, def int32) int32 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return def
	}
	return int32(v)
}
