package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/domain"
	"github.com/fetanpay/verification-service/internal/middleware"
	paymentsvc "github.com/fetanpay/verification-service/internal/services/payment"
	verificationsvc "github.com/fetanpay/verification-service/internal/services/verification"
	webhooksvc "github.com/fetanpay/verification-service/internal/services/webhook"
	"github.com/fetanpay/verification-service/internal/testutil/mocks"
)

type nopPublisher struct{}

func (nopPublisher) PublishPaymentEvent(ctx context.Context, eventType string, payment *domain.Payment) {
}

type stubQueue struct {
	enqueued int
}

func (q *stubQueue) Enqueue(payment *domain.Payment, claim *domain.VerificationClaim) error {
	q.enqueued++
	return nil
}

// stubAuth stamps a fixed merchant ID, standing in for the API key
// middleware.
func stubAuth(merchantID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.ContextWithMerchantID(r.Context(), merchantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// passthroughAuth does not authenticate, so handlers must reject.
func passthroughAuth(next http.Handler) http.Handler {
	return next
}

type testEnv struct {
	mux      *http.ServeMux
	payments *mocks.MockPaymentRepository
	claims   *mocks.MockClaimRepository
	webhooks *mocks.MockWebhookRepository
	receipts *mocks.MockReceiptStore
	queue    *stubQueue
}

func newTestEnv(t *testing.T, auth func(http.Handler) http.Handler) *testEnv {
	t.Helper()

	paymentRepo := new(mocks.MockPaymentRepository)
	claimRepo := new(mocks.MockClaimRepository)
	webhookRepo := new(mocks.MockWebhookRepository)
	receipts := new(mocks.MockReceiptStore)
	queue := &stubQueue{}

	paymentService := paymentsvc.NewService(paymentRepo, nopPublisher{}, mocks.NopLogger{})
	verificationService := verificationsvc.NewService(
		&mocks.TxRunner{}, paymentRepo, claimRepo, receipts, paymentService, queue, mocks.NopLogger{})
	webhookService := webhooksvc.NewDeliveryService(webhookRepo, nil, zap.NewNop())

	handler := NewHandler(paymentService, verificationService, webhookService, zap.NewNop())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth)

	return &testEnv{
		mux:      mux,
		payments: paymentRepo,
		claims:   claimRepo,
		webhooks: webhookRepo,
		receipts: receipts,
		queue:    queue,
	}
}

func receiptPartHeader() textproto.MIMEHeader {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="receipt"; filename="receipt.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	return header
}

func pendingPayment(merchantID string) *domain.Payment {
	now := time.Now().UTC()
	return &domain.Payment{
		ID:            uuid.New().String(),
		MerchantID:    merchantID,
		MerchantName:  "Sheger Coffee",
		Provider:      domain.ProviderCBE,
		Method:        domain.PaymentMethodBank,
		Status:        domain.PaymentStatusPending,
		ClaimedAmount: decimal.NewFromInt(250),
		TipAmount:     decimal.Zero,
		Currency:      "ETB",
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(15 * time.Minute),
	}
}

func TestCreatePayment_Success(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))

	env.payments.On("Create", mock.Anything, nil, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.MerchantID == "merchant-1" &&
			p.Provider == domain.ProviderCBE &&
			p.Currency == "ETB" &&
			p.Status == domain.PaymentStatusPending
	})).Return(nil)

	body := `{"provider":"cbe","claimed_amount":"250.00","tip_amount":"25.00","merchant_name":"Sheger Coffee"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.PaymentStatusPending, created.Status)
	assert.Equal(t, "ETB", created.Currency)
	assert.True(t, created.ClaimedAmount.Equal(decimal.RequireFromString("250.00")))

	env.payments.AssertExpectations(t)
}

func TestCreatePayment_BadAmount(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))

	body := `{"provider":"cbe","claimed_amount":"twelve"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePayment_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, passthroughAuth)

	body := `{"provider":"cbe","claimed_amount":"250.00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogManualPayment_Success(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))

	env.payments.On("Create", mock.Anything, nil, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusUnverified && p.Method == domain.PaymentMethodCash
	})).Return(nil)

	body := `{"method":"cash","claimed_amount":"120"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/manual", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	env.payments.AssertExpectations(t)
}

func TestGetPayment_MerchantScoped(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-2"))

	payment := pendingPayment("merchant-1")
	env.payments.On("GetByID", mock.Anything, nil, payment.ID).Return(payment, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+payment.ID, nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	// Another merchant's payment must not leak.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListPayments_ReturnsEnvelope(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))

	env.payments.On("ListByMerchant", mock.Anything, nil, "merchant-1", int32(10), int32(0)).
		Return([]*domain.Payment{pendingPayment("merchant-1")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?limit=10", nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Payments []*domain.Payment `json:"payments"`
		Limit    int32             `json:"limit"`
		Offset   int32             `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Payments, 1)
	assert.Equal(t, int32(10), envelope.Limit)
}

func TestGetPublicStatus_PendingCountdown(t *testing.T) {
	env := newTestEnv(t, passthroughAuth)

	payment := pendingPayment("merchant-1")
	payment.Reference = "FT25346B61Q5"
	env.payments.On("GetByID", mock.Anything, nil, payment.ID).Return(payment, nil)

	req := httptest.NewRequest(http.MethodGet, "/payments/"+payment.ID+"/public", nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp publicStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Status)
	assert.False(t, resp.IsExpired)
	assert.Equal(t, "Sheger Coffee", resp.MerchantName)
	assert.Equal(t, "FT25346B61Q5", resp.Reference)
	assert.Equal(t, "250", resp.Amount)
	assert.Greater(t, resp.SecondsRemaining, int64(0))
	assert.Equal(t, "https://apps.cbe.com.et/?id=FT25346B61Q5", resp.ReceiptURL)

	// The versioned alias serves the same payload.
	aliasRec := httptest.NewRecorder()
	env.mux.ServeHTTP(aliasRec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+payment.ID+"/public", nil))
	assert.Equal(t, http.StatusOK, aliasRec.Code)
}

func TestGetPublicStatus_NotFound(t *testing.T) {
	env := newTestEnv(t, passthroughAuth)

	env.payments.On("GetByID", mock.Anything, nil, "missing").Return(nil, domain.ErrPaymentNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/missing/public", nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitClaim_JSONReference(t *testing.T) {
	env := newTestEnv(t, passthroughAuth)

	payment := pendingPayment("merchant-1")
	env.payments.On("GetByID", mock.Anything, nil, payment.ID).Return(payment, nil)
	env.claims.On("Create", mock.Anything, nil, mock.MatchedBy(func(c *domain.VerificationClaim) bool {
		return c.Kind == domain.ClaimKindReference && c.Reference != nil && *c.Reference == "FT25346B61Q5"
	})).Return(nil)

	body := `{"reference":"FT25346B61Q5"}`
	req := httptest.NewRequest(http.MethodPost, "/payments/"+payment.ID+"/verify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, env.queue.enqueued)
	env.claims.AssertExpectations(t)
}

func TestSubmitClaim_MultipartReceipt(t *testing.T) {
	env := newTestEnv(t, passthroughAuth)

	payment := pendingPayment("merchant-1")
	receiptURL := "https://receipts.fetanpay.et/" + payment.ID + "/abc.jpg"

	env.payments.On("GetByID", mock.Anything, nil, payment.ID).Return(payment, nil)
	env.receipts.On("Save", mock.Anything, payment.ID, "receipt.jpg", "image/jpeg", mock.Anything).
		Return(receiptURL, nil)
	env.payments.On("SetReceiptUploadURL", mock.Anything, nil, payment.ID, receiptURL).Return(nil)
	env.claims.On("Create", mock.Anything, nil, mock.MatchedBy(func(c *domain.VerificationClaim) bool {
		return c.Kind == domain.ClaimKindReceiptUpload && c.ReceiptURL != nil && *c.ReceiptURL == receiptURL
	})).Return(nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreatePart(receiptPartHeader())
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+payment.ID+"/verify", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	env.receipts.AssertExpectations(t)
	env.claims.AssertExpectations(t)
}

func TestSubmitClaim_TerminalPaymentConflict(t *testing.T) {
	env := newTestEnv(t, passthroughAuth)

	payment := pendingPayment("merchant-1")
	payment.Status = domain.PaymentStatusVerified
	env.payments.On("GetByID", mock.Anything, nil, payment.ID).Return(payment, nil)

	body := `{"reference":"FT25346B61Q5"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+payment.ID+"/verify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.ErrorCodePaymentTerminal), resp.Code)
	assert.Equal(t, "verified", resp.Details["status"])
}

func TestSubmitClaim_BothVariantsRejected(t *testing.T) {
	env := newTestEnv(t, passthroughAuth)

	payment := pendingPayment("merchant-1")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("reference", "FT25346B61Q5"))
	part, err := writer.CreatePart(receiptPartHeader())
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+payment.ID+"/verify", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListClaims_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))

	payment := pendingPayment("merchant-1")
	claim := &domain.VerificationClaim{
		ID:        uuid.New().String(),
		PaymentID: payment.ID,
		Kind:      domain.ClaimKindReference,
		Status:    domain.ClaimStatusConfirmed,
		CreatedAt: time.Now().UTC(),
	}

	env.payments.On("GetByID", mock.Anything, nil, payment.ID).Return(payment, nil)
	env.claims.On("ListByPayment", mock.Anything, nil, payment.ID).
		Return([]*domain.VerificationClaim{claim}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+payment.ID+"/claims", nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Claims []*domain.VerificationClaim `json:"claims"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Claims, 1)
}

func TestCreateWebhookSubscription_Success(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))

	env.webhooks.On("CreateSubscription", mock.Anything, nil, mock.MatchedBy(func(sub *domain.WebhookSubscription) bool {
		return sub.MerchantID == "merchant-1" &&
			sub.URL == "https://shop.example.et/hooks/fetanpay" &&
			sub.EventType == domain.EventPaymentVerified &&
			sub.Active
	})).Return(nil)

	body := `{"url":"https://shop.example.et/hooks/fetanpay","event_type":"payment.verified"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Secret string `json:"secret"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// The generated secret comes back once so the merchant can store it.
	assert.True(t, strings.HasPrefix(resp.Secret, "whsec_"))
	env.webhooks.AssertExpectations(t)
}

func TestCreateWebhookSubscription_UnknownEventType(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))

	body := `{"url":"https://shop.example.et/hooks","event_type":"payment.created"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env.webhooks.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestListWebhookSubscriptions(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))

	sub := &domain.WebhookSubscription{
		ID:         uuid.New().String(),
		MerchantID: "merchant-1",
		URL:        "https://shop.example.et/hooks/fetanpay",
		EventType:  domain.EventPaymentVerified,
		Active:     true,
	}
	env.webhooks.On("ListSubscriptionsByMerchant", mock.Anything, nil, "merchant-1").
		Return([]*domain.WebhookSubscription{sub}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks", nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Subscriptions []*domain.WebhookSubscription `json:"subscriptions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Subscriptions, 1)
	// Secrets never leave the service after registration.
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestDeactivateWebhookSubscription(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))
	id := uuid.New().String()

	env.webhooks.On("DeactivateSubscription", mock.Anything, nil, "merchant-1", id).Return(true, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/webhooks/"+id, nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	env.webhooks.AssertExpectations(t)
}

func TestDeactivateWebhookSubscription_NotFound(t *testing.T) {
	env := newTestEnv(t, stubAuth("merchant-1"))
	id := uuid.New().String()

	env.webhooks.On("DeactivateSubscription", mock.Anything, nil, "merchant-1", id).Return(false, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/webhooks/"+id, nil)
	rec := httptest.NewRecorder()

	env.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
