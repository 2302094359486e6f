package payment

import "net/http"

// RegisterRoutes wires the payment endpoints onto the mux. The auth
// middleware wraps merchant-facing routes; the payer-facing status and
// claim endpoints stay open so a customer can submit proof without
// merchant credentials.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	mux.Handle("POST /api/v1/payments", auth(http.HandlerFunc(h.CreatePayment)))
	mux.Handle("POST /api/v1/payments/manual", auth(http.HandlerFunc(h.LogManualPayment)))
	mux.Handle("GET /api/v1/payments", auth(http.HandlerFunc(h.ListPayments)))
	mux.Handle("GET /api/v1/payments/{id}", auth(http.HandlerFunc(h.GetPayment)))
	mux.Handle("GET /api/v1/payments/{id}/claims", auth(http.HandlerFunc(h.ListClaims)))

	mux.Handle("POST /api/v1/webhooks", auth(http.HandlerFunc(h.CreateWebhookSubscription)))
	mux.Handle("GET /api/v1/webhooks", auth(http.HandlerFunc(h.ListWebhookSubscriptions)))
	mux.Handle("DELETE /api/v1/webhooks/{id}", auth(http.HandlerFunc(h.DeactivateWebhookSubscription)))

	// The payer-facing paths are unversioned; the status pages embed
	// them directly. The /api/v1 aliases exist for API clients that
	// prefix everything.
	mux.HandleFunc("GET /payments/{id}/public", h.GetPublicStatus)
	mux.HandleFunc("POST /payments/{id}/verify", h.SubmitClaim)
	mux.HandleFunc("GET /api/v1/payments/{id}/public", h.GetPublicStatus)
	mux.HandleFunc("POST /api/v1/payments/{id}/verify", h.SubmitClaim)
}
