package payment

import (
	"encoding/json"
	"net/http"

	"github.com/fetanpay/verification-service/internal/middleware"
	webhooksvc "github.com/fetanpay/verification-service/internal/services/webhook"
)

// createSubscriptionRequest is the POST /api/v1/webhooks body
type createSubscriptionRequest struct {
	URL       string `json:"url"`
	Secret    string `json:"secret"`
	EventType string `json:"event_type"`
}

// CreateWebhookSubscription handles POST /api/v1/webhooks. The response
// carries the signing secret once; it is never echoed again.
func (h *Handler) CreateWebhookSubscription(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, secret, err := h.webhooks.RegisterSubscription(r.Context(), webhooksvc.RegisterSubscriptionRequest{
		MerchantID: merchantID,
		URL:        req.URL,
		Secret:     req.Secret,
		EventType:  req.EventType,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"subscription": sub,
		"secret":       secret,
	})
}

// ListWebhookSubscriptions handles GET /api/v1/webhooks
func (h *Handler) ListWebhookSubscriptions(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	subs, err := h.webhooks.ListSubscriptions(r.Context(), merchantID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": subs})
}

// DeactivateWebhookSubscription handles DELETE /api/v1/webhooks/{id}
func (h *Handler) DeactivateWebhookSubscription(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := middleware.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.webhooks.DeactivateSubscription(r.Context(), merchantID, r.PathValue("id")); err != nil {
		h.respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
