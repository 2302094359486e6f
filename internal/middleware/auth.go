package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/adapters/ports"
)

type contextKey string

const merchantIDKey contextKey = "merchant_id"

// MerchantIDFromContext returns the authenticated merchant ID, if any
func MerchantIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(merchantIDKey).(string)
	return id, ok
}

// APIKeyAuthenticator authenticates dashboard and API requests with the
// X-Merchant-ID / X-API-Key header pair. Keys live in the secret manager
// under fetanpay/merchants/{merchant_id}/api-key.
type APIKeyAuthenticator struct {
	secrets ports.SecretManagerAdapter
	logger  *zap.Logger
}

// NewAPIKeyAuthenticator creates a new authenticator
func NewAPIKeyAuthenticator(secrets ports.SecretManagerAdapter, logger *zap.Logger) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{
		secrets: secrets,
		logger:  logger,
	}
}

// Middleware rejects requests without a valid key and stamps the
// merchant ID into the request context.
func (a *APIKeyAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		merchantID := r.Header.Get("X-Merchant-ID")
		apiKey := r.Header.Get("X-API-Key")

		if merchantID == "" || apiKey == "" {
			a.unauthorized(w, "AUTH_MISSING", "merchant ID and API key are required")
			return
		}

		secretPath := fmt.Sprintf("fetanpay/merchants/%s/api-key", merchantID)
		secret, err := a.secrets.GetSecret(r.Context(), secretPath)
		if err != nil {
			a.logger.Warn("API key lookup failed",
				zap.String("merchant_id", merchantID),
				zap.Error(err),
			)
			a.unauthorized(w, "AUTH_INVALID", "invalid API key")
			return
		}

		if subtle.ConstantTimeCompare([]byte(secret.Value), []byte(apiKey)) != 1 {
			a.logger.Warn("API key mismatch",
				zap.String("merchant_id", merchantID),
				zap.String("remote_addr", r.RemoteAddr),
			)
			a.unauthorized(w, "AUTH_INVALID", "invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), merchantIDKey, merchantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *APIKeyAuthenticator) unauthorized(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  code,
	})
}

// ContextWithMerchantID stamps a merchant ID onto a context (test helper
// and internal callers)
func ContextWithMerchantID(ctx context.Context, merchantID string) context.Context {
	return context.WithValue(ctx, merchantIDKey, merchantID)
}
