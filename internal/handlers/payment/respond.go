package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fetanpay/verification-service/internal/domain"
)

// errorResponse is the JSON error envelope
type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondDomainError maps domain error codes onto HTTP statuses.
// PAYMENT_TERMINAL and IDEMPOTENCY_CONFLICT are 409 by contract.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		h.logger.Error("Unhandled error", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	case domain.IsConflictError(err):
		status = http.StatusConflict
	case domain.IsValidationError(err):
		status = http.StatusBadRequest
	case domain.IsAuthError(err):
		status = http.StatusUnauthorized
	case domainErr.Code == domain.ErrorCodeMerchantRequired:
		status = http.StatusBadRequest
	case domainErr.Code == domain.ErrorCodeConfirmUnavailable:
		status = http.StatusServiceUnavailable
	}

	resp := errorResponse{
		Error: domainErr.Message,
		Code:  string(domainErr.Code),
	}
	if len(domainErr.Details) > 0 {
		resp.Details = domainErr.Details
	}

	h.writeJSON(w, status, resp)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
