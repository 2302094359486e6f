package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Authentication Errors (AUTH_*)
	ErrorCodeAuthMissing          ErrorCode = "AUTH_MISSING"
	ErrorCodeAuthInvalid          ErrorCode = "AUTH_INVALID"
	ErrorCodeAuthMerchantMismatch ErrorCode = "AUTH_MERCHANT_MISMATCH"

	// Merchant Errors (MERCHANT_*)
	ErrorCodeMerchantNotFound ErrorCode = "MERCHANT_NOT_FOUND"
	ErrorCodeMerchantRequired ErrorCode = "MERCHANT_REQUIRED"

	// Payment Errors (PAYMENT_*)
	ErrorCodePaymentNotFound ErrorCode = "PAYMENT_NOT_FOUND"
	// PAYMENT_TERMINAL maps to HTTP 409: the payment already reached
	// VERIFIED, FAILED, EXPIRED or UNVERIFIED and cannot move again.
	ErrorCodePaymentTerminal     ErrorCode = "PAYMENT_TERMINAL"
	ErrorCodePaymentExpired      ErrorCode = "PAYMENT_EXPIRED"
	ErrorCodePaymentInvalidState ErrorCode = "PAYMENT_INVALID_STATE"

	// Claim Errors (CLAIM_*)
	ErrorCodeClaimReferenceMissing ErrorCode = "CLAIM_REFERENCE_MISSING"
	ErrorCodeClaimReferenceInvalid ErrorCode = "CLAIM_REFERENCE_INVALID"
	ErrorCodeClaimVariantConflict  ErrorCode = "CLAIM_VARIANT_CONFLICT"
	ErrorCodeClaimFileMissing      ErrorCode = "CLAIM_FILE_MISSING"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"

	// Confirmation gateway errors (CONFIRM_*)
	ErrorCodeConfirmUnavailable ErrorCode = "CONFIRM_UNAVAILABLE"
	ErrorCodeConfirmRejected    ErrorCode = "CONFIRM_REJECTED"

	// Webhook Errors (WEBHOOK_*)
	ErrorCodeWebhookNotFound ErrorCode = "WEBHOOK_NOT_FOUND"

	// Idempotency Errors (IDEMPOTENCY_*)
	ErrorCodeIdempotencyConflict ErrorCode = "IDEMPOTENCY_CONFLICT"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePaymentNotFound ||
		code == ErrorCodeMerchantNotFound ||
		code == ErrorCodeWebhookNotFound
}

// IsConflictError checks if an error should surface as HTTP 409
func IsConflictError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePaymentTerminal || code == ErrorCodeIdempotencyConflict
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationMissingField ||
		code == ErrorCodeClaimReferenceMissing ||
		code == ErrorCodeClaimReferenceInvalid ||
		code == ErrorCodeClaimVariantConflict ||
		code == ErrorCodeClaimFileMissing
}

// IsAuthError checks if an error is authentication related
func IsAuthError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeAuthMissing ||
		code == ErrorCodeAuthInvalid ||
		code == ErrorCodeAuthMerchantMismatch
}

// Structured error instances
var (
	ErrAuthMissing          = NewDomainError(ErrorCodeAuthMissing, "authentication required")
	ErrAuthInvalid          = NewDomainError(ErrorCodeAuthInvalid, "invalid API key")
	ErrAuthMerchantMismatch = NewDomainError(ErrorCodeAuthMerchantMismatch, "merchant ID mismatch")

	ErrMerchantNotFound = NewDomainError(ErrorCodeMerchantNotFound, "merchant not found")
	ErrMerchantRequired = NewDomainError(ErrorCodeMerchantRequired, "merchant_id is required")

	ErrPaymentNotFound = NewDomainError(ErrorCodePaymentNotFound, "payment not found")
	ErrPaymentTerminal = NewDomainError(ErrorCodePaymentTerminal, "payment already reached a terminal state")
	ErrPaymentExpired  = NewDomainError(ErrorCodePaymentExpired, "payment has expired")

	ErrClaimReferenceMissing = NewDomainError(ErrorCodeClaimReferenceMissing, "transaction reference is required")
	ErrClaimVariantConflict  = NewDomainError(ErrorCodeClaimVariantConflict, "submit either a reference or a receipt file, not both")
	ErrClaimFileMissing      = NewDomainError(ErrorCodeClaimFileMissing, "receipt file is required")

	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")
	ErrValidationMissingField  = NewDomainError(ErrorCodeValidationMissingField, "required field missing")

	ErrConfirmUnavailable = NewDomainError(ErrorCodeConfirmUnavailable, "bank confirmation temporarily unavailable")

	ErrWebhookNotFound = NewDomainError(ErrorCodeWebhookNotFound, "webhook subscription not found")

	ErrIdempotencyConflict = NewDomainError(ErrorCodeIdempotencyConflict, "idempotency key conflict")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
