package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	t.Run("without_wrapped_error", func(t *testing.T) {
		err := NewDomainError(ErrorCodePaymentNotFound, "payment not found")
		assert.Equal(t, "PAYMENT_NOT_FOUND: payment not found", err.Error())
	})

	t.Run("with_wrapped_error", func(t *testing.T) {
		inner := errors.New("no rows in result set")
		err := WrapError(ErrorCodeDatabaseError, "database error", inner)
		assert.Contains(t, err.Error(), "INTERNAL_DATABASE_ERROR")
		assert.Contains(t, err.Error(), "no rows in result set")
	})
}

func TestDomainError_Unwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := WrapError(ErrorCodeConfirmUnavailable, "bank confirmation temporarily unavailable", inner)

	assert.True(t, errors.Is(err, inner))

	var domainErr *DomainError
	assert.True(t, errors.As(err, &domainErr))
	assert.Equal(t, ErrorCodeConfirmUnavailable, domainErr.Code)
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorCodeClaimReferenceInvalid, "bad reference").
		WithDetail("reference", "XYZ").
		WithDetail("provider", "CBE")

	assert.Equal(t, "XYZ", err.Details["reference"])
	assert.Equal(t, "CBE", err.Details["provider"])
}

func TestErrorClassifiers(t *testing.T) {
	t.Run("conflict_classification", func(t *testing.T) {
		assert.True(t, IsConflictError(ErrPaymentTerminal))
		assert.True(t, IsConflictError(ErrIdempotencyConflict))
		assert.False(t, IsConflictError(ErrPaymentNotFound))
	})

	t.Run("not_found_classification", func(t *testing.T) {
		assert.True(t, IsNotFoundError(ErrPaymentNotFound))
		assert.True(t, IsNotFoundError(ErrMerchantNotFound))
		assert.False(t, IsNotFoundError(ErrPaymentTerminal))
	})

	t.Run("validation_classification", func(t *testing.T) {
		assert.True(t, IsValidationError(ErrClaimReferenceMissing))
		assert.True(t, IsValidationError(ErrClaimVariantConflict))
		assert.True(t, IsValidationError(ErrClaimFileMissing))
		assert.True(t, IsValidationError(ErrValidationAmountInvalid))
		assert.False(t, IsValidationError(ErrPaymentNotFound))
	})

	t.Run("auth_classification", func(t *testing.T) {
		assert.True(t, IsAuthError(ErrAuthMissing))
		assert.True(t, IsAuthError(ErrAuthInvalid))
		assert.False(t, IsAuthError(ErrPaymentTerminal))
	})

	t.Run("classifiers_see_through_wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("submit claim: %w", ErrPaymentTerminal)
		assert.True(t, IsConflictError(wrapped))
		assert.Equal(t, ErrorCodePaymentTerminal, GetErrorCode(wrapped))
	})

	t.Run("plain_errors_have_no_code", func(t *testing.T) {
		assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	})
}
