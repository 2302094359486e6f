package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateReference covers the defensive server-side format checks
// that mirror the dashboard's client-side validation.
func TestValidateReference(t *testing.T) {
	tests := []struct {
		name      string
		provider  ProviderCode
		reference string
		wantCode  ErrorCode
	}{
		{
			name:      "valid_cbe_reference",
			provider:  ProviderCBE,
			reference: "FT25346B61Q5",
		},
		{
			name:      "cbe_lowercase_prefix_accepted",
			provider:  ProviderCBE,
			reference: "ft25346b61q5",
		},
		{
			name:      "cbe_without_ft_prefix_rejected",
			provider:  ProviderCBE,
			reference: "25346B61Q5",
			wantCode:  ErrorCodeClaimReferenceInvalid,
		},
		{
			name:      "valid_dashen_reference",
			provider:  ProviderDashen,
			reference: "DB998877",
		},
		{
			name:      "telebirr_no_prefix_requirement",
			provider:  ProviderTelebirr,
			reference: "CEH1A2B3C4D",
		},
		{
			name:      "empty_reference_rejected",
			provider:  ProviderCBE,
			reference: "",
			wantCode:  ErrorCodeClaimReferenceMissing,
		},
		{
			name:      "whitespace_only_rejected",
			provider:  ProviderBOA,
			reference: "   ",
			wantCode:  ErrorCodeClaimReferenceMissing,
		},
		{
			name:      "reference_with_spaces_rejected",
			provider:  ProviderAwash,
			reference: "AW 123 456",
			wantCode:  ErrorCodeClaimReferenceInvalid,
		},
		{
			name:      "too_short_rejected",
			provider:  ProviderBOA,
			reference: "AB1",
			wantCode:  ErrorCodeClaimReferenceInvalid,
		},
		{
			name:      "surrounding_whitespace_trimmed",
			provider:  ProviderCBE,
			reference: "  FT25346B61Q5  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReference(tt.provider, tt.reference)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tt.wantCode, GetErrorCode(err))
		})
	}
}

// TestVerificationClaim_GetReference tests nil safety of the accessor.
func TestVerificationClaim_GetReference(t *testing.T) {
	ref := "FT25346B61Q5"

	t.Run("returns_reference_when_present", func(t *testing.T) {
		c := &VerificationClaim{Kind: ClaimKindReference, Reference: &ref}
		assert.Equal(t, ref, c.GetReference())
	})

	t.Run("returns_empty_for_upload_claim", func(t *testing.T) {
		c := &VerificationClaim{Kind: ClaimKindReceiptUpload}
		assert.Equal(t, "", c.GetReference())
	})
}
