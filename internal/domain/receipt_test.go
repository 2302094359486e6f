package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestReceiptPortalURL_KnownProviders verifies the exact portal templates.
// These must be reproduced bit-for-bit for compatibility with the banks'
// public receipt pages.
func TestReceiptPortalURL_KnownProviders(t *testing.T) {
	tests := []struct {
		name      string
		provider  ProviderCode
		reference string
		expected  string
	}{
		{
			name:      "cbe_query_template",
			provider:  ProviderCBE,
			reference: "FT25346B61Q5",
			expected:  "https://apps.cbe.com.et/?id=FT25346B61Q5",
		},
		{
			name:      "telebirr_path_template",
			provider:  ProviderTelebirr,
			reference: "CEH12345678",
			expected:  "https://transactioninfo.ethiotelecom.et/receipt/CEH12345678",
		},
		{
			name:      "boa_query_template",
			provider:  ProviderBOA,
			reference: "TRX0001",
			expected:  "https://cs.bankofabyssinia.com/slip/?trx=TRX0001",
		},
		{
			name:      "awash_path_template",
			provider:  ProviderAwash,
			reference: "AW556677",
			expected:  "https://awashpay.awashbank.com:8225/AW556677",
		},
		{
			name:      "dashen_path_template",
			provider:  ProviderDashen,
			reference: "DB998877",
			expected:  "https://receipt.dashensuperapp.com/receipt/DB998877",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReceiptPortalURL(tt.provider, tt.reference, PaymentMethodBank)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestReceiptPortalURL_NoPortal covers every case that must resolve to
// "no receipt available" rather than an error.
func TestReceiptPortalURL_NoPortal(t *testing.T) {
	tests := []struct {
		name      string
		provider  ProviderCode
		reference string
		method    PaymentMethod
	}{
		{name: "cash_method_always_empty", provider: ProviderCBE, reference: "FT123456", method: PaymentMethodCash},
		{name: "empty_reference", provider: ProviderCBE, reference: "", method: PaymentMethodBank},
		{name: "whitespace_reference", provider: ProviderDashen, reference: "   ", method: PaymentMethodBank},
		{name: "cash_provider", provider: ProviderCash, reference: "FT123456", method: PaymentMethodBank},
		{name: "other_provider", provider: ProviderOther, reference: "FT123456", method: PaymentMethodBank},
		{name: "unknown_provider_code", provider: ProviderCode("UNKNOWN_CODE"), reference: "FT123", method: PaymentMethodBank},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ReceiptPortalURL(tt.provider, tt.reference, tt.method))
		})
	}
}

// TestReceiptPortalURL_PercentEncoding verifies references are treated as
// untrusted input and escaped on substitution.
func TestReceiptPortalURL_PercentEncoding(t *testing.T) {
	t.Run("query_component_escaped", func(t *testing.T) {
		got := ReceiptPortalURL(ProviderCBE, "FT25 34&6", PaymentMethodBank)
		assert.Equal(t, "https://apps.cbe.com.et/?id=FT25+34%266", got)
	})

	t.Run("path_component_escaped", func(t *testing.T) {
		got := ReceiptPortalURL(ProviderTelebirr, "abc/def", PaymentMethodBank)
		assert.Equal(t, "https://transactioninfo.ethiotelecom.et/receipt/abc%2Fdef", got)
	})

	t.Run("reference_trimmed_before_substitution", func(t *testing.T) {
		got := ReceiptPortalURL(ProviderDashen, "  DB998877  ", PaymentMethodBank)
		assert.Equal(t, "https://receipt.dashensuperapp.com/receipt/DB998877", got)
	})
}

// TestPayment_ReceiptURL verifies uploaded receipts take precedence over
// the derived portal link.
func TestPayment_ReceiptURL(t *testing.T) {
	uploaded := "https://assets.fetanpay.et/receipts/pay_1/receipt.jpg"

	t.Run("uploaded_receipt_wins", func(t *testing.T) {
		p := &Payment{
			Provider:         ProviderCBE,
			Reference:        "FT25346B61Q5",
			Method:           PaymentMethodBank,
			ReceiptUploadURL: &uploaded,
		}
		assert.Equal(t, uploaded, p.ReceiptURL())
	})

	t.Run("derived_portal_link_when_no_upload", func(t *testing.T) {
		p := &Payment{
			Provider:  ProviderCBE,
			Reference: "FT25346B61Q5",
			Method:    PaymentMethodBank,
		}
		assert.Equal(t, "https://apps.cbe.com.et/?id=FT25346B61Q5", p.ReceiptURL())
	})

	t.Run("cash_payment_with_upload_still_has_receipt", func(t *testing.T) {
		p := &Payment{
			Provider:         ProviderCash,
			Method:           PaymentMethodCash,
			ReceiptUploadURL: &uploaded,
		}
		assert.Equal(t, uploaded, p.ReceiptURL())
	})

	t.Run("cash_payment_without_upload_has_none", func(t *testing.T) {
		p := &Payment{Provider: ProviderCash, Method: PaymentMethodCash}
		assert.Empty(t, p.ReceiptURL())
	})
}
