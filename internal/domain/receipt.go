package domain

import (
	"net/url"
	"strings"
)

// Receipt portal templates per provider. These are third-party bank
// systems: we only construct links to them, never call them. The shapes
// must match the portals exactly or the links 404.
const (
	cbeReceiptBase      = "https://apps.cbe.com.et/?id="
	telebirrReceiptBase = "https://transactioninfo.ethiotelecom.et/receipt/"
	boaReceiptBase      = "https://cs.bankofabyssinia.com/slip/?trx="
	awashReceiptBase    = "https://awashpay.awashbank.com:8225/"
	dashenReceiptBase   = "https://receipt.dashensuperapp.com/receipt/"
)

// ReceiptPortalURL maps a provider code and transaction reference to the
// provider's public receipt page. It returns "" when no portal link can
// be derived: cash payments, blank references, and providers without a
// known public portal (OTHER, CASH, anything unrecognized).
//
// References are provider-issued and alphanumeric in practice, but they
// arrive from untrusted input and are percent-encoded on substitution.
// Pure function, no I/O; cheap enough to call per table row.
func ReceiptPortalURL(provider ProviderCode, reference string, method PaymentMethod) string {
	if method == PaymentMethodCash {
		return ""
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ""
	}

	switch provider {
	case ProviderCBE:
		return cbeReceiptBase + url.QueryEscape(reference)
	case ProviderTelebirr:
		return telebirrReceiptBase + url.PathEscape(reference)
	case ProviderBOA:
		return boaReceiptBase + url.QueryEscape(reference)
	case ProviderAwash:
		return awashReceiptBase + url.PathEscape(reference)
	case ProviderDashen:
		return dashenReceiptBase + url.PathEscape(reference)
	}
	return ""
}
