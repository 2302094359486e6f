package domain

import (
	"regexp"
	"strings"
	"time"
)

// ClaimKind distinguishes the two mutually exclusive ways a payer can
// assert they paid: typing the bank transaction reference, or uploading
// a photo/PDF of the receipt.
type ClaimKind string

const (
	ClaimKindReference     ClaimKind = "reference"
	ClaimKindReceiptUpload ClaimKind = "receipt_upload"
)

// ClaimStatus tracks the asynchronous confirmation of a claim. The claim
// record itself never changes the payment; the confirmation worker does.
type ClaimStatus string

const (
	ClaimStatusQueued    ClaimStatus = "queued"
	ClaimStatusConfirmed ClaimStatus = "confirmed"
	ClaimStatusRejected  ClaimStatus = "rejected"
)

// VerificationClaim records a payer's assertion of payment against a
// PENDING payment. Submitting a claim does not verify anything: the
// claim is persisted, handed to the confirmation worker, and the payment
// stays PENDING until bank-side confirmation resolves.
type VerificationClaim struct {
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt *time.Time  `json:"resolved_at"`
	Reference  *string     `json:"reference"`
	ReceiptURL *string     `json:"receipt_url"`
	MimeType   *string     `json:"mime_type"`
	ID         string      `json:"id"`
	PaymentID  string      `json:"payment_id"`
	Kind       ClaimKind   `json:"kind"`
	Status     ClaimStatus `json:"status"`
}

// referencePattern is the generic shape of provider transaction
// references: alphanumeric, tolerant of dashes, bounded length.
var referencePattern = regexp.MustCompile(`^[A-Za-z0-9-]{4,64}$`)

// ValidateReference checks a typed transaction reference against the
// provider's known format. CBE core-banking references always carry an
// "FT" prefix (e.g. FT25346B61Q5); other providers get the generic
// alphanumeric check. Validation is defensive: the dashboards run the
// same checks client-side before submitting.
func ValidateReference(provider ProviderCode, reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ErrClaimReferenceMissing
	}
	if !referencePattern.MatchString(reference) {
		return NewDomainError(ErrorCodeClaimReferenceInvalid, "reference contains invalid characters or length").
			WithDetail("reference", reference)
	}
	if provider == ProviderCBE && !strings.HasPrefix(strings.ToUpper(reference), "FT") {
		return NewDomainError(ErrorCodeClaimReferenceInvalid, "CBE references must start with FT").
			WithDetail("reference", reference)
	}
	return nil
}

// GetReference safely retrieves the typed reference.
func (c *VerificationClaim) GetReference() string {
	if c.Reference != nil {
		return *c.Reference
	}
	return ""
}
