package ports

import (
	"context"
	"io"
)

// ReceiptStore persists uploaded receipt files (images/PDFs from
// manually logged payments) and returns a publicly servable URL.
type ReceiptStore interface {
	Save(ctx context.Context, paymentID, filename, mimeType string, r io.Reader) (url string, err error)
}
