// Package image redeems credits for text-to-image generations.
package image

import (
	"context"
	"encoding/base64"
)

// Generator renders a prompt into an encoded image.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Image, error)
}

// CreditStore is the slice of the user credit ledger image generation needs.
type CreditStore interface {
	SpendCredit(ctx context.Context, userID int64) error
	RefundCredit(ctx context.Context, userID int64) error
	GetCredits(ctx context.Context, userID int64) (int64, error)
}

type Image struct {
	Data        []byte
	ContentType string
}

// DataURI renders the image for direct use in an <img> src attribute.
func (i *Image) DataURI() string {
	ct := i.ContentType
	if ct == "" {
		ct = "image/png"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

type Result struct {
	Image         *Image
	CreditBalance int64
}
