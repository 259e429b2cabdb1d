package models

import (
	"time"
)

// Ticket is the issued credential record. Everything except VerifiedAt and
// QRImage is immutable after creation.
type Ticket struct {
	ID         int64      `json:"id" db:"id"`
	Owner      string     `json:"owner" db:"owner"`
	OrderRef   string     `json:"order_ref" db:"order_ref"`
	ItemRef    string     `json:"item_ref" db:"item_ref"`
	Credential string     `json:"credential" db:"credential"`
	QRImage    string     `json:"qr_image,omitempty" db:"qr_image"`
	CreatedAt  time.Time  `json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// IsVerified reports whether the ticket passed verification at least once.
func (t *Ticket) IsVerified() bool {
	return t.VerifiedAt != nil
}
