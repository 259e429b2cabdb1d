package status

import "errors"

// Verification input and outcome errors. These are terminal: the caller
// never retries them.
var (
	ErrEmptyCredential   = errors.New("verify: credential required")
	ErrCredentialTooLong = errors.New("verify: credential too long")
	ErrMalformedCredential = errors.New("verify: credential has no checksum separator")
	ErrChecksumMismatch  = errors.New("verify: checksum mismatch")
	// ErrTicketNotFound covers both "no such credential" and "credential
	// belongs to someone else". The two are indistinguishable on purpose.
	ErrTicketNotFound = errors.New("verify: ticket not found or unauthorized")
)

// Store errors.
var (
	ErrDuplicateCredential = errors.New("store: credential already exists")
	ErrItemNotFound        = errors.New("store: item not found")
	ErrItemReferenced      = errors.New("store: item is referenced by issued tickets")
)

// Issuance errors.
var (
	ErrIssuanceFailed = errors.New("issue: unable to allocate a unique credential")
	ErrEncodingFailed = errors.New("issue: qr encoding failed")
)
