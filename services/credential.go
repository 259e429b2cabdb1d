package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Credential format: "<payload>:<checksum>" where payload is
// "<ownerSecret><orderSecret>-<serial>" and checksum is the first 8 hex
// characters of SHA-256(payload). The truncated checksum is an integrity
// check for scanner input, not a security boundary; the owner-scoped store
// lookup is the real access control. Existing tickets in the field depend
// on the 8-character form, so it must not change.
const (
	ChecksumLength      = 8
	CredentialSeparator = ":"

	// MaxCredentialLength bounds scanner input before any other work.
	MaxCredentialLength = 200
)

// Checksum returns the first 8 lowercase hex characters of SHA-256(payload).
func Checksum(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:ChecksumLength]
}

// BuildPayload derives the serial-qualified payload from the per-owner and
// per-order secret basis.
func BuildPayload(ownerSecret, orderSecret string, serial int) string {
	return fmt.Sprintf("%s%s-%d", ownerSecret, orderSecret, serial)
}

// BuildCredential assembles the full checksum-protected credential string.
func BuildCredential(ownerSecret, orderSecret string, serial int) string {
	payload := BuildPayload(ownerSecret, orderSecret, serial)
	return payload + CredentialSeparator + Checksum(payload)
}

// SplitCredential splits on the LAST separator occurrence: the secret basis
// may itself contain the separator character, the checksum never does.
func SplitCredential(credential string) (payload, checksum string, ok bool) {
	i := strings.LastIndex(credential, CredentialSeparator)
	if i < 0 {
		return "", "", false
	}
	return credential[:i], credential[i+1:], true
}
