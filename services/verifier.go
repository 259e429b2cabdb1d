package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sheerif/eticketsv10/internal/status"
	"github.com/sheerif/eticketsv10/monitoring"
	"github.com/sheerif/eticketsv10/store"
)

// VerifyStatus is the stable outcome of one verification attempt.
type VerifyStatus string

const (
	VerifyOK          VerifyStatus = "ok"
	VerifyEmptyKey    VerifyStatus = "empty_key"
	VerifyKeyTooLong  VerifyStatus = "key_too_long"
	VerifyBadFormat   VerifyStatus = "bad_format"
	VerifyBadChecksum VerifyStatus = "bad_checksum"
	VerifyNotFound    VerifyStatus = "not_found"
)

// VerifyResult is what the gate gets back. It is also the value stored in
// the verification cache, so it must stay JSON-round-trippable.
type VerifyResult struct {
	Status     VerifyStatus `json:"status"`
	TicketID   int64        `json:"ticket_id,omitempty"`
	ItemName   string       `json:"item_name,omitempty"`
	VerifiedAt time.Time    `json:"verified_at,omitempty"`

	// FromCache marks results served from the cache. Not serialized.
	FromCache bool `json:"-"`
}

func (r *VerifyResult) OK() bool { return r.Status == VerifyOK }

type Verifier struct {
	store    store.TicketStore
	cache    *VerifyCache
	notifier *Notifier
	now      func() time.Time
}

// NewVerifier builds a verifier. cache may be nil: caching is an
// accelerator, never a correctness dependency.
func NewVerifier(st store.TicketStore, cache *VerifyCache, notifier *Notifier) *Verifier {
	return &Verifier{
		store:    st,
		cache:    cache,
		notifier: notifier,
		now:      time.Now,
	}
}

// Verify runs the verification state machine for one scan attempt:
// input validation, checksum recomputation, cache probe, owner-scoped store
// lookup, verified_at update. Input, checksum and lookup failures land in
// the result's Status; a non-nil error means the store itself failed and
// nothing can be said about the ticket.
func (v *Verifier) Verify(ctx context.Context, owner, rawKey string) (*VerifyResult, error) {
	credential := strings.TrimSpace(rawKey)

	if credential == "" {
		monitoring.TrackVerification(string(VerifyEmptyKey))
		return &VerifyResult{Status: VerifyEmptyKey}, nil
	}
	if len(credential) > MaxCredentialLength {
		monitoring.TrackVerification(string(VerifyKeyTooLong))
		return &VerifyResult{Status: VerifyKeyTooLong}, nil
	}

	payload, sum, ok := SplitCredential(credential)
	if !ok {
		monitoring.TrackVerification(string(VerifyBadFormat))
		return &VerifyResult{Status: VerifyBadFormat}, nil
	}

	if Checksum(payload) != sum {
		// Potential tampering: count it so the surrounding monitoring can
		// alert on a spike, and remember the negative outcome briefly.
		monitoring.TrackChecksumMismatch()
		monitoring.TrackVerification(string(VerifyBadChecksum))
		slog.Warn("credential failed checksum", "owner", owner, "prefix", cachePrefix(credential))
		res := &VerifyResult{Status: VerifyBadChecksum}
		v.cache.Put(ctx, credential, res)
		return res, nil
	}

	if cached := v.cache.Get(ctx, credential); cached != nil {
		monitoring.TrackVerification(string(cached.Status) + "_cached")
		return cached, nil
	}

	t, err := v.store.FindByCredentialAndOwner(ctx, credential, owner)
	if errors.Is(err, status.ErrTicketNotFound) {
		monitoring.TrackVerification(string(VerifyNotFound))
		res := &VerifyResult{Status: VerifyNotFound}
		v.cache.Put(ctx, credential, res)
		return res, nil
	}
	if err != nil {
		monitoring.TrackVerification("store_error")
		return nil, fmt.Errorf("verify: %w", err)
	}

	// Every successful check refreshes verified_at: it is a "last
	// verified" timestamp. Concurrent scanners race benignly, last write
	// wins.
	verifiedAt := v.now().UTC()
	if err := v.store.MarkVerified(ctx, t.ID, verifiedAt); err != nil {
		monitoring.TrackVerification("store_error")
		return nil, fmt.Errorf("verify: %w", err)
	}

	itemName := t.ItemRef
	if item, err := v.store.GetItem(ctx, t.ItemRef); err == nil {
		itemName = item.Name
	}

	res := &VerifyResult{
		Status:     VerifyOK,
		TicketID:   t.ID,
		ItemName:   itemName,
		VerifiedAt: verifiedAt,
	}
	monitoring.TrackVerification(string(VerifyOK))
	slog.Info("ticket verified", "ticket_id", t.ID, "owner", owner)
	v.notifier.TicketVerified(t, verifiedAt)
	v.cache.Put(ctx, credential, res)
	return res, nil
}
