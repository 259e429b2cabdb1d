package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sheerif/eticketsv10/internal/status"
	"github.com/sheerif/eticketsv10/models"
	"github.com/sheerif/eticketsv10/monitoring"
	"github.com/sheerif/eticketsv10/store"
)

// Encoder turns the final credential string into an opaque visual encoding
// (a QR PNG in production).
type Encoder interface {
	Encode(credential string) ([]byte, error)
}

// MediaStore persists encoded bytes and returns a retrievable reference.
type MediaStore interface {
	Save(name string, data []byte) (string, error)
}

// IssueRequest carries the identities and the secret basis for one order.
// The secrets come from the surrounding application's identity and order
// stores; this subsystem only consumes them.
type IssueRequest struct {
	Owner       string
	OwnerSecret string
	OrderRef    string
	OrderSecret string
	ItemRef     string
}

type Issuer struct {
	store       store.TicketStore
	encoder     Encoder
	media       MediaStore
	notifier    *Notifier
	maxAttempts int
}

func NewIssuer(st store.TicketStore, encoder Encoder, media MediaStore, notifier *Notifier, maxAttempts int) *Issuer {
	if maxAttempts <= 0 {
		maxAttempts = 100
	}
	return &Issuer{
		store:       st,
		encoder:     encoder,
		media:       media,
		notifier:    notifier,
		maxAttempts: maxAttempts,
	}
}

// Issue mints exactly one ticket. The serial read from the store is only a
// starting hint; the unique index on credential is what actually arbitrates
// concurrent issuance for the same order. On a duplicate the serial is
// bumped and the insert retried, so the loop converges as long as the store
// is healthy. The retry bound exists to turn a misbehaving store into an
// error instead of a spin.
func (s *Issuer) Issue(ctx context.Context, req IssueRequest) (*models.Ticket, error) {
	serial, err := s.store.CountByOrder(ctx, req.OrderRef)
	if err != nil {
		monitoring.TrackIssuance("store_error")
		return nil, fmt.Errorf("issue: %w", err)
	}
	serial++

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t := &models.Ticket{
			Owner:      req.Owner,
			OrderRef:   req.OrderRef,
			ItemRef:    req.ItemRef,
			Credential: BuildCredential(req.OwnerSecret, req.OrderSecret, serial),
		}

		err := s.store.CreateTicket(ctx, t)
		if errors.Is(err, status.ErrDuplicateCredential) {
			monitoring.TrackIssuanceCollision()
			serial++
			continue
		}
		if err != nil {
			monitoring.TrackIssuance("store_error")
			return nil, fmt.Errorf("issue: %w", err)
		}

		slog.Info("ticket issued",
			"ticket_id", t.ID,
			"order_ref", t.OrderRef,
			"item_ref", t.ItemRef,
			"serial", serial,
		)
		monitoring.TrackIssuance("ok")
		s.notifier.TicketIssued(t)

		if err := s.encodeQR(ctx, t); err != nil {
			// The ticket record stays; reconciliation of the missing
			// visual encoding is the caller's concern.
			monitoring.TrackIssuance("encoding_failed")
			return t, err
		}
		return t, nil
	}

	monitoring.TrackIssuance("exhausted")
	slog.Error("issuance retries exhausted", "order_ref", req.OrderRef, "attempts", s.maxAttempts)
	return nil, status.ErrIssuanceFailed
}

// IssueBatch issues one ticket per purchased unit. It stops at the first
// failure and returns the tickets minted so far together with the error.
func (s *Issuer) IssueBatch(ctx context.Context, req IssueRequest, quantity int) ([]*models.Ticket, error) {
	if quantity < 1 {
		quantity = 1
	}
	tickets := make([]*models.Ticket, 0, quantity)
	for i := 0; i < quantity; i++ {
		t, err := s.Issue(ctx, req)
		if t != nil {
			tickets = append(tickets, t)
		}
		if err != nil {
			return tickets, err
		}
	}
	return tickets, nil
}

func (s *Issuer) encodeQR(ctx context.Context, t *models.Ticket) error {
	data, err := s.encoder.Encode(t.Credential)
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrEncodingFailed, err)
	}

	ref, err := s.media.Save(fmt.Sprintf("qr/TCK-%d.png", t.ID), data)
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrEncodingFailed, err)
	}

	if err := s.store.SetQRImage(ctx, t.ID, ref); err != nil {
		return fmt.Errorf("%w: %v", status.ErrEncodingFailed, err)
	}
	t.QRImage = ref
	return nil
}
