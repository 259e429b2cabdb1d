package store

import (
	"context"
	"time"

	"github.com/sheerif/eticketsv10/models"
)

// TicketStore is the persistence boundary of the issuance/verification
// subsystem. The implementation must provide atomic insert-if-absent
// semantics on the credential column: CreateTicket returns
// status.ErrDuplicateCredential when another ticket already carries the
// same credential, and that constraint is the only synchronization the
// issuer relies on.
type TicketStore interface {
	CreateTicket(ctx context.Context, t *models.Ticket) error
	CountByOrder(ctx context.Context, orderRef string) (int, error)
	CountTickets(ctx context.Context) (int, error)
	FindByCredentialAndOwner(ctx context.Context, credential, owner string) (*models.Ticket, error)
	ListByOwner(ctx context.Context, owner string) ([]models.Ticket, error)
	MarkVerified(ctx context.Context, id int64, at time.Time) error
	SetQRImage(ctx context.Context, id int64, path string) error

	CreateItem(ctx context.Context, it *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)
	DeleteItem(ctx context.Context, id string) error

	Ping(ctx context.Context) error
}
