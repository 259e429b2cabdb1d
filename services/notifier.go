package services

import (
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go"

	"github.com/sheerif/eticketsv10/models"
)

// Notifier publishes gate activity to a PubNub channel so ops dashboards
// see entries and freshly issued tickets in real time. A nil Notifier (or
// one built without PubNub keys) is a no-op; delivery is best effort and
// never affects the calling request.
type Notifier struct {
	pn      *pubnub.PubNub
	channel string
}

func NewNotifier(pn *pubnub.PubNub, channel string) *Notifier {
	return &Notifier{pn: pn, channel: channel}
}

func (n *Notifier) TicketIssued(t *models.Ticket) {
	n.publish(map[string]any{
		"type":      "ticket_issued",
		"ticket_id": t.ID,
		"order_ref": t.OrderRef,
		"item_ref":  t.ItemRef,
	})
}

func (n *Notifier) TicketVerified(t *models.Ticket, at time.Time) {
	n.publish(map[string]any{
		"type":        "ticket_verified",
		"ticket_id":   t.ID,
		"item_ref":    t.ItemRef,
		"verified_at": at.Format(time.RFC3339),
	})
}

func (n *Notifier) publish(message map[string]any) {
	if n == nil || n.pn == nil {
		return
	}
	_, _, err := n.pn.Publish().
		Channel(n.channel).
		Message(message).
		Execute()
	if err != nil {
		slog.Warn("gate feed publish failed", "error", err)
	}
}
