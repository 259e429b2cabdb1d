package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheerif/eticketsv10/internal/status"
	"github.com/sheerif/eticketsv10/models"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.CreateItem(context.Background(), &models.Item{
		ID:     "ITEM1",
		Name:   "Solo",
		Price:  decimal.RequireFromString("50"),
		Active: true,
	}))
	return st
}

func testTicket(credential string) *models.Ticket {
	return &models.Ticket{
		Owner:      "alice",
		OrderRef:   "order-1",
		ItemRef:    "ITEM1",
		Credential: credential,
	}
}

func TestSQLiteStore_CreateTicket(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	ticket := testTicket("abcdef-1:6b5f5769")
	require.NoError(t, st.CreateTicket(ctx, ticket))

	assert.NotZero(t, ticket.ID)
	assert.False(t, ticket.CreatedAt.IsZero())
}

func TestSQLiteStore_CreateTicket_DuplicateCredential(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateTicket(ctx, testTicket("abcdef-1:6b5f5769")))

	err := st.CreateTicket(ctx, testTicket("abcdef-1:6b5f5769"))
	assert.ErrorIs(t, err, status.ErrDuplicateCredential)
}

func TestSQLiteStore_CountByOrder(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	n, err := st.CountByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, st.CreateTicket(ctx, testTicket("abcdef-1:6b5f5769")))
	require.NoError(t, st.CreateTicket(ctx, testTicket("abcdef-2:0ae68dbd")))

	other := testTicket("other-1:deadbeef")
	other.OrderRef = "order-2"
	require.NoError(t, st.CreateTicket(ctx, other))

	n, err = st.CountByOrder(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStore_FindByCredentialAndOwner(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	ticket := testTicket("abcdef-1:6b5f5769")
	require.NoError(t, st.CreateTicket(ctx, ticket))

	found, err := st.FindByCredentialAndOwner(ctx, ticket.Credential, "alice")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, found.ID)
	assert.Equal(t, "alice", found.Owner)
	assert.Nil(t, found.VerifiedAt)
	assert.WithinDuration(t, ticket.CreatedAt, found.CreatedAt, time.Second)

	// Same credential, different owner: indistinguishable from absent.
	_, err = st.FindByCredentialAndOwner(ctx, ticket.Credential, "mallory")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	_, err = st.FindByCredentialAndOwner(ctx, "nope:00000000", "alice")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)
}

func TestSQLiteStore_MarkVerified(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	ticket := testTicket("abcdef-1:6b5f5769")
	require.NoError(t, st.CreateTicket(ctx, ticket))

	first := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	require.NoError(t, st.MarkVerified(ctx, ticket.ID, first))

	found, err := st.FindByCredentialAndOwner(ctx, ticket.Credential, "alice")
	require.NoError(t, err)
	require.NotNil(t, found.VerifiedAt)
	assert.Equal(t, first, *found.VerifiedAt)

	// A later verification refreshes, never clears.
	second := first.Add(time.Minute)
	require.NoError(t, st.MarkVerified(ctx, ticket.ID, second))

	found, err = st.FindByCredentialAndOwner(ctx, ticket.Credential, "alice")
	require.NoError(t, err)
	require.NotNil(t, found.VerifiedAt)
	assert.Equal(t, second, *found.VerifiedAt)
}

func TestSQLiteStore_SetQRImage(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	ticket := testTicket("abcdef-1:6b5f5769")
	require.NoError(t, st.CreateTicket(ctx, ticket))
	require.NoError(t, st.SetQRImage(ctx, ticket.ID, "qr/TCK-1.png"))

	found, err := st.FindByCredentialAndOwner(ctx, ticket.Credential, "alice")
	require.NoError(t, err)
	assert.Equal(t, "qr/TCK-1.png", found.QRImage)
}

func TestSQLiteStore_ListByOwner(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateTicket(ctx, testTicket("abcdef-1:6b5f5769")))
	require.NoError(t, st.CreateTicket(ctx, testTicket("abcdef-2:0ae68dbd")))

	tickets, err := st.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	// Newest first.
	assert.Greater(t, tickets[0].ID, tickets[1].ID)

	tickets, err = st.ListByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestSQLiteStore_Items(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	item, err := st.GetItem(ctx, "ITEM1")
	require.NoError(t, err)
	assert.Equal(t, "Solo", item.Name)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("50")))

	_, err = st.GetItem(ctx, "NOPE")
	assert.ErrorIs(t, err, status.ErrItemNotFound)

	items, err := st.ListItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSQLiteStore_DeleteItem_ProtectedWhenReferenced(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateTicket(ctx, testTicket("abcdef-1:6b5f5769")))

	err := st.DeleteItem(ctx, "ITEM1")
	assert.ErrorIs(t, err, status.ErrItemReferenced)

	// Still present.
	_, err = st.GetItem(ctx, "ITEM1")
	assert.NoError(t, err)
}

func TestSQLiteStore_DeleteItem(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateItem(ctx, &models.Item{ID: "FREE1", Name: "Libre", Price: decimal.Zero}))
	require.NoError(t, st.DeleteItem(ctx, "FREE1"))

	_, err := st.GetItem(ctx, "FREE1")
	assert.ErrorIs(t, err, status.ErrItemNotFound)

	assert.ErrorIs(t, st.DeleteItem(ctx, "NOPE"), status.ErrItemNotFound)
}

func TestSQLiteStore_Ping(t *testing.T) {
	st := setupTestStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
