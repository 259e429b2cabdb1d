package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/sheerif/eticketsv10/internal/status"
	"github.com/sheerif/eticketsv10/models"
	"github.com/sheerif/eticketsv10/security"
	"github.com/sheerif/eticketsv10/services"
)

const (
	testJWTSecret  = "test-jwt-secret"
	testServiceKey = "test-service-key"
)

// memStore is a minimal in-memory TicketStore for handler tests.
type memStore struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
	items   map[string]*models.Item
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{
		tickets: make(map[string]*models.Ticket),
		items:   make(map[string]*models.Item),
	}
}

func (m *memStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tickets[t.Credential]; exists {
		return status.ErrDuplicateCredential
	}
	m.nextID++
	t.ID = m.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	m.tickets[t.Credential] = &cp
	return nil
}

func (m *memStore) CountByOrder(ctx context.Context, orderRef string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickets {
		if t.OrderRef == orderRef {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountTickets(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickets), nil
}

func (m *memStore) FindByCredentialAndOwner(ctx context.Context, credential, owner string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[credential]
	if !ok || t.Owner != owner {
		return nil, status.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) ListByOwner(ctx context.Context, owner string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.Owner == owner {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.ID == id {
			verifiedAt := at
			t.VerifiedAt = &verifiedAt
		}
	}
	return nil
}

func (m *memStore) SetQRImage(ctx context.Context, id int64, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickets {
		if t.ID == id {
			t.QRImage = path
		}
	}
	return nil
}

func (m *memStore) CreateItem(ctx context.Context, it *models.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *it
	m.items[it.ID] = &cp
	return nil
}

func (m *memStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, status.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) ListItems(ctx context.Context) ([]models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Item
	for _, it := range m.items {
		out = append(out, *it)
	}
	return out, nil
}

func (m *memStore) DeleteItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return status.ErrItemNotFound
	}
	for _, t := range m.tickets {
		if t.ItemRef == id {
			return status.ErrItemReferenced
		}
	}
	delete(m.items, id)
	return nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

type nopEncoder struct{}

func (nopEncoder) Encode(credential string) ([]byte, error) {
	return []byte("png:" + credential), nil
}

type nopMedia struct{}

func (nopMedia) Save(name string, data []byte) (string, error) { return name, nil }

// newTestApp wires the routes the way cmd.Start does, minus redis and
// pubnub.
func newTestApp(st *memStore) *echo.Echo {
	issuer := services.NewIssuer(st, nopEncoder{}, nopMedia{}, nil, 100)
	verifier := services.NewVerifier(st, nil, nil)

	ticketHandler := NewTicketHandler(verifier, issuer, st)
	itemHandler := NewItemHandler(st)

	keyHash, _ := bcrypt.GenerateFromPassword([]byte(testServiceKey), bcrypt.MinCost)
	ownerAuth := security.RequireOwner(testJWTSecret)
	serviceAuth := security.RequireServiceKey(string(keyHash))

	e := echo.New()
	e.POST("/api/tickets/verify", ticketHandler.Verify, ownerAuth)
	e.GET("/api/tickets/my", ticketHandler.MyTickets, ownerAuth)
	e.POST("/api/tickets/issue", ticketHandler.Issue, serviceAuth)
	e.POST("/api/items", itemHandler.Create, serviceAuth)
	e.GET("/api/items", itemHandler.List, serviceAuth)
	e.DELETE("/api/items/:id", itemHandler.Delete, serviceAuth)
	return e
}

func ownerToken(owner string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": owner,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, _ := token.SignedString([]byte(testJWTSecret))
	return signed
}
