package services

import (
	"context"
	"sync"
	"time"

	"github.com/sheerif/eticketsv10/internal/status"
	"github.com/sheerif/eticketsv10/models"
)

// fakeStore is an in-memory TicketStore with real credential uniqueness and
// call counters, so tests can assert whether the store was touched at all.
type fakeStore struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket // keyed by credential
	items   map[string]*models.Item
	nextID  int64

	createCalls int
	findCalls   int
	markCalls   int

	// alwaysDuplicate makes every insert fail with a uniqueness conflict.
	alwaysDuplicate bool
	failCreate      error
	failFind        error
	failMark        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tickets: make(map[string]*models.Ticket),
		items:   make(map[string]*models.Item),
	}
}

func (f *fakeStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	if f.failCreate != nil {
		return f.failCreate
	}
	if f.alwaysDuplicate {
		return status.ErrDuplicateCredential
	}
	if _, exists := f.tickets[t.Credential]; exists {
		return status.ErrDuplicateCredential
	}

	f.nextID++
	t.ID = f.nextID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	cp := *t
	f.tickets[t.Credential] = &cp
	return nil
}

func (f *fakeStore) CountByOrder(ctx context.Context, orderRef string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickets {
		if t.OrderRef == orderRef {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountTickets(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickets), nil
}

func (f *fakeStore) FindByCredentialAndOwner(ctx context.Context, credential, owner string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++

	if f.failFind != nil {
		return nil, f.failFind
	}
	t, ok := f.tickets[credential]
	if !ok || t.Owner != owner {
		return nil, status.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListByOwner(ctx context.Context, owner string) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Ticket
	for _, t := range f.tickets {
		if t.Owner == owner {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++

	if f.failMark != nil {
		return f.failMark
	}
	for _, t := range f.tickets {
		if t.ID == id {
			verifiedAt := at
			t.VerifiedAt = &verifiedAt
			return nil
		}
	}
	return nil
}

func (f *fakeStore) SetQRImage(ctx context.Context, id int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.ID == id {
			t.QRImage = path
		}
	}
	return nil
}

func (f *fakeStore) CreateItem(ctx context.Context, it *models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *it
	f.items[it.ID] = &cp
	return nil
}

func (f *fakeStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, status.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (f *fakeStore) ListItems(ctx context.Context) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Item
	for _, it := range f.items {
		out = append(out, *it)
	}
	return out, nil
}

func (f *fakeStore) DeleteItem(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return status.ErrItemNotFound
	}
	for _, t := range f.tickets {
		if t.ItemRef == id {
			return status.ErrItemReferenced
		}
	}
	delete(f.items, id)
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) ticketByID(id int64) *models.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.ID == id {
			cp := *t
			return &cp
		}
	}
	return nil
}

// fakeEncoder records encoded credentials.
type fakeEncoder struct {
	mu      sync.Mutex
	encoded []string
	fail    error
}

func (e *fakeEncoder) Encode(credential string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	e.encoded = append(e.encoded, credential)
	return []byte("png:" + credential), nil
}

// fakeMedia stores saved blobs in memory.
type fakeMedia struct {
	mu    sync.Mutex
	saved map[string][]byte
	fail  error
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{saved: make(map[string][]byte)}
}

func (m *fakeMedia) Save(name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	m.saved[name] = data
	return name, nil
}
