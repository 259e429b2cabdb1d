package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sheerif/eticketsv10/internal/status"
	"github.com/sheerif/eticketsv10/models"
)

// SQLiteStore implements TicketStore on top of sqlite via dbx. The unique
// index on tickets.credential closes the race between concurrent issuance
// calls; the FOREIGN KEY on item_ref gives protect-on-delete for items.
type SQLiteStore struct {
	db *dbx.DB
}

// Open opens (or creates) the sqlite database at path and applies the
// schema. The special path ":memory:" yields a private in-memory database
// restricted to a single connection.
func Open(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// A pooled connection would see a different empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: dbx.NewFromDB(sqlDB, "sqlite")}
	if err := s.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id        TEXT PRIMARY KEY,
			name      TEXT NOT NULL,
			price_eur TEXT NOT NULL DEFAULT '0',
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			owner       TEXT NOT NULL,
			order_ref   TEXT NOT NULL,
			item_ref    TEXT NOT NULL REFERENCES items(id) ON DELETE RESTRICT,
			credential  TEXT NOT NULL UNIQUE,
			qr_image    TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			verified_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS tickets_owner_order_idx ON tickets (owner, order_ref)`,
		`CREATE INDEX IF NOT EXISTS tickets_order_item_idx ON tickets (order_ref, item_ref)`,
		`CREATE INDEX IF NOT EXISTS tickets_created_at_idx ON tickets (created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.NewQuery(stmt).Execute(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ticketRow mirrors the tickets table. Timestamps are stored as RFC3339
// strings to stay driver-agnostic.
type ticketRow struct {
	ID         int64          `db:"id"`
	Owner      string         `db:"owner"`
	OrderRef   string         `db:"order_ref"`
	ItemRef    string         `db:"item_ref"`
	Credential string         `db:"credential"`
	QRImage    string         `db:"qr_image"`
	CreatedAt  string         `db:"created_at"`
	VerifiedAt sql.NullString `db:"verified_at"`
}

func (r *ticketRow) toModel() (*models.Ticket, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ticket %d: %w", r.ID, err)
	}
	t := &models.Ticket{
		ID:         r.ID,
		Owner:      r.Owner,
		OrderRef:   r.OrderRef,
		ItemRef:    r.ItemRef,
		Credential: r.Credential,
		QRImage:    r.QRImage,
		CreatedAt:  createdAt,
	}
	if r.VerifiedAt.Valid {
		verifiedAt, err := parseTime(r.VerifiedAt.String)
		if err != nil {
			return nil, fmt.Errorf("ticket %d: %w", r.ID, err)
		}
		t.VerifiedAt = &verifiedAt
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func (s *SQLiteStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.NewQuery(
		`INSERT INTO tickets (owner, order_ref, item_ref, credential, qr_image, created_at)
		 VALUES ({:owner}, {:order_ref}, {:item_ref}, {:credential}, {:qr_image}, {:created_at})`,
	).Bind(dbx.Params{
		"owner":      t.Owner,
		"order_ref":  t.OrderRef,
		"item_ref":   t.ItemRef,
		"credential": t.Credential,
		"qr_image":   t.QRImage,
		"created_at": formatTime(t.CreatedAt),
	}).WithContext(ctx).Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return status.ErrDuplicateCredential
		}
		return fmt.Errorf("create ticket: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	t.ID = id
	return nil
}

func (s *SQLiteStore) CountByOrder(ctx context.Context, orderRef string) (int, error) {
	var n int
	err := s.db.NewQuery(`SELECT COUNT(*) FROM tickets WHERE order_ref={:order_ref}`).
		Bind(dbx.Params{"order_ref": orderRef}).
		WithContext(ctx).
		Row(&n)
	if err != nil {
		return 0, fmt.Errorf("count by order: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CountTickets(ctx context.Context) (int, error) {
	var n int
	err := s.db.NewQuery(`SELECT COUNT(*) FROM tickets`).WithContext(ctx).Row(&n)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) FindByCredentialAndOwner(ctx context.Context, credential, owner string) (*models.Ticket, error) {
	var row ticketRow
	err := s.db.NewQuery(
		`SELECT * FROM tickets WHERE credential={:credential} AND owner={:owner}`,
	).Bind(dbx.Params{
		"credential": credential,
		"owner":      owner,
	}).WithContext(ctx).One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	return row.toModel()
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, owner string) ([]models.Ticket, error) {
	var rows []ticketRow
	err := s.db.NewQuery(
		`SELECT * FROM tickets WHERE owner={:owner} ORDER BY id DESC`,
	).Bind(dbx.Params{"owner": owner}).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}

	tickets := make([]models.Ticket, 0, len(rows))
	for i := range rows {
		t, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, nil
}

func (s *SQLiteStore) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.NewQuery(
		`UPDATE tickets SET verified_at={:verified_at} WHERE id={:id}`,
	).Bind(dbx.Params{
		"verified_at": formatTime(at),
		"id":          id,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetQRImage(ctx context.Context, id int64, path string) error {
	_, err := s.db.NewQuery(
		`UPDATE tickets SET qr_image={:qr_image} WHERE id={:id}`,
	).Bind(dbx.Params{
		"qr_image": path,
		"id":       id,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("set qr image: %w", err)
	}
	return nil
}

type itemRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	PriceEUR string `db:"price_eur"`
	IsActive int    `db:"is_active"`
}

func (r *itemRow) toModel() (*models.Item, error) {
	price, err := decimal.NewFromString(r.PriceEUR)
	if err != nil {
		return nil, fmt.Errorf("item %s: bad price: %w", r.ID, err)
	}
	return &models.Item{
		ID:     r.ID,
		Name:   r.Name,
		Price:  price,
		Active: r.IsActive != 0,
	}, nil
}

func (s *SQLiteStore) CreateItem(ctx context.Context, it *models.Item) error {
	active := 0
	if it.Active {
		active = 1
	}
	_, err := s.db.NewQuery(
		`INSERT INTO items (id, name, price_eur, is_active)
		 VALUES ({:id}, {:name}, {:price_eur}, {:is_active})`,
	).Bind(dbx.Params{
		"id":        it.ID,
		"name":      it.Name,
		"price_eur": it.Price.String(),
		"is_active": active,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	var row itemRow
	err := s.db.NewQuery(`SELECT * FROM items WHERE id={:id}`).
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return row.toModel()
}

func (s *SQLiteStore) ListItems(ctx context.Context) ([]models.Item, error) {
	var rows []itemRow
	err := s.db.NewQuery(`SELECT * FROM items ORDER BY id`).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]models.Item, 0, len(rows))
	for i := range rows {
		it, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, nil
}

// DeleteItem refuses to remove an item that any ticket references.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.NewQuery(`DELETE FROM items WHERE id={:id}`).
		Bind(dbx.Params{"id": id}).
		WithContext(ctx).
		Execute()
	if err != nil {
		if isForeignKeyViolation(err) {
			return status.ErrItemReferenced
		}
		return fmt.Errorf("delete item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return status.ErrItemNotFound
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.NewQuery(`SELECT 1`).WithContext(ctx).Row(&one); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}
