package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS clients (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	phone        TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	rooms        TEXT NOT NULL DEFAULT '',
	style        TEXT NOT NULL DEFAULT '',
	budget       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'active',
	since        TEXT NOT NULL DEFAULT '',
	last_contact DATETIME,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sales (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	status     TEXT NOT NULL,
	date       TEXT NOT NULL DEFAULT '',
	amount     REAL NOT NULL DEFAULT 0,
	notes      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS room_sketches (
	id                     TEXT PRIMARY KEY,
	client_id              TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	room_type              TEXT NOT NULL DEFAULT '',
	dimensions             TEXT NOT NULL DEFAULT '',
	layout_notes           TEXT NOT NULL DEFAULT '',
	current_furniture      TEXT NOT NULL DEFAULT '',
	desired_furniture      TEXT NOT NULL DEFAULT '',
	special_considerations TEXT NOT NULL DEFAULT '',
	created_at             DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clients_status ON clients(status, name);
CREATE INDEX IF NOT EXISTS idx_sales_client ON sales(client_id, date);
CREATE INDEX IF NOT EXISTS idx_room_sketches_client ON room_sketches(client_id);
`

const clientColumns = `id, name, phone, email, address, rooms, style, budget, status, since, last_contact, created_at`

// SQLiteStore persists CRM records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database and ensures the CRM tables exist.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create crm schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// ListActiveClients returns every active client ordered by name.
func (s *SQLiteStore) ListActiveClients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE status=? ORDER BY name ASC, id ASC`,
		string(ClientActive))
	if err != nil {
		return nil, fmt.Errorf("list active clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// GetClient retrieves a client by ID.
func (s *SQLiteStore) GetClient(ctx context.Context, id string) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=?`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListSales returns the sales of a client, most recent date first.
func (s *SQLiteStore) ListSales(ctx context.Context, clientID string) ([]Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, status, date, amount, notes, created_at
		FROM sales WHERE client_id=? ORDER BY date DESC, created_at DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sale Sale
		var status string
		if err := rows.Scan(&sale.ID, &sale.ClientID, &status, &sale.Date,
			&sale.Amount, &sale.Notes, &sale.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		// Unknown statuses are kept verbatim; they are simply not qualifying.
		sale.Status = SaleStatus(status)
		if st, err := ParseSaleStatus(status); err == nil {
			sale.Status = st
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// LatestRoomSketch returns the most recently recorded sketch, or nil.
func (s *SQLiteStore) LatestRoomSketch(ctx context.Context, clientID string) (*RoomSketch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, room_type, dimensions, layout_notes, current_furniture,
		       desired_furniture, special_considerations, created_at
		FROM room_sketches WHERE client_id=? ORDER BY rowid DESC LIMIT 1`, clientID)

	var r RoomSketch
	err := row.Scan(&r.ID, &r.ClientID, &r.RoomType, &r.Dimensions, &r.LayoutNotes,
		&r.CurrentFurniture, &r.DesiredFurniture, &r.SpecialConsiderations, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest room sketch: %w", err)
	}
	return &r, nil
}

// CreateClient persists a new client and sets its ID and CreatedAt. A client
// without a status is stored as active, and one without a Since date starts
// today.
func (s *SQLiteStore) CreateClient(ctx context.Context, c *Client) (string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return "", fmt.Errorf("client name is empty")
	}
	if c.Phone == "" && c.Email == "" && c.Address == "" {
		return "", fmt.Errorf("client %q: at least one of phone, email, or address is required", c.Name)
	}
	if c.Status == "" {
		c.Status = ClientActive
	}
	if c.Since == (civil.Date{}) {
		c.Since = civil.DateOf(time.Now())
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.Rooms, c.Style, c.Budget,
		string(c.Status), formatDate(c.Since), nullTime(c.LastContact), c.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert client: %w", err)
	}
	return c.ID, nil
}

// SetClientStatus changes a client's status.
func (s *SQLiteStore) SetClientStatus(ctx context.Context, id string, status ClientStatus) error {
	return s.updateClient(ctx, `UPDATE clients SET status=? WHERE id=?`, string(status), id)
}

// TouchLastContact records the time the client was last contacted.
func (s *SQLiteStore) TouchLastContact(ctx context.Context, id string, at time.Time) error {
	return s.updateClient(ctx, `UPDATE clients SET last_contact=? WHERE id=?`, at.UTC(), id)
}

func (s *SQLiteStore) updateClient(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("client %v: %w", args[len(args)-1], ErrNotFound)
	}
	return nil
}

// CreateSale persists a new sale and sets its ID and CreatedAt.
func (s *SQLiteStore) CreateSale(ctx context.Context, sale *Sale) (string, error) {
	if sale.ClientID == "" {
		return "", fmt.Errorf("sale has no client")
	}
	sale.ID = uuid.NewString()
	sale.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, client_id, status, date, amount, notes, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		sale.ID, sale.ClientID, string(sale.Status), sale.Date, sale.Amount, sale.Notes, sale.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert sale: %w", err)
	}
	return sale.ID, nil
}

// AddRoomSketch persists a new room sketch and sets its ID and CreatedAt.
func (s *SQLiteStore) AddRoomSketch(ctx context.Context, r *RoomSketch) (string, error) {
	if r.ClientID == "" {
		return "", fmt.Errorf("room sketch has no client")
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO room_sketches
			(id, client_id, room_type, dimensions, layout_notes, current_furniture,
			 desired_furniture, special_considerations, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		r.ID, r.ClientID, r.RoomType, r.Dimensions, r.LayoutNotes, r.CurrentFurniture,
		r.DesiredFurniture, r.SpecialConsiderations, r.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert room sketch: %w", err)
	}
	return r.ID, nil
}

// scanner abstracts sql.Row and sql.Rows for scanClient.
type scanner interface {
	Scan(dest ...any) error
}

func scanClient(s scanner) (*Client, error) {
	var c Client
	var status, since string
	var lastContact sql.NullTime

	err := s.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Rooms,
		&c.Style, &c.Budget, &status, &since, &lastContact, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	c.Status = ClientStatus(status)
	if since != "" {
		if d, err := civil.ParseDate(since); err == nil {
			c.Since = d
		}
	}
	if lastContact.Valid {
		c.LastContact = &lastContact.Time
	}
	return &c, nil
}

func formatDate(d civil.Date) string {
	if d == (civil.Date{}) {
		return ""
	}
	return d.String()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
