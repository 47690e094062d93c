// Package crm defines the client, sale and room-sketch records the follow-up
// engine reads, and their SQLite persistence.
package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ErrNotFound is returned when a client lookup matches no row.
var ErrNotFound = errors.New("not found")

// ClientStatus marks whether a client is worked by the follow-up engine.
type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

// ParseClientStatus converts a persisted status into a ClientStatus.
func ParseClientStatus(s string) (ClientStatus, error) {
	switch st := ClientStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case ClientActive, ClientInactive:
		return st, nil
	default:
		return "", fmt.Errorf("unknown client status %q", s)
	}
}

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	SaleOpen   SaleStatus = "Open"
	SaleClosed SaleStatus = "Closed"
	SaleUnsold SaleStatus = "Unsold"
	SaleVoid   SaleStatus = "Void"
)

// ParseSaleStatus converts a persisted status into a SaleStatus. Matching is
// case-insensitive.
func ParseSaleStatus(s string) (SaleStatus, error) {
	for _, st := range []SaleStatus{SaleOpen, SaleClosed, SaleUnsold, SaleVoid} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown sale status %q", s)
}

// Qualifying reports whether a sale in this state anchors follow-ups.
func (s SaleStatus) Qualifying() bool {
	return s == SaleOpen || s == SaleClosed
}

// Client is a retail customer.
type Client struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Phone   string       `json:"phone,omitempty"`
	Email   string       `json:"email,omitempty"`
	Address string       `json:"address,omitempty"`
	Rooms   string       `json:"rooms,omitempty"`
	Style   string       `json:"style,omitempty"`
	Budget  string       `json:"budget,omitempty"`
	Status  ClientStatus `json:"status"`

	// Since is the date the client was first registered. Zero when unknown.
	Since       civil.Date `json:"since"`
	LastContact *time.Time `json:"last_contact,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Sale is a single order or quote for a client. Date holds the persisted text
// (a calendar date or an RFC 3339 timestamp) and may be malformed.
type Sale struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	Status    SaleStatus `json:"status"`
	Date      string     `json:"date"`
	Amount    float64    `json:"amount"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RoomSketch captures a room the client is furnishing.
type RoomSketch struct {
	ID                    string    `json:"id"`
	ClientID              string    `json:"client_id"`
	RoomType              string    `json:"room_type"`
	Dimensions            string    `json:"dimensions,omitempty"`
	LayoutNotes           string    `json:"layout_notes,omitempty"`
	CurrentFurniture      string    `json:"current_furniture,omitempty"`
	DesiredFurniture      string    `json:"desired_furniture,omitempty"`
	SpecialConsiderations string    `json:"special_considerations,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// Store persists and retrieves CRM records.
type Store interface {
	// ListActiveClients returns every client with status active, ordered by name.
	ListActiveClients(ctx context.Context) ([]Client, error)

	// GetClient retrieves a client by ID.
	GetClient(ctx context.Context, id string) (*Client, error)

	// ListSales returns the sales of a client, most recent date first.
	ListSales(ctx context.Context, clientID string) ([]Sale, error)

	// LatestRoomSketch returns the most recently recorded sketch for a
	// client, or nil when the client has none.
	LatestRoomSketch(ctx context.Context, clientID string) (*RoomSketch, error)

	// CreateClient persists a new client and returns its assigned ID.
	CreateClient(ctx context.Context, c *Client) (string, error)

	// SetClientStatus changes a client's status.
	SetClientStatus(ctx context.Context, id string, status ClientStatus) error

	// TouchLastContact records the time the client was last contacted.
	TouchLastContact(ctx context.Context, id string, at time.Time) error

	// CreateSale persists a new sale and returns its assigned ID.
	CreateSale(ctx context.Context, s *Sale) (string, error)

	// AddRoomSketch persists a new room sketch and returns its assigned ID.
	AddRoomSketch(ctx context.Context, r *RoomSketch) (string, error)
}
