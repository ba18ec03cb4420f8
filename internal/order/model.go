package order

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is defined out of s.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0 && s.Valid()
}

// allowedTransitions is the forward-only edge set of the order state
// machine. delivered, completed and cancelled are terminal.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusShipped:    true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusDelivered: true,
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether moving from s to next is a legal forward
// step.
func (s Status) CanTransition(next Status) bool {
	return allowedTransitions[s][next]
}

// Item is a frozen copy of a cart line captured at order creation. It does
// not track back to live catalog prices.
type Item struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	ImageRef  string  `json:"image_ref,omitempty"`
}

type ShippingAddress struct {
	City   string `json:"city"`
	Street string `json:"street"`
}

// Trimmed returns the address with surrounding whitespace removed, the form
// it is persisted in.
func (a ShippingAddress) Trimmed() ShippingAddress {
	return ShippingAddress{
		City:   strings.TrimSpace(a.City),
		Street: strings.TrimSpace(a.Street),
	}
}

func (a ShippingAddress) Complete() bool {
	t := a.Trimmed()
	return t.City != "" && t.Street != ""
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	Items           []Item          `json:"items"`
	TotalAmount     float64         `json:"total_amount"`
	Status          Status          `json:"status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	TrackingCode    string          `json:"tracking_code"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
