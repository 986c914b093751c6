package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the subset of marketplace order states this engine touches.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// Order is the minimal view of a marketplace order. Order management is an
// external collaborator; the engine only links transfers to orders and syncs
// their payment status.
type Order struct {
	ID        uuid.UUID   `json:"id"`
	BuyerID   uuid.UUID   `json:"buyer_id"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
