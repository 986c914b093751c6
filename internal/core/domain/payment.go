package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the settlement state of a payment ledger entry.
type PaymentStatus string

const (
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is an immutable ledger entry written when funds actually move
// on-chain. TxHash is unique across the ledger; a hash seen before means the
// movement already happened.
type Payment struct {
	ID            uuid.UUID      `json:"id"`
	TxHash        string         `json:"tx_hash"`
	Currency      Cryptocurrency `json:"cryptocurrency"`
	Amount        float64        `json:"amount"`
	FromAddress   string         `json:"from_address,omitempty"`
	ToAddress     string         `json:"to_address"`
	OrderID       *uuid.UUID     `json:"order_id,omitempty"`
	WalletID      *uuid.UUID     `json:"wallet_id,omitempty"`
	Confirmations int64          `json:"confirmations"`
	Status        PaymentStatus  `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}
