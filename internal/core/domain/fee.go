package domain

import "github.com/google/uuid"

// FeeType classifies a fee line item.
type FeeType string

const (
	FeeTypePlatform   FeeType = "platform"
	FeeTypeBlockchain FeeType = "blockchain"
	FeeTypeDispute    FeeType = "dispute"
)

// FeePayer identifies who bears a fee.
type FeePayer string

const (
	FeePayerBuyer  FeePayer = "buyer"
	FeePayerSeller FeePayer = "seller"
	FeePayerSplit  FeePayer = "split"
)

// FeeStatus is the collection state of a fee.
type FeeStatus string

const (
	FeeStatusPending   FeeStatus = "pending"
	FeeStatusCollected FeeStatus = "collected"
	FeeStatusWaived    FeeStatus = "waived"
)

// Fee is a single fee line item owned by an escrow.
type Fee struct {
	ID         uuid.UUID `json:"id"`
	Type       FeeType   `json:"type"`
	Amount     float64   `json:"amount"`
	Percentage float64   `json:"percentage,omitempty"`
	PaidBy     FeePayer  `json:"paid_by"`
	Status     FeeStatus `json:"status"`
}
