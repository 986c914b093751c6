package domain

import (
	"time"

	"github.com/google/uuid"
)

// MultiSigWallet is the signer roster for a threshold-controlled wallet.
// Custody itself lives outside this system; the engine only needs to know who
// may vote and how many votes move funds.
type MultiSigWallet struct {
	ID                uuid.UUID      `json:"id"`
	OwnerID           uuid.UUID      `json:"owner_id"`
	Currency          Cryptocurrency `json:"cryptocurrency"`
	Address           string         `json:"address"`
	Signers           []uuid.UUID    `json:"signers"`
	RequiredApprovals int            `json:"required_approvals"`
	CreatedAt         time.Time      `json:"created_at"`
}

// IsSigner reports whether userID may vote on this wallet's transfers.
func (w *MultiSigWallet) IsSigner(userID uuid.UUID) bool {
	for _, s := range w.Signers {
		if s == userID {
			return true
		}
	}
	return false
}

// HasAccess reports whether userID is the owner or a signer.
func (w *MultiSigWallet) HasAccess(userID uuid.UUID) bool {
	return userID == w.OwnerID || w.IsSigner(userID)
}
