// Package chain implements blockchain transaction verification. The engine
// never parses chains itself; these adapters ask a node or explorer whether a
// deposit hash really paid the expected address the expected amount.
package chain

import (
	"context"

	"cstore/internal/core/domain"
	"cstore/internal/core/ports"
	"cstore/pkg/apperror"
)

// Mux routes verification requests to the right backend per currency:
// Ethereum-family currencies go to the RPC node, the rest to the explorer API.
type Mux struct {
	ethereum ports.ChainVerifier
	explorer ports.ChainVerifier
}

// NewMux creates a currency-routing verifier.
func NewMux(ethereum, explorer ports.ChainVerifier) *Mux {
	return &Mux{ethereum: ethereum, explorer: explorer}
}

// Verify implements ports.ChainVerifier.
func (m *Mux) Verify(ctx context.Context, currency domain.Cryptocurrency, txHash, address string, amount float64) (*ports.VerificationResult, error) {
	switch currency {
	case domain.CurrencyETH, domain.CurrencyUSDT:
		return m.ethereum.Verify(ctx, currency, txHash, address, amount)
	case domain.CurrencyBTC, domain.CurrencyLTC, domain.CurrencyXRP:
		return m.explorer.Verify(ctx, currency, txHash, address, amount)
	default:
		return nil, apperror.ErrInvalidCurrency(string(currency))
	}
}
