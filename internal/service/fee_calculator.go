package service

import (
	"cstore/internal/core/domain"

	"github.com/google/uuid"
)

// PlatformFeeRate is the marketplace cut, charged to the seller.
const PlatformFeeRate = 0.02

// networkFeeEstimates are fixed per-currency blockchain fee estimates,
// charged to the buyer.
var networkFeeEstimates = map[domain.Cryptocurrency]float64{
	domain.CurrencyBTC:  0.0001,
	domain.CurrencyETH:  0.001,
	domain.CurrencyUSDT: 0.001,
	domain.CurrencyLTC:  0.001,
	domain.CurrencyXRP:  0.00001,
}

// FeeCalculator computes fee line items for an escrow. It is pure: no side
// effects, safe to call any number of times.
type FeeCalculator struct{}

// NewFeeCalculator creates a FeeCalculator.
func NewFeeCalculator() *FeeCalculator {
	return &FeeCalculator{}
}

// Calculate returns the fee line items for an escrow amount and currency.
func (f *FeeCalculator) Calculate(amount float64, currency domain.Cryptocurrency) []domain.Fee {
	fees := []domain.Fee{
		{
			ID:         uuid.New(),
			Type:       domain.FeeTypePlatform,
			Amount:     amount * PlatformFeeRate,
			Percentage: PlatformFeeRate * 100,
			PaidBy:     domain.FeePayerSeller,
			Status:     domain.FeeStatusPending,
		},
	}

	if network, ok := networkFeeEstimates[currency]; ok {
		fees = append(fees, domain.Fee{
			ID:     uuid.New(),
			Type:   domain.FeeTypeBlockchain,
			Amount: network,
			PaidBy: domain.FeePayerBuyer,
			Status: domain.FeeStatusPending,
		})
	}

	return fees
}

// TotalFees sums a fee line-item list.
func TotalFees(fees []domain.Fee) float64 {
	var total float64
	for _, f := range fees {
		total += f.Amount
	}
	return total
}
