package service

import (
	"testing"

	"cstore/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress_Ethereum(t *testing.T) {
	// EIP-55 checksummed addresses.
	valid := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, addr := range valid {
		assert.NoError(t, ValidateAddress(domain.CurrencyETH, addr), addr)
	}

	// All-lowercase carries no checksum and is accepted.
	assert.NoError(t, ValidateAddress(domain.CurrencyETH, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	// All-uppercase likewise.
	assert.NoError(t, ValidateAddress(domain.CurrencyETH, "0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"))

	// Mixed case with a wrong checksum fails.
	assert.Error(t, ValidateAddress(domain.CurrencyETH, "0x5Aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))

	assert.Error(t, ValidateAddress(domain.CurrencyETH, "5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"), "missing 0x prefix")
	assert.Error(t, ValidateAddress(domain.CurrencyETH, "0x5aAeb6"), "too short")
	assert.Error(t, ValidateAddress(domain.CurrencyETH, "0xZZZeb6053F3E94C9b9A09f33669435E7Ef1BeAed"), "non-hex characters")
}

func TestValidateAddress_USDTUsesEthereumRules(t *testing.T) {
	assert.NoError(t, ValidateAddress(domain.CurrencyUSDT, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.Error(t, ValidateAddress(domain.CurrencyUSDT, "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"))
}

func TestValidateAddress_Bitcoin(t *testing.T) {
	assert.NoError(t, ValidateAddress(domain.CurrencyBTC, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"))
	assert.NoError(t, ValidateAddress(domain.CurrencyBTC, "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy"))
	assert.NoError(t, ValidateAddress(domain.CurrencyBTC, "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"))
	assert.Error(t, ValidateAddress(domain.CurrencyBTC, "2A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"), "bad prefix")
	assert.Error(t, ValidateAddress(domain.CurrencyBTC, "1A1zP1"), "too short")
}

func TestValidateAddress_Litecoin(t *testing.T) {
	assert.NoError(t, ValidateAddress(domain.CurrencyLTC, "LdP8Qox1VAhCzLJNqrr74YovaWYyNBUWvL"))
	assert.NoError(t, ValidateAddress(domain.CurrencyLTC, "MGxNPPB7eBoWPUaprtX9v9CXJZoD2465zN"))
	assert.NoError(t, ValidateAddress(domain.CurrencyLTC, "ltc1qg42tkwuuxefutzxezdkdel39gfstuap288mfea"))
	assert.Error(t, ValidateAddress(domain.CurrencyLTC, "1dP8Qox1VAhCzLJNqrr74YovaWYyNBUWvL"))
}

func TestValidateAddress_Ripple(t *testing.T) {
	assert.NoError(t, ValidateAddress(domain.CurrencyXRP, "rN7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"))
	assert.Error(t, ValidateAddress(domain.CurrencyXRP, "N7n7otQDd6FczFgLdSqtcsAUxDkw6fzRH"), "bad prefix")
	assert.Error(t, ValidateAddress(domain.CurrencyXRP, "rN7n7"), "too short")
}

func TestValidateAddress_EmptyAndUnknownCurrency(t *testing.T) {
	assert.Error(t, ValidateAddress(domain.CurrencyBTC, ""))
	assert.Error(t, ValidateAddress(domain.Cryptocurrency("DOGE"), "DMkD8W5yZ5sEtreFbeCJqcsBKrdvGVUUUU"))
}
