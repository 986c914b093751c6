package service

import (
	"strings"

	"cstore/internal/core/domain"
	"cstore/pkg/apperror"

	"golang.org/x/crypto/sha3"
)

// ValidateAddress sanity-checks a payout/deposit address for the currency.
// Ethereum-style addresses additionally get an EIP-55 checksum check when they
// use mixed case.
func ValidateAddress(currency domain.Cryptocurrency, address string) error {
	if address == "" {
		return apperror.ErrInvalidAddress("address is required")
	}

	switch currency {
	case domain.CurrencyETH, domain.CurrencyUSDT:
		return validateEthereumAddress(address)
	case domain.CurrencyBTC:
		if !strings.HasPrefix(address, "1") && !strings.HasPrefix(address, "3") && !strings.HasPrefix(address, "bc1") {
			return apperror.ErrInvalidAddress("invalid BTC address prefix")
		}
		if len(address) < 26 || len(address) > 62 {
			return apperror.ErrInvalidAddress("invalid BTC address length")
		}
	case domain.CurrencyLTC:
		if !strings.HasPrefix(address, "L") && !strings.HasPrefix(address, "M") && !strings.HasPrefix(address, "ltc1") {
			return apperror.ErrInvalidAddress("invalid LTC address prefix")
		}
	case domain.CurrencyXRP:
		if !strings.HasPrefix(address, "r") || len(address) < 25 || len(address) > 35 {
			return apperror.ErrInvalidAddress("invalid XRP address")
		}
	default:
		return apperror.ErrInvalidCurrency(string(currency))
	}

	return nil
}

func validateEthereumAddress(address string) error {
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return apperror.ErrInvalidAddress("invalid Ethereum address format")
	}

	hex := address[2:]
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return apperror.ErrInvalidAddress("invalid Ethereum address characters")
		}
	}

	// All-lower and all-upper addresses carry no checksum.
	lower := strings.ToLower(hex)
	if hex == lower || hex == strings.ToUpper(hex) {
		return nil
	}

	if checksumAddress(lower) != hex {
		return apperror.ErrInvalidAddress("Ethereum address failed EIP-55 checksum")
	}
	return nil
}

// checksumAddress applies the EIP-55 mixed-case checksum to a lower-case hex
// address (without 0x prefix).
func checksumAddress(lower string) string {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(lower))
	digest := hash.Sum(nil)

	var b strings.Builder
	for i, r := range lower {
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if r >= 'a' && r <= 'f' && nibble >= 8 {
			b.WriteString(strings.ToUpper(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
