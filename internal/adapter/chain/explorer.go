package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cstore/internal/core/domain"
	"cstore/internal/core/ports"
)

// defaultMinConfirmations per currency when no override is configured.
var defaultMinConfirmations = map[domain.Cryptocurrency]int64{
	domain.CurrencyBTC: 3,
	domain.CurrencyLTC: 6,
	domain.CurrencyXRP: 1,
}

// explorerTx is the explorer aggregator's transaction payload.
type explorerTx struct {
	Hash          string  `json:"hash"`
	Confirmations int64   `json:"confirmations"`
	BlockHash     string  `json:"block_hash"`
	Outputs       []txOut `json:"outputs"`
}

type txOut struct {
	Address string  `json:"address"`
	Value   float64 `json:"value"`
}

// ExplorerVerifier verifies BTC, LTC and XRP deposits against the platform's
// explorer aggregator HTTP API.
type ExplorerVerifier struct {
	baseURL          string
	client           *http.Client
	minConfirmations map[domain.Cryptocurrency]int64
}

// NewExplorerVerifier creates an explorer-backed verifier. minConfirmations
// entries override the per-currency defaults.
func NewExplorerVerifier(baseURL string, timeout time.Duration, minConfirmations map[domain.Cryptocurrency]int64) *ExplorerVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	merged := make(map[domain.Cryptocurrency]int64, len(defaultMinConfirmations))
	for c, n := range defaultMinConfirmations {
		merged[c] = n
	}
	for c, n := range minConfirmations {
		merged[c] = n
	}
	return &ExplorerVerifier{
		baseURL:          strings.TrimRight(baseURL, "/"),
		client:           &http.Client{Timeout: timeout},
		minConfirmations: merged,
	}
}

// Verify implements ports.ChainVerifier for explorer-backed currencies.
func (v *ExplorerVerifier) Verify(ctx context.Context, currency domain.Cryptocurrency, txHash, address string, amount float64) (*ports.VerificationResult, error) {
	url := fmt.Sprintf("%s/api/v1/tx/%s/%s", v.baseURL, strings.ToLower(string(currency)), txHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build explorer request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &ports.VerificationResult{Error: "transaction not found"}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("explorer returned status %d", resp.StatusCode)
	}

	var tx explorerTx
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, fmt.Errorf("decode explorer response: %w", err)
	}

	result := &ports.VerificationResult{
		Confirmations: tx.Confirmations,
		BlockHash:     tx.BlockHash,
	}

	required := v.minConfirmations[currency]
	if required < 1 {
		required = 1
	}
	if tx.Confirmations < required {
		result.Error = fmt.Sprintf("insufficient confirmations: %d of %d", tx.Confirmations, required)
		return result, nil
	}

	for _, out := range tx.Outputs {
		if !strings.EqualFold(out.Address, address) {
			continue
		}
		result.Amount = out.Value
		if out.Value+amountSlack < amount {
			result.Error = fmt.Sprintf("amount mismatch: paid %g, expected %g", out.Value, amount)
			return result, nil
		}
		result.Verified = true
		return result, nil
	}

	result.Error = "no output pays the expected address"
	return result, nil
}
