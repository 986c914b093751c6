package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"cstore/internal/core/domain"
	"cstore/internal/core/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// erc20TransferTopic is keccak256("Transfer(address,address,uint256)").
var erc20TransferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

const (
	weiPerEth    = 1e18
	usdtDecimals = 1e6

	// amountSlack tolerates float conversion loss when comparing on-chain
	// values against the expected deposit amount.
	amountSlack = 1e-9
)

// EthClient is the subset of ethclient.Client the verifier needs.
type EthClient interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ EthClient = (*ethclient.Client)(nil)

// EthereumVerifier verifies ETH and USDT deposits against an Ethereum RPC
// node. USDT deposits are matched via ERC-20 Transfer logs on the token
// contract.
type EthereumVerifier struct {
	client           EthClient
	usdtContract     common.Address
	minConfirmations int64
}

// NewEthereumVerifier dials the RPC endpoint and returns a verifier.
func NewEthereumVerifier(rpcURL, usdtContract string, minConfirmations int64) (*EthereumVerifier, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	return NewEthereumVerifierWithClient(client, usdtContract, minConfirmations), nil
}

// NewEthereumVerifierWithClient wires an existing client (used in tests).
func NewEthereumVerifierWithClient(client EthClient, usdtContract string, minConfirmations int64) *EthereumVerifier {
	if minConfirmations < 1 {
		minConfirmations = 1
	}
	return &EthereumVerifier{
		client:           client,
		usdtContract:     common.HexToAddress(usdtContract),
		minConfirmations: minConfirmations,
	}
}

// Verify implements ports.ChainVerifier for ETH and USDT.
func (v *EthereumVerifier) Verify(ctx context.Context, currency domain.Cryptocurrency, txHash, address string, amount float64) (*ports.VerificationResult, error) {
	hash := common.HexToHash(txHash)

	tx, pending, err := v.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	if pending {
		return &ports.VerificationResult{Error: "transaction is still pending"}, nil
	}

	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("receipt lookup: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return &ports.VerificationResult{Error: "transaction reverted"}, nil
	}

	head, err := v.client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	confirmations := int64(head) - receipt.BlockNumber.Int64() + 1
	if confirmations < v.minConfirmations {
		return &ports.VerificationResult{
			Confirmations: confirmations,
			Error:         fmt.Sprintf("insufficient confirmations: %d of %d", confirmations, v.minConfirmations),
		}, nil
	}

	result := &ports.VerificationResult{
		Confirmations: confirmations,
		BlockHash:     receipt.BlockHash.Hex(),
	}

	switch currency {
	case domain.CurrencyETH:
		v.verifyNativeTransfer(tx, address, amount, result)
	case domain.CurrencyUSDT:
		v.verifyTokenTransfer(receipt, address, amount, result)
	default:
		result.Error = fmt.Sprintf("unsupported currency for ethereum verifier: %s", currency)
	}
	return result, nil
}

func (v *EthereumVerifier) verifyNativeTransfer(tx *types.Transaction, address string, amount float64, result *ports.VerificationResult) {
	to := tx.To()
	if to == nil || !strings.EqualFold(to.Hex(), address) {
		result.Error = "transaction does not pay the expected address"
		return
	}

	paid, _ := new(big.Float).Quo(
		new(big.Float).SetInt(tx.Value()),
		big.NewFloat(weiPerEth),
	).Float64()
	result.Amount = paid
	if paid+amountSlack < amount {
		result.Error = fmt.Sprintf("amount mismatch: paid %g, expected %g", paid, amount)
		return
	}
	result.Verified = true
}

func (v *EthereumVerifier) verifyTokenTransfer(receipt *types.Receipt, address string, amount float64, result *ports.VerificationResult) {
	expected := common.HexToAddress(address)

	for _, lg := range receipt.Logs {
		if lg.Address != v.usdtContract {
			continue
		}
		if len(lg.Topics) != 3 || lg.Topics[0] != erc20TransferTopic {
			continue
		}
		to := common.BytesToAddress(lg.Topics[2].Bytes())
		if to != expected {
			continue
		}

		paid, _ := new(big.Float).Quo(
			new(big.Float).SetInt(new(big.Int).SetBytes(lg.Data)),
			big.NewFloat(usdtDecimals),
		).Float64()
		result.Amount = paid
		if paid+amountSlack < amount {
			result.Error = fmt.Sprintf("amount mismatch: paid %g, expected %g", paid, amount)
			return
		}
		result.Verified = true
		return
	}

	result.Error = "no token transfer to the expected address in this transaction"
}
