// Package wallet holds the on-chain side of the bot: collateral balance
// reads and the transaction that merges offsetting YES/NO outcome tokens
// back into USDC.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Polygon mainnet contracts.
const (
	polygonUSDC              = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	polygonConditionalTokens = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
	polygonNegRiskAdapter    = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"
)

const (
	mergeGasLimit  = 300_000
	receiptTimeout = 2 * time.Minute
)

const conditionalTokensABI = `[{"constant":false,"inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"partition","type":"uint256[]"},{"name":"amount","type":"uint256"}],"name":"mergePositions","outputs":[],"type":"function"}]`

const negRiskAdapterABI = `[{"constant":false,"inputs":[{"name":"_conditionId","type":"bytes32"},{"name":"_amount","type":"uint256"}],"name":"mergePositions","outputs":[],"type":"function"}]`

// ChainMerger executes merges as Polygon transactions signed by the bot's
// key. The outcome tokens must sit in the sending EOA; proxy-wallet
// accounts need their own executor.
type ChainMerger struct {
	rpcURL  string
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	logger  *zap.Logger

	ctfABI     abi.ABI
	negRiskABI abi.ABI
}

// NewChainMerger parses the key and the contract ABIs.
func NewChainMerger(rpcURL, privateKeyHex string, chainID int64, logger *zap.Logger) (*ChainMerger, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	publicKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("derive public key")
	}

	ctfABI, err := abi.JSON(strings.NewReader(conditionalTokensABI))
	if err != nil {
		return nil, fmt.Errorf("parse conditional tokens ABI: %w", err)
	}
	negRiskABI, err := abi.JSON(strings.NewReader(negRiskAdapterABI))
	if err != nil {
		return nil, fmt.Errorf("parse neg-risk adapter ABI: %w", err)
	}

	return &ChainMerger{
		rpcURL:     rpcURL,
		key:        key,
		from:       crypto.PubkeyToAddress(*publicKey),
		chainID:    big.NewInt(chainID),
		logger:     logger,
		ctfABI:     ctfABI,
		negRiskABI: negRiskABI,
	}, nil
}

// MergePositions burns amountBase of each outcome token back into USDC.
func (m *ChainMerger) MergePositions(ctx context.Context, amountBase int64, conditionID string, negRisk bool) error {
	client, err := ethclient.DialContext(ctx, m.rpcURL)
	if err != nil {
		return fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	amount := big.NewInt(amountBase)
	condition := common.HexToHash(conditionID)

	var to common.Address
	var data []byte
	if negRisk {
		to = common.HexToAddress(polygonNegRiskAdapter)
		data, err = m.negRiskABI.Pack("mergePositions", condition, amount)
	} else {
		to = common.HexToAddress(polygonConditionalTokens)
		// Binary markets split over the index sets {1} and {2} under the
		// root collection.
		partition := []*big.Int{big.NewInt(1), big.NewInt(2)}
		data, err = m.ctfABI.Pack("mergePositions",
			common.HexToAddress(polygonUSDC), common.Hash{}, condition, partition, amount)
	}
	if err != nil {
		return fmt.Errorf("pack calldata: %w", err)
	}

	nonce, err := client.PendingNonceAt(ctx, m.from)
	if err != nil {
		return fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      mergeGasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(m.chainID), m.key)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}

	m.logger.Info("merge-transaction-sent",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("condition_id", conditionID),
		zap.Int64("amount_base", amountBase),
		zap.Bool("neg_risk", negRisk))

	receipt, err := m.waitMined(ctx, client, signed.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("merge transaction reverted: %s", signed.Hash().Hex())
	}

	m.logger.Info("merge-transaction-confirmed",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("gas_used", receipt.GasUsed))
	return nil
}

func (m *ChainMerger) waitMined(ctx context.Context, client *ethclient.Client, hash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
