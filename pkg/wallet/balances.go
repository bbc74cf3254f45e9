package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20ABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// Balances holds the on-chain balances relevant to the bot.
type Balances struct {
	POL  *big.Int // gas, in wei
	USDC *big.Int // collateral, base-1e6 units
}

// GetBalances fetches gas and collateral balances for an address.
func (m *ChainMerger) GetBalances(ctx context.Context) (*Balances, error) {
	client, err := ethclient.DialContext(ctx, m.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	pol, err := client.BalanceAt(ctx, m.from, nil)
	if err != nil {
		return nil, fmt.Errorf("get gas balance: %w", err)
	}

	usdc, err := erc20Balance(ctx, client, m.from, polygonUSDC)
	if err != nil {
		return nil, fmt.Errorf("get USDC balance: %w", err)
	}

	return &Balances{POL: pol, USDC: usdc}, nil
}

func erc20Balance(ctx context.Context, client *ethclient.Client, owner common.Address, tokenAddr string) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack ABI: %w", err)
	}

	tokenAddress := common.HexToAddress(tokenAddr)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}
