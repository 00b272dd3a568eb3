package infra

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// NewEthClient dials the JSON-RPC node and checks it serves chainID.
func NewEthClient(ctx context.Context, url string, chainID *big.Int) (*ethclient.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if chainID != nil && got.Cmp(chainID) != 0 {
		client.Close()
		return nil, fmt.Errorf("rpc serves chain %s, expected %s", got, chainID)
	}

	return client, nil
}
