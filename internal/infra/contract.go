package infra

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/dmsd/dmsd/internal/config"
	"github.com/dmsd/dmsd/internal/contract"
)

// NewContractClient builds the configured contract backend wrapped in retries.
// The returned ethclient is nil for the in-process backend; the caller closes it.
func NewContractClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (contract.Client, *ethclient.Client, error) {
	address := common.HexToAddress(cfg.ContractAddress)
	policy := contract.DefaultRetryPolicy
	policy.MaxTries = cfg.RPCMaxRetries

	if cfg.ContractBackend != config.BackendRPC {
		logger.Warn("using the in-process contract", "contract", address.Hex())
		return contract.NewRetrying(contract.NewMemory(address), policy, logger), nil, nil
	}

	eth, err := NewEthClient(ctx, cfg.RPCURL, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, nil, err
	}
	binding, err := contract.NewBinding(address, eth)
	if err != nil {
		eth.Close()
		return nil, nil, fmt.Errorf("bind contract: %w", err)
	}
	return contract.NewRetrying(binding, policy, logger), eth, nil
}
