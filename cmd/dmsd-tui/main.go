package main

import (
	"context"
	"fmt"
	"math/big"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/dmsd/dmsd/internal/config"
	"github.com/dmsd/dmsd/internal/dashboard"
	"github.com/dmsd/dmsd/internal/ethaddr"
	"github.com/dmsd/dmsd/internal/infra"
	"github.com/dmsd/dmsd/internal/logging"
	"github.com/dmsd/dmsd/internal/notification"
	"github.com/dmsd/dmsd/internal/tui"
	"github.com/dmsd/dmsd/internal/txlog"
	"github.com/dmsd/dmsd/internal/wallet"
)

var (
	addressFlag string
	logFile     string
)

var rootCmd = &cobra.Command{
	Use:          "dmsd-tui",
	Short:        "Terminal dashboard for the DMSD recovery contract",
	Long:         "Opens the DMSD dashboard in the terminal for one of the wallets in SIGNER_KEYS.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&addressFlag, "address", "a", "", "wallet to connect (defaults to the first signer key)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "dmsd-tui.log", "file receiving JSON logs")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	logger := logging.NewWriter(f, cfg.LogLevel)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	backend, eth, err := infra.NewContractClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect contract: %w", err)
	}
	if eth != nil {
		defer eth.Close()
	}

	keys, err := wallet.NewKeyring(big.NewInt(cfg.ChainID), cfg.SignerKeys)
	if err != nil {
		return fmt.Errorf("load signer keys: %w", err)
	}
	address, err := pickAddress(addressFlag, keys.Addresses())
	if err != nil {
		return err
	}

	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return fmt.Errorf("parse locale %q: %w", cfg.Locale, err)
	}

	journal := txlog.NewInMemory()
	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		journal = txlog.NewPostgresJournal(db)
	}

	d := dashboard.New(uuid.NewString(), common.HexToAddress(cfg.ContractAddress), dashboard.Deps{
		Contract:  backend,
		Signers:   keys,
		Journal:   journal,
		Notifier:  notification.NewLoggerNotifier(logger),
		Logger:    logger,
		Language:  tag,
		TxTimeout: cfg.TxTimeout,
	})
	defer func() {
		d.Close()
		d.Wait()
	}()
	if err := d.Connect(ctx, address); err != nil {
		return fmt.Errorf("connect %s: %w", ethaddr.Display(address), err)
	}
	logger.Info("terminal session opened", "session_id", d.ID(), "address", address.Hex())

	m := tui.New(ctx, d)
	defer m.Close()
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func pickAddress(flag string, known []common.Address) (common.Address, error) {
	if flag != "" {
		addr, err := ethaddr.Parse(flag)
		if err != nil {
			return common.Address{}, fmt.Errorf("--address: %w", err)
		}
		return addr, nil
	}
	if len(known) == 0 {
		return common.Address{}, fmt.Errorf("no wallet: set SIGNER_KEYS or pass --address")
	}
	return known[0], nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
