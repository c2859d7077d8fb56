package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	flatfile_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/flatfile"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-bank-ledger/internal/app/cli"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 選單佔用 stdout，log 一律寫到 stderr
	cfg.Log.OutputPaths = []string{"stderr"}
	if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("bank exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *logging.Logger) error {
	ctx := context.Background()

	store := flatfile_adapter.NewStore(cfg.Storage.AccountsFile, cfg.Storage.TransactionsFile, logger)
	snapshot, err := store.Load(ctx)
	if err != nil {
		return err
	}
	ledger, err := memory_adapter.NewMutexLedger(snapshot)
	if err != nil {
		return err
	}

	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithBackendName(config.BackendFlatFile),
	}
	if cfg.Storage.JournalFile != "" {
		journal, err := wal.NewWAL(cfg.Storage.JournalFile, wal.WithCorruptHandler(usecase.LogCorruptJournalLine(logger)))
		if err != nil {
			return err
		}
		defer journal.Close()
		opts = append(opts, usecase.WithJournal(journal))
	}

	core := usecase.NewCoreUseCase(ledger, store, opts...)
	if _, err := core.Recover(ctx); err != nil {
		return err
	}
	return cli.NewMenu(core, os.Stdin, os.Stdout).Run(ctx)
}
