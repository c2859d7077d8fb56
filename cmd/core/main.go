package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	admin_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/admin"
	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	flatfile_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/flatfile"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/resilient"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/internal/config"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	prom_metrics "github.com/JoeShih716/go-bank-ledger/pkg/metrics/prometheus"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
	logger.Info("server exited")
}

func run(cfg config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := prom_metrics.NewPrometheusCollector("bank")
	if err := collector.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// 3. 持久化後端
	var persister usecase.Persister
	switch cfg.Storage.Backend {
	case config.BackendMySQL:
		dbClient, err := mysql.NewClient(ctx, cfg.MySQL, logger)
		if err != nil {
			return fmt.Errorf("connect mysql: %w", err)
		}
		defer dbClient.Close()

		store := mysql_adapter.NewMySQLStore(dbClient, logger)
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		persister = store
	default:
		persister = flatfile_adapter.NewStore(cfg.Storage.AccountsFile, cfg.Storage.TransactionsFile, logger)
	}
	persister = resilient.NewPersister(persister, cfg.Storage.Backend, cfg.Breaker, collector, logger)

	// 4. 載入帳本
	snapshot, err := persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	// 帳本要活到最後一次存檔之後，不能跟著訊號一起結束
	ledgerCtx, stopLedger := context.WithCancel(context.Background())
	defer stopLedger()
	ledger, err := newLedger(ledgerCtx, cfg.Ledger, snapshot)
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithCollector(collector),
		usecase.WithBackendName(cfg.Storage.Backend),
	}
	if cfg.Storage.JournalFile != "" {
		journal, err := wal.NewWAL(cfg.Storage.JournalFile, wal.WithCorruptHandler(usecase.LogCorruptJournalLine(logger)))
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer journal.Close()
		opts = append(opts, usecase.WithJournal(journal))
	}

	// 5. 初始化 UseCase，重放上次未存檔的操作
	coreUseCase := usecase.NewCoreUseCase(ledger, persister, opts...)
	replayed, err := coreUseCase.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	logger.Info("ledger ready",
		zap.String("engine", cfg.Ledger.Engine),
		zap.Int("accounts", len(snapshot.Accounts)),
		zap.Int("transactions", len(snapshot.Transactions)),
		zap.Int("replayed", replayed),
	)

	// 6. gRPC 與管理介面
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc_adapter.LoggingInterceptor(logger)))
	grpc_adapter.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(coreUseCase))

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           admin_adapter.NewRouter(coreUseCase, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		logger.Info("starting grpc server", zap.String("addr", cfg.GRPC.Addr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("starting admin http server", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	// Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}

		// 最後再存一次檔
		if err := coreUseCase.Persist(shutdownCtx); err != nil {
			logger.Error("final save failed", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// newLedger 依設定選擇帳本引擎
// sequencer 的核心迴圈跟著 ctx 結束
func newLedger(ctx context.Context, cfg config.LedgerConfig, snapshot domain.Snapshot) (usecase.Ledger, error) {
	switch cfg.Engine {
	case config.EngineSequencer:
		ledger, err := memory_adapter.NewSequencerLedger(snapshot, cfg.QueueSize)
		if err != nil {
			return nil, err
		}
		ledger.Start(ctx)
		return ledger, nil
	default:
		return memory_adapter.NewMutexLedger(snapshot)
	}
}
