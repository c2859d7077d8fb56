package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
	pkggrpc "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

func main() {
	target := flag.String("target", "localhost:50051", "ledger grpc address")
	total := flag.Int("n", 100000, "total requests")
	concurrency := flag.Int("c", 100, "concurrent requests")
	from := flag.Int64("from", 1, "source account (created if missing)")
	to := flag.Int64("to", 2, "destination account (created if missing)")
	amountFlag := flag.String("amount", "1", "amount per request")
	flag.Parse()

	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil || !amount.IsPositive() {
		logger.Fatal("invalid amount", zap.String("amount", *amountFlag))
	}

	pool := pkggrpc.NewPool(
		pkggrpc.WithLogger(logger),
		pkggrpc.WithInterceptor(slowCallLogger(logger, 500*time.Millisecond)),
	)
	defer pool.Close()

	conn, err := pool.GetConnection(*target)
	if err != nil {
		logger.Fatal("did not connect", zap.Error(err))
	}
	c := grpc_adapter.NewLedgerServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	// 準備帳戶，已存在時忽略
	for _, id := range []int64{*from, *to} {
		resp, err := c.CreateAccount(ctx, &grpc_adapter.CreateAccountRequest{AccountId: id, Kind: "Current"})
		if err != nil {
			logger.Fatal("create account", zap.Int64("account", id), zap.Error(err))
		}
		if !resp.Success && resp.ErrorKind != "duplicate_account" {
			logger.Fatal("create account", zap.Int64("account", id), zap.String("message", resp.Message))
		}
	}
	// 先存入足夠的金額，讓之後的轉帳都能成功
	if _, err := c.Transfer(ctx, &grpc_adapter.TransferRequest{
		RefId:       uuid.NewString(),
		ToAccountId: *from,
		Amount:      amount.Mul(decimal.NewFromInt(int64(*total))).String(),
		Type:        grpc_adapter.TransactionTypeDeposit,
	}); err != nil {
		logger.Fatal("fund source account", zap.Error(err))
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	startTime := time.Now()
	for i := 0; i < *total; i++ {
		idx := i
		g.Go(func() error {
			resp, err := c.Transfer(gctx, &grpc_adapter.TransferRequest{
				RefId:         uuid.NewString(),
				Type:          grpc_adapter.TransactionTypeTransfer,
				FromAccountId: *from,
				ToAccountId:   *to,
				Amount:        amount.String(),
			})
			if err != nil || !resp.Success {
				if failed.Add(1)%1000 == 1 {
					logger.Warn("transfer failed", zap.Int("index", idx), zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v (%d failed)\n", *total, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
}

// slowCallLogger 記錄超過門檻的 RPC
func slowCallLogger(logger *logging.Logger, threshold time.Duration) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		if elapsed := time.Since(start); elapsed > threshold {
			logger.Warn("slow rpc", zap.String("method", method), zap.Duration("elapsed", elapsed))
		}
		return err
	}
}
