package grpc

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
)

// Pool 管理通往多個 ledger 節點的 gRPC 連線
// 每個目標地址只維護一個連線，執行緒安全
type Pool struct {
	conns        sync.Map // map[string]*grpc.ClientConn
	mu           sync.Mutex
	interceptors []grpc.UnaryClientInterceptor
	subtype      string
	logger       *logging.Logger
}

// PoolOption Pool 的設定
type PoolOption func(*Pool)

// WithInterceptor 加入 UnaryClientInterceptor (logging, metrics, auth token)
// 可以呼叫多次，依加入順序串接
func WithInterceptor(interceptor grpc.UnaryClientInterceptor) PoolOption {
	return func(p *Pool) {
		p.interceptors = append(p.interceptors, interceptor)
	}
}

// WithContentSubtype 設定預設的編碼，預設為 JSONCodecName
func WithContentSubtype(subtype string) PoolOption {
	return func(p *Pool) {
		p.subtype = subtype
	}
}

// WithLogger 設定 logger
func WithLogger(logger *logging.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// NewPool 建立連線池
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		subtype: JSONCodecName,
		logger:  logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("grpc_pool")
	return p
}

// GetConnection 取得既有連線，或為目標建立新連線
//
// 參數:
//
//	target: 目標地址 (e.g., "localhost:50051")
//	opts: 額外的 DialOption，會接在預設值之後
//
// 回傳值:
//
//	*grpc.ClientConn: 連線
//	error: 建立失敗
func (p *Pool) GetConnection(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if conn, ok := p.load(target); ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check
	if conn, ok := p.load(target); ok {
		return conn, nil
	}

	defaultOpts := []grpc.DialOption{
		// 內部網路，不做 TLS
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(p.subtype)),
	}
	if len(p.interceptors) > 0 {
		defaultOpts = append(defaultOpts, grpc.WithChainUnaryInterceptor(p.interceptors...))
	}

	// NewClient 是 lazy 的，第一次呼叫時才真正連線
	conn, err := grpc.NewClient(target, append(defaultOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for target %s: %w", target, err)
	}

	p.conns.Store(target, conn)
	p.logger.Debug("connection created", zap.String("target", target))
	return conn, nil
}

// load 取得仍可用的連線，已 Shutdown 的會被移除
func (p *Pool) load(target string) (*grpc.ClientConn, bool) {
	v, ok := p.conns.Load(target)
	if !ok {
		return nil, false
	}
	conn := v.(*grpc.ClientConn)
	if conn.GetState() == connectivity.Shutdown {
		p.conns.Delete(target)
		return nil, false
	}
	return conn, true
}

// Close 關閉所有連線，回傳第一個發生的錯誤
func (p *Pool) Close() error {
	var firstErr error
	p.conns.Range(func(key, value any) bool {
		conn := value.(*grpc.ClientConn)
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.conns.Delete(key)
		return true
	})
	return firstErr
}
