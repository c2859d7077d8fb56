package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
)

// LedgerReader 管理介面只做查詢
type LedgerReader interface {
	GetAccount(ctx context.Context, number int64) (domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error)
}

// NewRouter 建立管理介面的 router
//
// 路由:
//
//	GET /health
//	GET /metrics
//	GET /accounts
//	GET /accounts/{number}
//	GET /transactions
func NewRouter(ledger LedgerReader, metrics http.Handler, logger *logging.Logger) chi.Router {
	handler := NewHandler(ledger, logger.Named("admin"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(handler.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", handler.ListAccounts)
		r.Get("/{number}", handler.GetAccount)
	})
	r.Get("/transactions", handler.ListTransactions)
	return r
}

func requestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
