package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/pkg/logging"
)

type Handler struct {
	ledger LedgerReader
	logger *logging.Logger
}

func NewHandler(ledger LedgerReader, logger *logging.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

type AccountResponse struct {
	Number  int64  `json:"number"`
	Balance string `json:"balance"`
	Kind    string `json:"kind"`
}

type TransactionResponse struct {
	Position      int    `json:"position"`
	AccountNumber int64  `json:"account_number"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind"`
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.ListAccounts(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	numberStr := chi.URLParam(r, "number")
	number, err := strconv.ParseInt(numberStr, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid account number"))
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), number)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.ListTransactions(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := make([]TransactionResponse, 0, len(records))
	for i, rec := range records {
		resp = append(resp, TransactionResponse{
			Position:      i + 1,
			AccountNumber: rec.AccountNumber,
			Kind:          rec.Kind.String(),
			Amount:        rec.Amount.String(),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	kind := domain.ErrorKind(err)
	if status == http.StatusBadRequest {
		kind = "invalid_request"
	}
	h.writeJSON(w, status, ErrorResponse{Error: err.Error(), ErrorKind: kind})
}

func toAccountResponse(a domain.Account) AccountResponse {
	return AccountResponse{
		Number:  a.Number,
		Balance: a.Balance.String(),
		Kind:    a.Kind.String(),
	}
}
