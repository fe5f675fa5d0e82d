package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
	"bank-ledger/internal/ledger"
	"bank-ledger/internal/service"
)

type AccountHandler struct {
	accountService   *service.AccountService
	operationService *service.OperationService
}

func NewAccountHandler(accountService *service.AccountService, operationService *service.OperationService) *AccountHandler {
	return &AccountHandler{
		accountService:   accountService,
		operationService: operationService,
	}
}

type CreateAccountRequest struct {
	OwnerID  string `json:"owner_id" validate:"required,uuid"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type AccountResponse struct {
	AccountID int64  `json:"account_id"`
	OwnerID   string `json:"owner_id"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	UpdatedAt string `json:"updated_at"`
}

func accountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID: account.ID,
		OwnerID:   account.OwnerID.String(),
		Balance:   account.Balance.StringFixed(2),
		Currency:  account.Currency,
		UpdatedAt: account.UpdatedAt.UTC().Format(http.TimeFormat),
	}
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		writeError(w, apperrors.New(apperrors.InvalidInput, "invalid owner_id format"))
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), ownerID, req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse(account))
}

type TransactionResponse struct {
	TransactionID       int64  `json:"transaction_id"`
	AccountID           int64  `json:"account_id"`
	Amount              string `json:"amount"`
	Type                string `json:"type"`
	Description         string `json:"description"`
	CounterpartyAccount *int64 `json:"counterparty_account,omitempty"`
	CounterpartyName    string `json:"counterparty_name,omitempty"`
	ResultingBalance    string `json:"resulting_balance"`
	CreatedAt           string `json:"created_at"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	// NextCursor is the id to pass as before_id for the next page; zero when
	// this page is the last.
	NextCursor int64 `json:"next_cursor,omitempty"`
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	transactions, err := h.accountService.ListTransactions(r.Context(), accountID, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := TransactionListResponse{Transactions: make([]TransactionResponse, 0, len(transactions))}
	for _, tx := range transactions {
		resp.Transactions = append(resp.Transactions, TransactionResponse{
			TransactionID:       tx.ID,
			AccountID:           tx.AccountID,
			Amount:              tx.Amount.StringFixed(2),
			Type:                string(tx.Type),
			Description:         tx.Description,
			CounterpartyAccount: tx.CounterpartyAccount,
			CounterpartyName:    tx.CounterpartyName,
			ResultingBalance:    tx.ResultingBalance.StringFixed(2),
			CreatedAt:           tx.CreatedAt.UTC().Format(http.TimeFormat),
		})
	}
	if len(transactions) == filter.Limit {
		resp.NextCursor = transactions[len(transactions)-1].ID
	}

	writeJSON(w, http.StatusOK, resp)
}

type BalanceChangeRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"omitempty,max=255"`
}

type BalanceChangeResponse struct {
	TransactionID int64  `json:"transaction_id"`
	NewBalance    string `json:"new_balance"`
}

// changeFunc matches the OperationService deposit/withdraw/adjust methods.
type changeFunc func(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*ledger.Result, error)

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.applyChange(w, r, h.operationService.Deposit)
}

func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.applyChange(w, r, h.operationService.Withdraw)
}

func (h *AccountHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	h.applyChange(w, r, h.operationService.Adjust)
}

func (h *AccountHandler) applyChange(w http.ResponseWriter, r *http.Request, apply changeFunc) {
	accountID, err := pathAccountID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req BalanceChangeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, apperrors.New(apperrors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	result, err := apply(r.Context(), accountID, amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, BalanceChangeResponse{
		TransactionID: result.TransactionID,
		NewBalance:    result.NewBalance.StringFixed(2),
	})
}

func pathAccountID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["account_id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.New(apperrors.InvalidInput, "invalid account id")
	}
	return id, nil
}

const defaultPageSize = 50

func parseListFilter(r *http.Request) (domain.TransactionFilter, error) {
	q := r.URL.Query()
	filter := domain.TransactionFilter{
		Type:  domain.TransactionType(q.Get("type")),
		Limit: defaultPageSize,
	}

	if raw := q.Get("before_id"); raw != "" {
		beforeID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || beforeID <= 0 {
			return filter, apperrors.New(apperrors.InvalidInput, "invalid before_id cursor")
		}
		filter.BeforeID = beforeID
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, apperrors.New(apperrors.InvalidInput, "invalid limit")
		}
		filter.Limit = limit
	}
	if filter.Limit > service.MaxHistoryPageSize {
		filter.Limit = service.MaxHistoryPageSize
	}

	return filter, nil
}
