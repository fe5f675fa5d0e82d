package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/service"
)

type TransactionHandler struct {
	operationService *service.OperationService
}

func NewTransactionHandler(operationService *service.OperationService) *TransactionHandler {
	return &TransactionHandler{
		operationService: operationService,
	}
}

type TransferRequest struct {
	SourceAccountID      int64  `json:"source_account_id" validate:"required,gt=0"`
	DestinationAccountID int64  `json:"destination_account_id" validate:"required,gt=0"`
	Amount               string `json:"amount" validate:"required"`
	Description          string `json:"description" validate:"omitempty,max=255"`
}

type TransferResponse struct {
	OutTransactionID   int64  `json:"out_transaction_id"`
	InTransactionID    int64  `json:"in_transaction_id"`
	SourceBalance      string `json:"source_balance"`
	DestinationBalance string `json:"destination_balance"`
}

func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, apperrors.New(apperrors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	result, err := h.operationService.Transfer(r.Context(), req.SourceAccountID, req.DestinationAccountID, amount, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, TransferResponse{
		OutTransactionID:   result.OutTransaction.ID,
		InTransactionID:    result.InTransaction.ID,
		SourceBalance:      result.SourceBalance.StringFixed(2),
		DestinationBalance: result.DestBalance.StringFixed(2),
	})
}
