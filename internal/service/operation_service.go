package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
	"bank-ledger/internal/ledger"
)

// OperationService translates caller-facing operations (deposit, withdrawal,
// transfer, admin adjustment) into signed balance changes on the mutator.
type OperationService struct {
	mutator *ledger.Mutator
	logger  *slog.Logger
}

func NewOperationService(mutator *ledger.Mutator, logger *slog.Logger) *OperationService {
	return &OperationService{
		mutator: mutator,
		logger:  logger,
	}
}

func (s *OperationService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*ledger.Result, error) {
	if amount.Sign() <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if description == "" {
		description = "Deposit"
	}
	return s.mutator.Apply(ctx, ledger.Change{
		AccountID:   accountID,
		Amount:      amount,
		Type:        domain.TypeDeposit,
		Description: description,
	})
}

func (s *OperationService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*ledger.Result, error) {
	if amount.Sign() <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if description == "" {
		description = "Withdrawal"
	}
	return s.mutator.Apply(ctx, ledger.Change{
		AccountID:   accountID,
		Amount:      amount.Neg(),
		Type:        domain.TypeWithdrawal,
		Description: description,
	})
}

// Adjust applies an admin credit (positive amount) or debit (negative
// amount) with an operator-supplied description.
func (s *OperationService) Adjust(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*ledger.Result, error) {
	if amount.IsZero() {
		return nil, apperrors.ErrInvalidAmount
	}

	txType := domain.TypeAdminCredit
	if amount.Sign() < 0 {
		txType = domain.TypeAdminDebit
	}

	s.logger.Info("admin adjustment requested",
		"account_id", accountID,
		"amount", amount,
		"description", description)

	return s.mutator.Apply(ctx, ledger.Change{
		AccountID:   accountID,
		Amount:      amount,
		Type:        txType,
		Description: description,
	})
}

func (s *OperationService) Transfer(ctx context.Context, sourceID, destID int64, amount decimal.Decimal, description string) (*ledger.TransferResult, error) {
	if description == "" {
		description = "Transfer"
	}
	return s.mutator.Transfer(ctx, sourceID, destID, amount, description)
}
