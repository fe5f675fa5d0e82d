package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bank-ledger/internal/apperrors"
	"bank-ledger/internal/domain"
	"bank-ledger/internal/repository"
)

// MaxHistoryPageSize caps a single transaction history page. Callers asking
// for more get this many rows; the handler clamps before comparing against
// the page length for cursor emission.
const MaxHistoryPageSize = 200

type AccountService struct {
	store           *repository.Store
	logger          *slog.Logger
	defaultCurrency string
}

func NewAccountService(store *repository.Store, logger *slog.Logger, defaultCurrency string) *AccountService {
	return &AccountService{
		store:           store,
		logger:          logger,
		defaultCurrency: defaultCurrency,
	}
}

// CreateAccount opens the owner's account with a zero balance. Owners hold
// exactly one account.
func (s *AccountService) CreateAccount(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Account, error) {
	if ownerID == uuid.Nil {
		return nil, apperrors.New(apperrors.InvalidInput, "owner_id is required")
	}
	if currency == "" {
		currency = s.defaultCurrency
	}
	if currency != s.defaultCurrency {
		return nil, apperrors.Newf(apperrors.InvalidInput, "unsupported currency %q", currency)
	}

	account, err := s.store.Account().CreateAccount(ctx, ownerID, decimal.Zero, currency)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account opened", "account_id", account.ID, "owner_id", ownerID)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	if accountID <= 0 {
		return nil, apperrors.New(apperrors.InvalidInput, "account id must be positive")
	}
	return s.store.Account().GetAccount(ctx, accountID)
}

func (s *AccountService) GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	return s.store.Account().GetAccountByOwner(ctx, ownerID)
}

// ListTransactions pages the account's ledger newest-first. The returned
// entries are a read-only snapshot of last committed state.
func (s *AccountService) ListTransactions(ctx context.Context, accountID int64, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if accountID <= 0 {
		return nil, apperrors.New(apperrors.InvalidInput, "account id must be positive")
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apperrors.Newf(apperrors.InvalidInput, "unknown transaction type %q", filter.Type)
	}
	if filter.Limit > MaxHistoryPageSize {
		filter.Limit = MaxHistoryPageSize
	}

	// Listing an unknown account should be a 404, not an empty page.
	if _, err := s.store.Account().GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	return s.store.Transaction().ListTransactions(ctx, accountID, filter)
}
