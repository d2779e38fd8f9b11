package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// LedgerService keeps per-account balances and the per-asset aggregate in step.
// It implements domain.MultiAssetDepository.
type LedgerService struct {
	LedgerRepo domain.LedgerRepository
	Tx         domain.TxManager
}

// NewLedgerService creates a new LedgerService instance
func NewLedgerService(ledgerRepo domain.LedgerRepository, tx domain.TxManager) *LedgerService {
	return &LedgerService{
		LedgerRepo: ledgerRepo,
		Tx:         tx,
	}
}

var _ domain.MultiAssetDepository = (*LedgerService)(nil)

// AggregatedBalance returns the sum of every account total for the asset
func (s *LedgerService) AggregatedBalance(ctx context.Context, asset domain.AssetID) (domain.Balance, error) {
	return s.LedgerRepo.GetAggregate(ctx, asset)
}

// TotalBalance returns available + reserved for one account
func (s *LedgerService) TotalBalance(ctx context.Context, asset domain.AssetID, account domain.AccountID) (domain.Balance, error) {
	bal, err := s.LedgerRepo.GetAccount(ctx, asset, account)
	if err != nil {
		return 0, err
	}
	return bal.Total(), nil
}

// AvailableBalance returns the spendable part of an account
func (s *LedgerService) AvailableBalance(ctx context.Context, asset domain.AssetID, account domain.AccountID) (domain.Balance, error) {
	bal, err := s.LedgerRepo.GetAccount(ctx, asset, account)
	if err != nil {
		return 0, err
	}
	return bal.Available, nil
}

// ReservedBalance returns the held part of an account
func (s *LedgerService) ReservedBalance(ctx context.Context, asset domain.AssetID, account domain.AccountID) (domain.Balance, error) {
	bal, err := s.LedgerRepo.GetAccount(ctx, asset, account)
	if err != nil {
		return 0, err
	}
	return bal.Reserved, nil
}

// Deposit credits the available balance of an account
// Logic:
//   - Zero amounts are a no-op
//   - Account total and aggregate are both checked before anything is written
func (s *LedgerService) Deposit(ctx context.Context, asset domain.AssetID, account domain.AccountID, amount domain.Balance) error {
	if amount.IsZero() {
		return nil
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		bal, aggregate, err := s.load(ctx, asset, account)
		if err != nil {
			return err
		}

		available, ok := bal.Available.CheckedAdd(amount)
		if !ok {
			return domain.ErrBalanceOverflow
		}
		if _, ok := available.CheckedAdd(bal.Reserved); !ok {
			return domain.ErrBalanceOverflow
		}
		newAggregate, ok := aggregate.CheckedAdd(amount)
		if !ok {
			return domain.ErrTotalBalanceOverflow
		}

		bal.Available = available
		if err := s.store(ctx, asset, account, bal, newAggregate); err != nil {
			return err
		}

		log.Debug().Str("asset", string(asset)).Str("account", string(account)).
			Stringer("amount", amount).Msg("deposited")
		return nil
	})
}

// Withdraw debits the available balance of an account
func (s *LedgerService) Withdraw(ctx context.Context, asset domain.AssetID, account domain.AccountID, amount domain.Balance) error {
	if amount.IsZero() {
		return nil
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		bal, aggregate, err := s.load(ctx, asset, account)
		if err != nil {
			return err
		}

		available, ok := bal.Available.CheckedSub(amount)
		if !ok {
			return domain.ErrNotEnoughBalance
		}

		bal.Available = available
		if err := s.store(ctx, asset, account, bal, aggregate.SaturatingSub(amount)); err != nil {
			return err
		}

		log.Debug().Str("asset", string(asset)).Str("account", string(account)).
			Stringer("amount", amount).Msg("withdrawn")
		return nil
	})
}

// Reserve moves funds from available to reserved. The aggregate is unchanged.
func (s *LedgerService) Reserve(ctx context.Context, asset domain.AssetID, account domain.AccountID, amount domain.Balance) error {
	if amount.IsZero() {
		return nil
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		bal, err := s.LedgerRepo.GetAccount(ctx, asset, account)
		if err != nil {
			return fmt.Errorf("failed to load account balance: %w", err)
		}

		available, ok := bal.Available.CheckedSub(amount)
		if !ok {
			return domain.ErrNotEnoughBalance
		}
		reserved, ok := bal.Reserved.CheckedAdd(amount)
		if !ok {
			return domain.ErrBalanceOverflow
		}

		bal.Available, bal.Reserved = available, reserved
		return s.LedgerRepo.SaveAccount(ctx, asset, account, bal)
	})
}

// Unreserve moves funds from reserved back to available
func (s *LedgerService) Unreserve(ctx context.Context, asset domain.AssetID, account domain.AccountID, amount domain.Balance) error {
	if amount.IsZero() {
		return nil
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		bal, err := s.LedgerRepo.GetAccount(ctx, asset, account)
		if err != nil {
			return fmt.Errorf("failed to load account balance: %w", err)
		}

		reserved, ok := bal.Reserved.CheckedSub(amount)
		if !ok {
			return domain.ErrNotEnoughBalance
		}
		available, ok := bal.Available.CheckedAdd(amount)
		if !ok {
			return domain.ErrBalanceOverflow
		}

		bal.Available, bal.Reserved = available, reserved
		return s.LedgerRepo.SaveAccount(ctx, asset, account, bal)
	})
}

// RepatriateReserved moves reserved funds of one account into the available
// balance of another. The aggregate is unchanged.
func (s *LedgerService) RepatriateReserved(ctx context.Context, asset domain.AssetID, from, to domain.AccountID, amount domain.Balance) error {
	if amount.IsZero() {
		return nil
	}
	if from == to {
		return s.Unreserve(ctx, asset, from, amount)
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		src, err := s.LedgerRepo.GetAccount(ctx, asset, from)
		if err != nil {
			return fmt.Errorf("failed to load account balance: %w", err)
		}
		dst, err := s.LedgerRepo.GetAccount(ctx, asset, to)
		if err != nil {
			return fmt.Errorf("failed to load account balance: %w", err)
		}

		reserved, ok := src.Reserved.CheckedSub(amount)
		if !ok {
			return domain.ErrNotEnoughBalance
		}
		available, ok := dst.Available.CheckedAdd(amount)
		if !ok {
			return domain.ErrBalanceOverflow
		}
		if _, ok := available.CheckedAdd(dst.Reserved); !ok {
			return domain.ErrBalanceOverflow
		}

		src.Reserved = reserved
		dst.Available = available
		if err := s.LedgerRepo.SaveAccount(ctx, asset, from, src); err != nil {
			return fmt.Errorf("failed to save account balance: %w", err)
		}
		if err := s.LedgerRepo.SaveAccount(ctx, asset, to, dst); err != nil {
			return fmt.Errorf("failed to save account balance: %w", err)
		}

		log.Debug().Str("asset", string(asset)).Str("from", string(from)).Str("to", string(to)).
			Stringer("amount", amount).Msg("repatriated reserved funds")
		return nil
	})
}

// SlashReserved burns reserved funds, e.g. once they have left the chain
func (s *LedgerService) SlashReserved(ctx context.Context, asset domain.AssetID, account domain.AccountID, amount domain.Balance) error {
	if amount.IsZero() {
		return nil
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		bal, aggregate, err := s.load(ctx, asset, account)
		if err != nil {
			return err
		}

		reserved, ok := bal.Reserved.CheckedSub(amount)
		if !ok {
			return domain.ErrNotEnoughBalance
		}

		bal.Reserved = reserved
		return s.store(ctx, asset, account, bal, aggregate.SaturatingSub(amount))
	})
}

func (s *LedgerService) load(ctx context.Context, asset domain.AssetID, account domain.AccountID) (domain.AccountBalance, domain.Balance, error) {
	bal, err := s.LedgerRepo.GetAccount(ctx, asset, account)
	if err != nil {
		return bal, 0, fmt.Errorf("failed to load account balance: %w", err)
	}
	aggregate, err := s.LedgerRepo.GetAggregate(ctx, asset)
	if err != nil {
		return bal, 0, fmt.Errorf("failed to load aggregate balance: %w", err)
	}
	return bal, aggregate, nil
}

func (s *LedgerService) store(ctx context.Context, asset domain.AssetID, account domain.AccountID, bal domain.AccountBalance, aggregate domain.Balance) error {
	if err := s.LedgerRepo.SaveAccount(ctx, asset, account, bal); err != nil {
		return fmt.Errorf("failed to save account balance: %w", err)
	}
	if err := s.LedgerRepo.SaveAggregate(ctx, asset, aggregate); err != nil {
		return fmt.Errorf("failed to save aggregate balance: %w", err)
	}
	return nil
}
