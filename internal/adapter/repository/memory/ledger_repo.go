package memory

import (
	"context"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	s *Store
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(s *Store) domain.LedgerRepository {
	return &ledgerRepository{s: s}
}

func (r *ledgerRepository) GetAccount(_ context.Context, asset domain.AssetID, account domain.AccountID) (domain.AccountBalance, error) {
	var bal domain.AccountBalance
	r.s.locked(func(st *state) {
		bal = st.accounts[accountKey{asset, account}]
	})
	return bal, nil
}

func (r *ledgerRepository) SaveAccount(_ context.Context, asset domain.AssetID, account domain.AccountID, balance domain.AccountBalance) error {
	r.s.locked(func(st *state) {
		key := accountKey{asset, account}
		if balance.Available.IsZero() && balance.Reserved.IsZero() {
			delete(st.accounts, key)
			return
		}
		st.accounts[key] = balance
	})
	return nil
}

func (r *ledgerRepository) GetAggregate(_ context.Context, asset domain.AssetID) (domain.Balance, error) {
	var total domain.Balance
	r.s.locked(func(st *state) {
		total = st.aggregates[asset]
	})
	return total, nil
}

func (r *ledgerRepository) SaveAggregate(_ context.Context, asset domain.AssetID, total domain.Balance) error {
	r.s.locked(func(st *state) {
		if total.IsZero() {
			delete(st.aggregates, asset)
			return
		}
		st.aggregates[asset] = total
	})
	return nil
}
