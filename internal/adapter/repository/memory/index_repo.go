package memory

import (
	"context"
	"sort"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// holdingRepository implements domain.HoldingRepository
type holdingRepository struct {
	s *Store
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(s *Store) domain.HoldingRepository {
	return &holdingRepository{s: s}
}

func (r *holdingRepository) Get(_ context.Context, asset domain.AssetID) (*domain.IndexAssetData, error) {
	var out *domain.IndexAssetData
	r.s.locked(func(st *state) {
		if h, ok := st.holdings[asset]; ok {
			out = &h
		}
	})
	return out, nil
}

func (r *holdingRepository) Save(_ context.Context, holding *domain.IndexAssetData) error {
	r.s.locked(func(st *state) {
		st.holdings[holding.Asset] = *holding
	})
	return nil
}

func (r *holdingRepository) Delete(_ context.Context, asset domain.AssetID) error {
	r.s.locked(func(st *state) {
		delete(st.holdings, asset)
	})
	return nil
}

func (r *holdingRepository) List(_ context.Context) ([]*domain.IndexAssetData, error) {
	var out []*domain.IndexAssetData
	r.s.locked(func(st *state) {
		for _, h := range st.holdings {
			h := h
			out = append(out, &h)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

// issuanceRepository implements domain.IssuanceRepository
type issuanceRepository struct {
	s *Store
}

// NewIssuanceRepository creates a new index token repository
func NewIssuanceRepository(s *Store) domain.IssuanceRepository {
	return &issuanceRepository{s: s}
}

func (r *issuanceRepository) GetBalance(_ context.Context, account domain.AccountID) (domain.Balance, error) {
	var b domain.Balance
	r.s.locked(func(st *state) {
		b = st.tokens[account]
	})
	return b, nil
}

func (r *issuanceRepository) SaveBalance(_ context.Context, account domain.AccountID, balance domain.Balance) error {
	r.s.locked(func(st *state) {
		if balance.IsZero() {
			delete(st.tokens, account)
			return
		}
		st.tokens[account] = balance
	})
	return nil
}

func (r *issuanceRepository) GetIssuance(_ context.Context) (domain.Balance, error) {
	var b domain.Balance
	r.s.locked(func(st *state) {
		b = st.issuance
	})
	return b, nil
}

func (r *issuanceRepository) SaveIssuance(_ context.Context, issuance domain.Balance) error {
	r.s.locked(func(st *state) {
		st.issuance = issuance
	})
	return nil
}
