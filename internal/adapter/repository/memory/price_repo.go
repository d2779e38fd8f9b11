package memory

import (
	"context"
	"sort"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// priceRepository implements domain.PriceRepository
type priceRepository struct {
	s *Store
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(s *Store) domain.PriceRepository {
	return &priceRepository{s: s}
}

func (r *priceRepository) IsTracked(_ context.Context, asset domain.AssetID) (bool, error) {
	var ok bool
	r.s.locked(func(st *state) {
		ok = st.tracked[asset]
	})
	return ok, nil
}

func (r *priceRepository) Track(_ context.Context, asset domain.AssetID) error {
	r.s.locked(func(st *state) {
		st.tracked[asset] = true
	})
	return nil
}

func (r *priceRepository) Untrack(_ context.Context, asset domain.AssetID) error {
	r.s.locked(func(st *state) {
		delete(st.tracked, asset)
		delete(st.prices, asset)
	})
	return nil
}

func (r *priceRepository) ListTracked(_ context.Context) ([]domain.AssetID, error) {
	var assets []domain.AssetID
	r.s.locked(func(st *state) {
		for a := range st.tracked {
			assets = append(assets, a)
		}
	})
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	return assets, nil
}

func (r *priceRepository) GetLatest(_ context.Context, asset domain.AssetID) (*domain.TimestampedValue, error) {
	var out *domain.TimestampedValue
	r.s.locked(func(st *state) {
		if v, ok := st.prices[asset]; ok {
			out = &v
		}
	})
	return out, nil
}

func (r *priceRepository) SaveLatest(_ context.Context, asset domain.AssetID, value domain.TimestampedValue) error {
	r.s.locked(func(st *state) {
		st.prices[asset] = value
	})
	return nil
}
