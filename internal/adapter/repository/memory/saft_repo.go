package memory

import (
	"context"
	"sort"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// saftRepository implements domain.SaftRepository
type saftRepository struct {
	s *Store
}

// NewSaftRepository creates a new SAFT record repository
func NewSaftRepository(s *Store) domain.SaftRepository {
	return &saftRepository{s: s}
}

func (r *saftRepository) NextID(_ context.Context, asset domain.AssetID) (uint32, error) {
	var id uint32
	r.s.locked(func(st *state) {
		id = st.saftNonce[asset]
		st.saftNonce[asset] = id + 1
	})
	return id, nil
}

func (r *saftRepository) Get(_ context.Context, asset domain.AssetID, id uint32) (*domain.SaftRecord, error) {
	var out *domain.SaftRecord
	r.s.locked(func(st *state) {
		if rec, ok := st.safts[saftKey{asset, id}]; ok {
			out = &rec
		}
	})
	return out, nil
}

func (r *saftRepository) Save(_ context.Context, record *domain.SaftRecord) error {
	r.s.locked(func(st *state) {
		st.safts[saftKey{record.Asset, record.ID}] = *record
	})
	return nil
}

func (r *saftRepository) Delete(_ context.Context, asset domain.AssetID, id uint32) error {
	r.s.locked(func(st *state) {
		delete(st.safts, saftKey{asset, id})
	})
	return nil
}

func (r *saftRepository) List(_ context.Context, asset domain.AssetID) ([]*domain.SaftRecord, error) {
	var out []*domain.SaftRecord
	r.s.locked(func(st *state) {
		for k, rec := range st.safts {
			if k.asset != asset {
				continue
			}
			rec := rec
			out = append(out, &rec)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *saftRepository) DeleteAll(_ context.Context, asset domain.AssetID) error {
	r.s.locked(func(st *state) {
		for k := range st.safts {
			if k.asset == asset {
				delete(st.safts, k)
			}
		}
	})
	return nil
}
