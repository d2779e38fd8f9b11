package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// redemptionRepository implements domain.RedemptionRepository
type redemptionRepository struct {
	s *Store
}

// NewRedemptionRepository creates a new pending redemption repository
func NewRedemptionRepository(s *Store) domain.RedemptionRepository {
	return &redemptionRepository{s: s}
}

func (r *redemptionRepository) Get(_ context.Context, id uuid.UUID) (*domain.PendingRedemption, error) {
	var out *domain.PendingRedemption
	r.s.locked(func(st *state) {
		if p, ok := st.redemptions[id]; ok {
			out = p.Clone()
		}
	})
	return out, nil
}

func (r *redemptionRepository) Save(_ context.Context, redemption *domain.PendingRedemption) error {
	r.s.locked(func(st *state) {
		st.redemptions[redemption.ID] = redemption.Clone()
	})
	return nil
}

func (r *redemptionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.locked(func(st *state) {
		delete(st.redemptions, id)
	})
	return nil
}

func (r *redemptionRepository) List(_ context.Context, account domain.AccountID) ([]*domain.PendingRedemption, error) {
	var out []*domain.PendingRedemption
	r.s.locked(func(st *state) {
		for _, p := range st.redemptions {
			if account != "" && p.Account != account {
				continue
			}
			out = append(out, p.Clone())
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Initiated != out[j].Initiated {
			return out[i].Initiated < out[j].Initiated
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
