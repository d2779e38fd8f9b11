package memory

import (
	"context"
	"sort"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// committeeRepository implements domain.CommitteeRepository
type committeeRepository struct {
	s *Store
}

// NewCommitteeRepository creates a new committee repository
func NewCommitteeRepository(s *Store) domain.CommitteeRepository {
	return &committeeRepository{s: s}
}

func (r *committeeRepository) GetMember(_ context.Context, account domain.AccountID) (*domain.CommitteeMember, error) {
	var out *domain.CommitteeMember
	r.s.locked(func(st *state) {
		if m, ok := st.members[account]; ok {
			out = &m
		}
	})
	return out, nil
}

func (r *committeeRepository) SaveMember(_ context.Context, member *domain.CommitteeMember) error {
	r.s.locked(func(st *state) {
		st.members[member.Account] = *member
	})
	return nil
}

func (r *committeeRepository) DeleteMember(_ context.Context, account domain.AccountID) error {
	r.s.locked(func(st *state) {
		delete(st.members, account)
	})
	return nil
}

func (r *committeeRepository) ListMembers(_ context.Context) ([]*domain.CommitteeMember, error) {
	var out []*domain.CommitteeMember
	r.s.locked(func(st *state) {
		for _, m := range st.members {
			m := m
			out = append(out, &m)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

func (r *committeeRepository) NextNonce(_ context.Context) (uint64, error) {
	var n uint64
	r.s.locked(func(st *state) {
		n = st.nonce
		st.nonce++
	})
	return n, nil
}

func (r *committeeRepository) GetProposal(_ context.Context, hash domain.ProposalHash) (*domain.Proposal, error) {
	var out *domain.Proposal
	r.s.locked(func(st *state) {
		if p, ok := st.proposals[hash]; ok {
			out = &p
		}
	})
	return out, nil
}

func (r *committeeRepository) SaveProposal(_ context.Context, proposal *domain.Proposal) error {
	r.s.locked(func(st *state) {
		st.proposals[proposal.Hash] = *proposal
		if _, ok := st.votes[proposal.Hash]; !ok {
			st.votes[proposal.Hash] = domain.NewVoteTally()
		}
	})
	return nil
}

func (r *committeeRepository) DeleteProposal(_ context.Context, hash domain.ProposalHash) error {
	r.s.locked(func(st *state) {
		delete(st.proposals, hash)
		delete(st.votes, hash)
	})
	return nil
}

func (r *committeeRepository) ListProposals(_ context.Context) ([]*domain.Proposal, error) {
	var out []*domain.Proposal
	r.s.locked(func(st *state) {
		for _, p := range st.proposals {
			p := p
			out = append(out, &p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce < out[j].Nonce })
	return out, nil
}

func (r *committeeRepository) GetVotes(_ context.Context, hash domain.ProposalHash) (*domain.VoteTally, error) {
	var out *domain.VoteTally
	r.s.locked(func(st *state) {
		if t, ok := st.votes[hash]; ok {
			out = t.Clone()
		}
	})
	if out == nil {
		out = domain.NewVoteTally()
	}
	return out, nil
}

func (r *committeeRepository) SaveVote(_ context.Context, hash domain.ProposalHash, vote domain.MemberVote) error {
	r.s.locked(func(st *state) {
		t, ok := st.votes[hash]
		if !ok {
			t = domain.NewVoteTally()
			st.votes[hash] = t
		}
		t.Cast(vote.Member, vote.Vote)
	})
	return nil
}
