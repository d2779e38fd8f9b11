package committee

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/indexfund-backend/internal/adapter/clock"
	"github.com/simaogato/indexfund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/indexfund-backend/internal/domain"
)

// MockActionExecutor is a mock implementation of ActionExecutor
type MockActionExecutor struct {
	mock.Mock
}

func (m *MockActionExecutor) Execute(ctx context.Context, origin domain.Origin, action domain.Action) error {
	args := m.Called(ctx, origin, action)
	return args.Error(0)
}

var testRules = domain.VotingRules{
	Period:          domain.VotingPeriodRange{Min: 10, Max: 100},
	MinCouncilVotes: 2,
	Threshold:       decimal.RequireFromString("0.5"),
}

var trackDOT = domain.Action{Kind: domain.ActionTrackAsset, Payload: []byte(`{"asset":"DOT"}`)}

type fixture struct {
	svc      *CommitteeService
	clock    *clock.ManualClock
	executor *MockActionExecutor
}

// newFixture seats three council members (c1..c3) and two constituents (k1, k2)
func newFixture(t *testing.T) *fixture {
	store := memory.NewStore()
	clk := clock.NewManualClock(1000)
	executor := new(MockActionExecutor)
	svc := NewCommitteeService(memory.NewCommitteeRepository(store), executor, clk, store, testRules)

	ctx := context.Background()
	root := domain.Root("root")
	for _, m := range []domain.CommitteeMember{
		{Account: "c1", Type: domain.MemberCouncil},
		{Account: "c2", Type: domain.MemberCouncil},
		{Account: "c3", Type: domain.MemberCouncil},
		{Account: "k1", Type: domain.MemberConstituent},
		{Account: "k2", Type: domain.MemberConstituent},
	} {
		require.NoError(t, svc.AddMember(ctx, root, m))
	}
	return &fixture{svc: svc, clock: clk, executor: executor}
}

func (f *fixture) vote(t *testing.T, hash domain.ProposalHash, votes map[domain.AccountID]domain.Vote) {
	for account, v := range votes {
		require.NoError(t, f.svc.Vote(context.Background(), domain.Signed(account), hash, v))
	}
}

func TestCommitteeService_Propose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Propose(ctx, domain.Signed("mallory"), trackDOT)
	assert.ErrorIs(t, err, domain.ErrBadOrigin)

	first, err := f.svc.Propose(ctx, domain.Signed("c1"), trackDOT)
	require.NoError(t, err)
	second, err := f.svc.Propose(ctx, domain.Root("root"), trackDOT)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first.Nonce)
	assert.Equal(t, uint64(1), second.Nonce)
	assert.NotEqual(t, first.Hash, second.Hash, "same action under a new nonce is a new proposal")
	assert.Equal(t, domain.HashProposal(0, trackDOT), first.Hash)
	assert.Equal(t, uint64(1000), first.OpenedAt)
	assert.Equal(t, domain.AccountID("c1"), first.Proposer)

	proposals, err := f.svc.Proposals(ctx)
	require.NoError(t, err)
	assert.Len(t, proposals, 2)

	tally, err := f.svc.Tally(ctx, first.Hash)
	require.NoError(t, err)
	assert.Empty(t, tally.Votes)
}

func TestCommitteeService_Vote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p, err := f.svc.Propose(ctx, domain.Signed("c1"), trackDOT)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Vote(ctx, domain.Signed("mallory"), p.Hash, domain.VoteAye), domain.ErrBadOrigin)
	assert.ErrorIs(t, f.svc.Vote(ctx, domain.Signed("c1"), domain.ProposalHash{1}, domain.VoteAye), domain.ErrProposalNotFound)
	assert.ErrorIs(t, f.svc.Vote(ctx, domain.Signed("c1"), p.Hash, domain.Vote("MAYBE")), domain.ErrInvalidArgument)

	require.NoError(t, f.svc.Vote(ctx, domain.Signed("c1"), p.Hash, domain.VoteAye))
	assert.ErrorIs(t, f.svc.Vote(ctx, domain.Signed("c1"), p.Hash, domain.VoteAye), domain.ErrDuplicateVote)

	// changing the vote replaces it
	require.NoError(t, f.svc.Vote(ctx, domain.Signed("c1"), p.Hash, domain.VoteNay))
	tally, err := f.svc.Tally(ctx, p.Hash)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteCounts{Nays: 1}, tally.Count(domain.MemberCouncil))
}

func TestCommitteeService_Close(t *testing.T) {
	tests := []struct {
		name       string
		votes      map[domain.AccountID]domain.Vote
		advance    uint64
		wantErr    error
		wantOut    domain.ProposalOutcome
		wantReason domain.RejectionReason
	}{
		{
			name:    "before min without quorum",
			votes:   map[domain.AccountID]domain.Vote{"c1": domain.VoteAye},
			advance: 5,
			wantErr: domain.ErrVotingStillOpen,
		},
		{
			name:    "before min with quorum",
			votes:   map[domain.AccountID]domain.Vote{"c1": domain.VoteAye, "c2": domain.VoteAye},
			advance: 5,
			wantOut: domain.OutcomeApproved,
		},
		{
			name:       "after max even if unanimous",
			votes:      map[domain.AccountID]domain.Vote{"c1": domain.VoteAye, "c2": domain.VoteAye, "c3": domain.VoteAye},
			advance:    101,
			wantOut:    domain.OutcomeRejected,
			wantReason: domain.RejectExpired,
		},
		{
			name:       "quorum not reached",
			votes:      map[domain.AccountID]domain.Vote{"c1": domain.VoteAye, "k1": domain.VoteAye},
			advance:    50,
			wantOut:    domain.OutcomeRejected,
			wantReason: domain.RejectInsufficientVotes,
		},
		{
			name:       "council below threshold",
			votes:      map[domain.AccountID]domain.Vote{"c1": domain.VoteAye, "c2": domain.VoteNay, "c3": domain.VoteAbstain},
			advance:    50,
			wantOut:    domain.OutcomeRejected,
			wantReason: domain.RejectCouncilDeny,
		},
		{
			name: "constituent veto",
			votes: map[domain.AccountID]domain.Vote{
				"c1": domain.VoteAye, "c2": domain.VoteAye,
				"k1": domain.VoteNay, "k2": domain.VoteNay,
			},
			advance:    50,
			wantOut:    domain.OutcomeRejected,
			wantReason: domain.RejectConstituentVeto,
		},
		{
			name: "constituents split",
			votes: map[domain.AccountID]domain.Vote{
				"c1": domain.VoteAye, "c2": domain.VoteAye,
				"k1": domain.VoteNay, "k2": domain.VoteAye,
			},
			advance: 100,
			wantOut: domain.OutcomeApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			p, err := f.svc.Propose(ctx, domain.Signed("c1"), trackDOT)
			require.NoError(t, err)
			f.vote(t, p.Hash, tt.votes)
			f.clock.Advance(tt.advance)
			f.executor.On("Execute", mock.Anything, domain.Committee("c1"), trackDOT).Return(nil).Maybe()

			closed, err := f.svc.Close(ctx, domain.Signed("c2"), p.Hash)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, err := f.svc.Proposal(ctx, p.Hash)
				assert.NoError(t, err, "proposal stays open")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOut, closed.Outcome)
			assert.Equal(t, tt.wantReason, closed.Reason)
			assert.NoError(t, closed.ExecutionErr)

			if tt.wantOut == domain.OutcomeApproved {
				f.executor.AssertNumberOfCalls(t, "Execute", 1)
			} else {
				f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
			}

			_, err = f.svc.Proposal(ctx, p.Hash)
			assert.ErrorIs(t, err, domain.ErrProposalNotFound)
			_, err = f.svc.Tally(ctx, p.Hash)
			assert.ErrorIs(t, err, domain.ErrProposalNotFound)
		})
	}
}

func TestCommitteeService_ExecutionFailureStillCloses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p, err := f.svc.Propose(ctx, domain.Signed("c1"), trackDOT)
	require.NoError(t, err)
	f.vote(t, p.Hash, map[domain.AccountID]domain.Vote{"c1": domain.VoteAye, "c2": domain.VoteAye})
	f.clock.Advance(20)

	boom := errors.New("boom")
	f.executor.On("Execute", mock.Anything, domain.Committee("c1"), trackDOT).Return(boom).Once()

	closed, err := f.svc.Close(ctx, domain.Signed("c3"), p.Hash)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApproved, closed.Outcome)
	assert.ErrorIs(t, closed.ExecutionErr, boom)
	assert.Equal(t, 2, closed.Ayes)
	assert.Equal(t, uint64(1020), closed.ClosedAt)

	assert.ErrorIs(t, f.svc.Vote(ctx, domain.Signed("c3"), p.Hash, domain.VoteAye), domain.ErrProposalNotFound)
	_, err = f.svc.Close(ctx, domain.Signed("c3"), p.Hash)
	assert.ErrorIs(t, err, domain.ErrProposalNotFound)
	f.executor.AssertExpectations(t)
}

func TestCommitteeService_Members(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	root := domain.Root("root")

	assert.ErrorIs(t, f.svc.AddMember(ctx, domain.Signed("c1"), domain.CommitteeMember{Account: "x", Type: domain.MemberCouncil}), domain.ErrBadOrigin)
	assert.ErrorIs(t, f.svc.AddMember(ctx, root, domain.CommitteeMember{Account: "c1", Type: domain.MemberCouncil}), domain.ErrAlreadyMember)
	assert.ErrorIs(t, f.svc.AddMember(ctx, root, domain.CommitteeMember{Account: "x", Type: "OBSERVER"}), domain.ErrInvalidArgument)

	require.NoError(t, f.svc.RemoveMember(ctx, root, "c3"))
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, root, "c3"), domain.ErrNotMember)
	assert.ErrorIs(t, f.svc.RemoveMember(ctx, domain.Signed("c1"), "c2"), domain.ErrBadOrigin)

	members, err := f.svc.Members(ctx)
	require.NoError(t, err)
	accounts := make([]domain.AccountID, 0, len(members))
	for _, m := range members {
		accounts = append(accounts, m.Account)
	}
	assert.Equal(t, []domain.AccountID{"c1", "c2", "k1", "k2"}, accounts)

	// with two council seats left, one Aye meets the 50% threshold
	p, err := f.svc.Propose(ctx, domain.Signed("c1"), trackDOT)
	require.NoError(t, err)
	f.vote(t, p.Hash, map[domain.AccountID]domain.Vote{"c1": domain.VoteAye, "c2": domain.VoteNay})
	f.clock.Advance(10)
	f.executor.On("Execute", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	closed, err := f.svc.Close(ctx, domain.Signed("c1"), p.Hash)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApproved, closed.Outcome)
}
