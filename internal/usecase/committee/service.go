package committee

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// ActionExecutor dispatches the privileged call carried by an approved proposal
type ActionExecutor interface {
	Execute(ctx context.Context, origin domain.Origin, action domain.Action) error
}

// CommitteeService runs the proposal lifecycle: Proposed -> Closed{Approved|Rejected}
type CommitteeService struct {
	CommitteeRepo domain.CommitteeRepository
	Executor      ActionExecutor
	Clock         domain.Clock
	Tx            domain.TxManager
	Rules         domain.VotingRules
}

// NewCommitteeService creates a new CommitteeService instance
func NewCommitteeService(
	committeeRepo domain.CommitteeRepository,
	executor ActionExecutor,
	clock domain.Clock,
	tx domain.TxManager,
	rules domain.VotingRules,
) *CommitteeService {
	return &CommitteeService{
		CommitteeRepo: committeeRepo,
		Executor:      executor,
		Clock:         clock,
		Tx:            tx,
		Rules:         rules,
	}
}

// Propose opens a proposal for the action. The caller must be a committee
// member or root.
// Logic:
//  1. Allocate the next nonce
//  2. Hash (nonce, action) to get the proposal identity
//  3. Store the proposal with an empty tally and the current height
func (s *CommitteeService) Propose(ctx context.Context, origin domain.Origin, action domain.Action) (*domain.Proposal, error) {
	caller, err := origin.EnsureSigned()
	if err != nil {
		return nil, err
	}
	if action.Kind == "" {
		return nil, fmt.Errorf("action kind is required: %w", domain.ErrInvalidArgument)
	}

	var proposal *domain.Proposal
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if origin.Kind != domain.OriginRoot {
			if _, err := s.member(ctx, caller); err != nil {
				return err
			}
		}

		nonce, err := s.CommitteeRepo.NextNonce(ctx)
		if err != nil {
			return fmt.Errorf("failed to allocate proposal nonce: %w", err)
		}
		hash := domain.HashProposal(nonce, action)

		existing, err := s.CommitteeRepo.GetProposal(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to get proposal: %w", err)
		}
		if existing != nil {
			return domain.ErrDuplicateProposal
		}

		proposal = &domain.Proposal{
			Nonce:    nonce,
			Action:   action,
			Hash:     hash,
			Proposer: caller,
			OpenedAt: s.Clock.BlockNumber(),
		}
		if err := s.CommitteeRepo.SaveProposal(ctx, proposal); err != nil {
			return fmt.Errorf("failed to save proposal: %w", err)
		}

		log.Info().Str("proposal", hash.String()).Uint64("nonce", nonce).
			Str("action", string(action.Kind)).Str("proposer", string(caller)).Msg("proposal opened")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

// Vote records the caller's choice. A different choice replaces the earlier
// vote; repeating the same choice fails with ErrDuplicateVote.
func (s *CommitteeService) Vote(ctx context.Context, origin domain.Origin, hash domain.ProposalHash, vote domain.Vote) error {
	caller, err := origin.EnsureSigned()
	if err != nil {
		return err
	}
	if !vote.Valid() {
		return fmt.Errorf("unknown vote %q: %w", vote, domain.ErrInvalidArgument)
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		member, err := s.member(ctx, caller)
		if err != nil {
			return err
		}
		if _, err := s.Proposal(ctx, hash); err != nil {
			return err
		}

		tally, err := s.CommitteeRepo.GetVotes(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to get votes: %w", err)
		}
		if prev, ok := tally.VoteOf(caller); ok && prev == vote {
			return domain.ErrDuplicateVote
		}

		if err := s.CommitteeRepo.SaveVote(ctx, hash, domain.MemberVote{Member: *member, Vote: vote}); err != nil {
			return fmt.Errorf("failed to save vote: %w", err)
		}
		log.Debug().Str("proposal", hash.String()).Str("member", string(caller)).Str("vote", string(vote)).Msg("vote cast")
		return nil
	})
}

// Close decides a proposal and removes it with its tally.
// Logic:
//  1. Past the maximum period the proposal is rejected as expired
//  2. Before the minimum period closing needs council quorum
//  3. Otherwise quorum, council threshold and constituent veto decide
//  4. An approved action is executed with a committee origin; its failure is
//     reported in the result and does not reopen the proposal
func (s *CommitteeService) Close(ctx context.Context, origin domain.Origin, hash domain.ProposalHash) (*domain.ClosedProposal, error) {
	if _, err := origin.EnsureSigned(); err != nil {
		return nil, err
	}

	var closed *domain.ClosedProposal
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		proposal, err := s.Proposal(ctx, hash)
		if err != nil {
			return err
		}
		tally, err := s.CommitteeRepo.GetVotes(ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to get votes: %w", err)
		}
		councilSize, err := s.councilSize(ctx)
		if err != nil {
			return err
		}

		now := s.Clock.BlockNumber()
		var elapsed uint64
		if now > proposal.OpenedAt {
			elapsed = now - proposal.OpenedAt
		}
		outcome, reason, err := s.decide(elapsed, tally.Count(domain.MemberCouncil), tally.Count(domain.MemberConstituent), councilSize)
		if err != nil {
			return err
		}

		council := tally.Count(domain.MemberCouncil)
		closed = &domain.ClosedProposal{
			Proposal: *proposal,
			Outcome:  outcome,
			Reason:   reason,
			Ayes:     council.Ayes,
			Nays:     council.Nays,
			Abstains: council.Abstains,
			ClosedAt: now,
		}

		if err := s.CommitteeRepo.DeleteProposal(ctx, hash); err != nil {
			return fmt.Errorf("failed to delete proposal: %w", err)
		}

		if outcome == domain.OutcomeApproved {
			closed.ExecutionErr = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
				return s.Executor.Execute(ctx, domain.Committee(proposal.Proposer), proposal.Action)
			})
			if closed.ExecutionErr != nil {
				log.Warn().Err(closed.ExecutionErr).Str("proposal", hash.String()).
					Str("action", string(proposal.Action.Kind)).Msg("approved proposal failed to execute")
			}
		}

		log.Info().Str("proposal", hash.String()).Str("outcome", string(outcome)).
			Str("reason", string(reason)).Int("ayes", council.Ayes).Int("nays", council.Nays).Msg("proposal closed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// decide applies the voting rules to the tally after elapsed blocks
func (s *CommitteeService) decide(elapsed uint64, council, constituents domain.VoteCounts, councilSize int) (domain.ProposalOutcome, domain.RejectionReason, error) {
	if elapsed > s.Rules.Period.Max {
		return domain.OutcomeRejected, domain.RejectExpired, nil
	}

	quorum := council.Participants() >= s.Rules.MinCouncilVotes
	if elapsed < s.Rules.Period.Min && !quorum {
		return "", "", domain.ErrVotingStillOpen
	}
	if !quorum {
		return domain.OutcomeRejected, domain.RejectInsufficientVotes, nil
	}

	required := s.Rules.Threshold.Mul(decimal.NewFromInt(int64(councilSize)))
	if decimal.NewFromInt(int64(council.Ayes)).LessThan(required) {
		return domain.OutcomeRejected, domain.RejectCouncilDeny, nil
	}
	if constituents.Nays > constituents.Ayes {
		return domain.OutcomeRejected, domain.RejectConstituentVeto, nil
	}
	return domain.OutcomeApproved, "", nil
}

func (s *CommitteeService) councilSize(ctx context.Context) (int, error) {
	members, err := s.CommitteeRepo.ListMembers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list members: %w", err)
	}
	n := 0
	for _, m := range members {
		if m.Type == domain.MemberCouncil {
			n++
		}
	}
	return n, nil
}

// AddMember grants voting rights. Root only.
func (s *CommitteeService) AddMember(ctx context.Context, origin domain.Origin, member domain.CommitteeMember) error {
	if err := origin.EnsureRoot(); err != nil {
		return err
	}
	if member.Account == "" {
		return fmt.Errorf("member account is required: %w", domain.ErrInvalidArgument)
	}
	if member.Type != domain.MemberCouncil && member.Type != domain.MemberConstituent {
		return fmt.Errorf("unknown member type %q: %w", member.Type, domain.ErrInvalidArgument)
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.CommitteeRepo.GetMember(ctx, member.Account)
		if err != nil {
			return fmt.Errorf("failed to get member: %w", err)
		}
		if existing != nil {
			return domain.ErrAlreadyMember
		}
		if err := s.CommitteeRepo.SaveMember(ctx, &member); err != nil {
			return fmt.Errorf("failed to save member: %w", err)
		}
		log.Info().Str("member", string(member.Account)).Str("type", string(member.Type)).Msg("committee member added")
		return nil
	})
}

// RemoveMember revokes voting rights. Votes already cast stay in their tallies.
func (s *CommitteeService) RemoveMember(ctx context.Context, origin domain.Origin, account domain.AccountID) error {
	if err := origin.EnsureRoot(); err != nil {
		return err
	}

	return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.CommitteeRepo.GetMember(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to get member: %w", err)
		}
		if existing == nil {
			return domain.ErrNotMember
		}
		if err := s.CommitteeRepo.DeleteMember(ctx, account); err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		log.Info().Str("member", string(account)).Msg("committee member removed")
		return nil
	})
}

// Members lists the committee
func (s *CommitteeService) Members(ctx context.Context) ([]*domain.CommitteeMember, error) {
	members, err := s.CommitteeRepo.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// Proposal returns an open proposal
func (s *CommitteeService) Proposal(ctx context.Context, hash domain.ProposalHash) (*domain.Proposal, error) {
	proposal, err := s.CommitteeRepo.GetProposal(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	if proposal == nil {
		return nil, domain.ErrProposalNotFound
	}
	return proposal, nil
}

// Proposals lists open proposals ordered by nonce
func (s *CommitteeService) Proposals(ctx context.Context) ([]*domain.Proposal, error) {
	proposals, err := s.CommitteeRepo.ListProposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	return proposals, nil
}

// Tally returns the votes cast on an open proposal
func (s *CommitteeService) Tally(ctx context.Context, hash domain.ProposalHash) (*domain.VoteTally, error) {
	if _, err := s.Proposal(ctx, hash); err != nil {
		return nil, err
	}
	tally, err := s.CommitteeRepo.GetVotes(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get votes: %w", err)
	}
	return tally, nil
}

// member fails with ErrBadOrigin unless the account sits on the committee
func (s *CommitteeService) member(ctx context.Context, account domain.AccountID) (*domain.CommitteeMember, error) {
	m, err := s.CommitteeRepo.GetMember(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if m == nil {
		return nil, domain.ErrBadOrigin
	}
	return m, nil
}
