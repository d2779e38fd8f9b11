package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// committeeRepository implements domain.CommitteeRepository
type committeeRepository struct {
	db *DB
}

// NewCommitteeRepository creates a new committee repository
func NewCommitteeRepository(db *DB) domain.CommitteeRepository {
	return &committeeRepository{db: db}
}

// GetMember retrieves a committee member by account
func (r *committeeRepository) GetMember(ctx context.Context, account domain.AccountID) (*domain.CommitteeMember, error) {
	var memberType string
	err := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT member_type FROM committee_members WHERE account = $1`, string(account)).Scan(&memberType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &domain.CommitteeMember{Account: account, Type: domain.MemberType(memberType)}, nil
}

// SaveMember creates or replaces a committee member
func (r *committeeRepository) SaveMember(ctx context.Context, member *domain.CommitteeMember) error {
	query := `
		INSERT INTO committee_members (account, member_type)
		VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET member_type = EXCLUDED.member_type
	`
	if _, err := r.db.conn(ctx).ExecContext(ctx, query, string(member.Account), string(member.Type)); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

// DeleteMember removes a committee member
func (r *committeeRepository) DeleteMember(ctx context.Context, account domain.AccountID) error {
	if _, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM committee_members WHERE account = $1`, string(account)); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

// ListMembers returns every member ordered by account
func (r *committeeRepository) ListMembers(ctx context.Context) ([]*domain.CommitteeMember, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, `SELECT account, member_type FROM committee_members ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*domain.CommitteeMember
	for rows.Next() {
		var account, memberType string
		if err := rows.Scan(&account, &memberType); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &domain.CommitteeMember{
			Account: domain.AccountID(account),
			Type:    domain.MemberType(memberType),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

// NextNonce returns the next proposal nonce and advances the counter
func (r *committeeRepository) NextNonce(ctx context.Context) (uint64, error) {
	return r.db.nextCounter(ctx, "proposal")
}

const proposalColumns = `hash, nonce::TEXT, action_kind, payload, proposer, opened_at::TEXT`

func scanProposal(row rowScanner) (*domain.Proposal, error) {
	var p domain.Proposal
	var hash, payload []byte
	var nonceStr, kind, proposer, openedStr string
	if err := row.Scan(&hash, &nonceStr, &kind, &payload, &proposer, &openedStr); err != nil {
		return nil, err
	}
	if len(hash) != len(p.Hash) {
		return nil, fmt.Errorf("stored proposal hash has %d bytes", len(hash))
	}
	copy(p.Hash[:], hash)

	nonce, err := parseBalance("nonce", nonceStr)
	if err != nil {
		return nil, err
	}
	opened, err := parseBalance("opened_at", openedStr)
	if err != nil {
		return nil, err
	}
	p.Nonce = uint64(nonce)
	p.OpenedAt = uint64(opened)
	p.Proposer = domain.AccountID(proposer)
	p.Action = domain.Action{Kind: domain.ActionKind(kind), Payload: payload}
	return &p, nil
}

// GetProposal retrieves an open proposal by hash
func (r *committeeRepository) GetProposal(ctx context.Context, hash domain.ProposalHash) (*domain.Proposal, error) {
	row := r.db.conn(ctx).QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE hash = $1`, hash[:])
	p, err := scanProposal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// SaveProposal stores a new proposal
func (r *committeeRepository) SaveProposal(ctx context.Context, proposal *domain.Proposal) error {
	query := `
		INSERT INTO proposals (hash, nonce, action_kind, payload, proposer, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO NOTHING
	`
	payload := []byte(proposal.Action.Payload)
	if payload == nil {
		payload = []byte{}
	}
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		proposal.Hash[:],
		domain.Balance(proposal.Nonce).String(),
		string(proposal.Action.Kind),
		payload,
		string(proposal.Proposer),
		domain.Balance(proposal.OpenedAt).String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save proposal: %w", err)
	}
	return nil
}

// DeleteProposal removes a proposal; its votes go with it by cascade
func (r *committeeRepository) DeleteProposal(ctx context.Context, hash domain.ProposalHash) error {
	if _, err := r.db.conn(ctx).ExecContext(ctx, `DELETE FROM proposals WHERE hash = $1`, hash[:]); err != nil {
		return fmt.Errorf("failed to delete proposal: %w", err)
	}
	return nil
}

// ListProposals returns open proposals ordered by nonce
func (r *committeeRepository) ListProposals(ctx context.Context) ([]*domain.Proposal, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx, `SELECT `+proposalColumns+` FROM proposals ORDER BY nonce`)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []*domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposals: %w", err)
	}
	return proposals, nil
}

// GetVotes retrieves the tally of a proposal
func (r *committeeRepository) GetVotes(ctx context.Context, hash domain.ProposalHash) (*domain.VoteTally, error) {
	rows, err := r.db.conn(ctx).QueryContext(ctx,
		`SELECT account, member_type, vote FROM proposal_votes WHERE hash = $1`, hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to get votes: %w", err)
	}
	defer rows.Close()

	tally := domain.NewVoteTally()
	for rows.Next() {
		var account, memberType, vote string
		if err := rows.Scan(&account, &memberType, &vote); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		member := domain.CommitteeMember{Account: domain.AccountID(account), Type: domain.MemberType(memberType)}
		tally.Cast(member, domain.Vote(vote))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return tally, nil
}

// SaveVote records or replaces one member's vote
func (r *committeeRepository) SaveVote(ctx context.Context, hash domain.ProposalHash, vote domain.MemberVote) error {
	query := `
		INSERT INTO proposal_votes (hash, account, member_type, vote)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash, account) DO UPDATE
		SET member_type = EXCLUDED.member_type, vote = EXCLUDED.vote
	`
	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		hash[:],
		string(vote.Member.Account),
		string(vote.Member.Type),
		string(vote.Vote),
	)
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}
