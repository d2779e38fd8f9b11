package domain

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Vote is a committee member's choice on a proposal
type Vote string

const (
	VoteAye     Vote = "AYE"
	VoteNay     Vote = "NAY"
	VoteAbstain Vote = "ABSTAIN"
)

// Valid reports whether the vote is a known choice
func (v Vote) Valid() bool {
	return v == VoteAye || v == VoteNay || v == VoteAbstain
}

// MemberType distinguishes council members, whose votes decide a proposal,
// from constituents, who can only veto it
type MemberType string

const (
	MemberCouncil     MemberType = "COUNCIL"
	MemberConstituent MemberType = "CONSTITUENT"
)

// CommitteeMember is an account allowed to vote
type CommitteeMember struct {
	Account AccountID
	Type    MemberType
}

// ActionKind names a privileged operation a proposal can execute
type ActionKind string

const (
	ActionAddAsset            ActionKind = "add_asset"
	ActionRemoveAsset         ActionKind = "remove_asset"
	ActionTrackAsset          ActionKind = "track_asset"
	ActionUntrackAsset        ActionKind = "untrack_asset"
	ActionReportSaftNAV       ActionKind = "report_saft_nav"
	ActionConvertSaftToLiquid ActionKind = "convert_saft_to_liquid"
	ActionBond                ActionKind = "bond"
	ActionUnbond              ActionKind = "unbond"
)

// Action is the privileged call a proposal carries. Payload is opaque to
// governance and decoded only by the executor.
type Action struct {
	Kind    ActionKind
	Payload json.RawMessage
}

// ProposalHash is the content hash identifying a proposal
type ProposalHash [32]byte

func (h ProposalHash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseProposalHash decodes the hex form produced by String
func ParseProposalHash(s string) (ProposalHash, error) {
	var h ProposalHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid proposal hash: %w", ErrInvalidArgument)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("proposal hash must be %d bytes: %w", len(h), ErrInvalidArgument)
	}
	copy(h[:], b)
	return h, nil
}

// HashProposal computes blake2b-256 over (nonce, action kind, payload)
func HashProposal(nonce uint64, action Action) ProposalHash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)

	h, _ := blake2b.New256(nil)
	h.Write(n[:])
	h.Write([]byte(action.Kind))
	h.Write([]byte{0})
	h.Write(action.Payload)

	var out ProposalHash
	copy(out[:], h.Sum(nil))
	return out
}

// Proposal is a submitted privileged action awaiting a decision
type Proposal struct {
	Nonce    uint64
	Action   Action
	Hash     ProposalHash
	Proposer AccountID
	OpenedAt uint64 // Block height at submission
}

// MemberVote is one recorded vote
type MemberVote struct {
	Member CommitteeMember
	Vote   Vote
}

// VoteTally holds at most one vote per account
type VoteTally struct {
	Votes map[AccountID]MemberVote
}

// NewVoteTally returns an empty tally
func NewVoteTally() *VoteTally {
	return &VoteTally{Votes: make(map[AccountID]MemberVote)}
}

// Cast records the member's vote, replacing any earlier one
func (t *VoteTally) Cast(member CommitteeMember, vote Vote) {
	t.Votes[member.Account] = MemberVote{Member: member, Vote: vote}
}

// VoteOf returns the member's current vote
func (t *VoteTally) VoteOf(account AccountID) (Vote, bool) {
	mv, ok := t.Votes[account]
	return mv.Vote, ok
}

// VoteCounts is the number of each choice for one member type
type VoteCounts struct {
	Ayes     int
	Nays     int
	Abstains int
}

// Participants is the number of members that voted at all
func (c VoteCounts) Participants() int {
	return c.Ayes + c.Nays + c.Abstains
}

// Count tallies the votes of the given member type
func (t *VoteTally) Count(memberType MemberType) VoteCounts {
	var c VoteCounts
	for _, mv := range t.Votes {
		if mv.Member.Type != memberType {
			continue
		}
		switch mv.Vote {
		case VoteAye:
			c.Ayes++
		case VoteNay:
			c.Nays++
		case VoteAbstain:
			c.Abstains++
		}
	}
	return c
}

// Clone returns a deep copy
func (t *VoteTally) Clone() *VoteTally {
	c := NewVoteTally()
	for k, v := range t.Votes {
		c.Votes[k] = v
	}
	return c
}

// VotingPeriodRange bounds how long a proposal stays open, in blocks
type VotingPeriodRange struct {
	Min uint64
	Max uint64
}

// VotingRules decide whether a closed proposal is approved
type VotingRules struct {
	Period          VotingPeriodRange
	MinCouncilVotes int             // Quorum: council members that must participate
	Threshold       decimal.Decimal // Share of all council members that must vote Aye
}

// ProposalOutcome is the result of closing a proposal
type ProposalOutcome string

const (
	OutcomeApproved ProposalOutcome = "APPROVED"
	OutcomeRejected ProposalOutcome = "REJECTED"
)

// RejectionReason explains a rejected proposal
type RejectionReason string

const (
	RejectExpired           RejectionReason = "EXPIRED"
	RejectInsufficientVotes RejectionReason = "INSUFFICIENT_VOTES"
	RejectCouncilDeny       RejectionReason = "COUNCIL_DENY"
	RejectConstituentVeto   RejectionReason = "CONSTITUENT_VETO"
)

// ClosedProposal reports how a proposal ended. ExecutionErr is set when the
// approved action itself failed; the proposal stays closed either way.
type ClosedProposal struct {
	Proposal     Proposal
	Outcome      ProposalOutcome
	Reason       RejectionReason
	Ayes         int
	Nays         int
	Abstains     int
	ClosedAt     uint64
	ExecutionErr error
}
