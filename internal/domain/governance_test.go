package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProposal(t *testing.T) {
	action := Action{Kind: ActionTrackAsset, Payload: json.RawMessage(`{"asset":"DOT"}`)}

	h1 := HashProposal(1, action)
	assert.Equal(t, h1, HashProposal(1, action), "hash must be deterministic")
	assert.NotEqual(t, h1, HashProposal(2, action), "nonce must change the hash")

	other := Action{Kind: ActionUntrackAsset, Payload: action.Payload}
	assert.NotEqual(t, h1, HashProposal(1, other), "kind must change the hash")

	parsed, err := ParseProposalHash(h1.String())
	require.NoError(t, err)
	assert.Equal(t, h1, parsed)

	_, err = ParseProposalHash("abcd")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestVoteTally_LastVoteWins(t *testing.T) {
	alice := CommitteeMember{Account: "alice", Type: MemberCouncil}
	bob := CommitteeMember{Account: "bob", Type: MemberCouncil}
	carol := CommitteeMember{Account: "carol", Type: MemberConstituent}

	tally := NewVoteTally()
	tally.Cast(alice, VoteAye)
	tally.Cast(bob, VoteNay)
	tally.Cast(carol, VoteNay)
	tally.Cast(bob, VoteAye)

	council := tally.Count(MemberCouncil)
	assert.Equal(t, VoteCounts{Ayes: 2}, council)
	assert.Equal(t, 2, council.Participants())

	constituents := tally.Count(MemberConstituent)
	assert.Equal(t, VoteCounts{Nays: 1}, constituents)

	v, ok := tally.VoteOf("bob")
	assert.True(t, ok)
	assert.Equal(t, VoteAye, v)

	clone := tally.Clone()
	clone.Cast(alice, VoteAbstain)
	v, _ = tally.VoteOf("alice")
	assert.Equal(t, VoteAye, v)
}

func TestOrigin_Checks(t *testing.T) {
	assert.NoError(t, Root("admin").EnsureRoot())
	assert.NoError(t, Root("admin").EnsureAdmin())
	assert.NoError(t, Committee("alice").EnsureAdmin())
	assert.ErrorIs(t, Committee("alice").EnsureRoot(), ErrBadOrigin)
	assert.ErrorIs(t, Signed("bob").EnsureAdmin(), ErrUnauthorized)

	_, err := Origin{}.EnsureSigned()
	assert.ErrorIs(t, err, ErrBadOrigin)

	who, err := Signed("bob").EnsureSigned()
	assert.NoError(t, err)
	assert.Equal(t, AccountID("bob"), who)
}
