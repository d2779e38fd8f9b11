// Package memory holds every fund record in process memory. It backs tests and
// single-node deployments that do not need durability.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

type accountKey struct {
	asset   domain.AssetID
	account domain.AccountID
}

type saftKey struct {
	asset domain.AssetID
	id    uint32
}

type state struct {
	accounts   map[accountKey]domain.AccountBalance
	aggregates map[domain.AssetID]domain.Balance

	tracked map[domain.AssetID]bool
	prices  map[domain.AssetID]domain.TimestampedValue

	holdings map[domain.AssetID]domain.IndexAssetData
	tokens   map[domain.AccountID]domain.Balance
	issuance domain.Balance

	safts     map[saftKey]domain.SaftRecord
	saftNonce map[domain.AssetID]uint32

	stakingConfigs map[domain.AssetID]domain.StakingConfig
	stakingLedgers map[domain.AssetID]domain.StakingLedger
	transfers      map[uuid.UUID]domain.PendingTransfer

	redemptions map[uuid.UUID]*domain.PendingRedemption

	members   map[domain.AccountID]domain.CommitteeMember
	nonce     uint64
	proposals map[domain.ProposalHash]domain.Proposal
	votes     map[domain.ProposalHash]*domain.VoteTally
}

func newState() *state {
	return &state{
		accounts:       make(map[accountKey]domain.AccountBalance),
		aggregates:     make(map[domain.AssetID]domain.Balance),
		tracked:        make(map[domain.AssetID]bool),
		prices:         make(map[domain.AssetID]domain.TimestampedValue),
		holdings:       make(map[domain.AssetID]domain.IndexAssetData),
		tokens:         make(map[domain.AccountID]domain.Balance),
		safts:          make(map[saftKey]domain.SaftRecord),
		saftNonce:      make(map[domain.AssetID]uint32),
		stakingConfigs: make(map[domain.AssetID]domain.StakingConfig),
		stakingLedgers: make(map[domain.AssetID]domain.StakingLedger),
		transfers:      make(map[uuid.UUID]domain.PendingTransfer),
		redemptions:    make(map[uuid.UUID]*domain.PendingRedemption),
		members:        make(map[domain.AccountID]domain.CommitteeMember),
		proposals:      make(map[domain.ProposalHash]domain.Proposal),
		votes:          make(map[domain.ProposalHash]*domain.VoteTally),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.aggregates {
		c.aggregates[k] = v
	}
	for k, v := range s.tracked {
		c.tracked[k] = v
	}
	for k, v := range s.prices {
		c.prices[k] = v
	}
	for k, v := range s.holdings {
		c.holdings[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	c.issuance = s.issuance
	for k, v := range s.safts {
		c.safts[k] = v
	}
	for k, v := range s.saftNonce {
		c.saftNonce[k] = v
	}
	for k, v := range s.stakingConfigs {
		c.stakingConfigs[k] = v
	}
	for k, v := range s.stakingLedgers {
		c.stakingLedgers[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.redemptions {
		c.redemptions[k] = v.Clone()
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	c.nonce = s.nonce
	for k, v := range s.proposals {
		c.proposals[k] = v
	}
	for k, v := range s.votes {
		c.votes[k] = v.Clone()
	}
	return c
}

// Store is an in-memory implementation of every repository and of
// domain.TxManager
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{st: newState()}
}

// WithinTx snapshots the store, runs fn and restores the snapshot if fn
// fails. Nested calls take their own snapshot, so a failing inner unit of
// work is undone without aborting the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) locked(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

var _ domain.TxManager = (*Store)(nil)
