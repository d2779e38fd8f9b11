package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/indexfund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/ledger"
)

// MockMessageSender is a mock implementation of domain.MessageSender
type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(ctx context.Context, dest domain.Location, instruction domain.RemoteInstruction) error {
	args := m.Called(ctx, dest, instruction)
	return args.Error(0)
}

type staticLocator map[domain.AssetID]string

func (l staticLocator) Location(_ context.Context, asset domain.AssetID) (domain.Location, error) {
	s, ok := l[asset]
	if !ok {
		return domain.Location{}, fmt.Errorf("%s: %w", asset, domain.ErrBadLocation)
	}
	return domain.ParseLocation(s)
}

type fixture struct {
	svc    *RemoteService
	ledger *ledger.LedgerService
	sender *MockMessageSender
}

func newFixture(t *testing.T) *fixture {
	store := memory.NewStore()
	l := ledger.NewLedgerService(memory.NewLedgerRepository(store), store)
	sender := new(MockMessageSender)
	self, err := domain.ParseLocation("../parachain(2000)")
	require.NoError(t, err)

	locator := staticLocator{
		"DOT":   "..",
		"KSM":   "../parachain(1000)/index(1984)",
		"LOCAL": ".",
		"SELF":  "../parachain(2000)/index(1)",
		"ODD":   "index(7)",
		"PLAIN": "../parachain(3000)/index(5)",
	}
	svc := NewRemoteService(
		memory.NewStakingRepository(store),
		memory.NewTransferRepository(store),
		locator,
		l,
		NewCompactBalanceEncoder([]domain.AssetID{"DOT", "KSM", "LOCAL", "SELF", "ODD"}),
		sender,
		store,
		self,
		"treasury",
		"controller",
	)

	ctx := context.Background()
	require.NoError(t, svc.SetStakingConfig(ctx, domain.Root("root"), domain.StakingConfig{
		Asset:              "DOT",
		PalletIndex:        7,
		MaxUnlockingChunks: 2,
		MinimumBalance:     10,
		MinimumStash:       5,
	}))
	require.NoError(t, l.Deposit(ctx, "DOT", "treasury", 1000))

	return &fixture{svc: svc, ledger: l, sender: sender}
}

func TestRemoteService_ResolveFailures(t *testing.T) {
	tests := []struct {
		asset   domain.AssetID
		wantErr error
	}{
		{"MISSING", domain.ErrBadLocation},
		{"LOCAL", domain.ErrNoCrossChainTransfer},
		{"SELF", domain.ErrNoCrossChainTransfer},
		{"ODD", domain.ErrInvalidDestination},
		{"PLAIN", domain.ErrNotCrossChainTransferableAsset},
	}

	for _, tt := range tests {
		t.Run(string(tt.asset), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			assert.ErrorIs(t, f.svc.Bond(ctx, tt.asset, 1), tt.wantErr)
			assert.ErrorIs(t, f.svc.Unbond(ctx, tt.asset, 1), tt.wantErr)
			assert.ErrorIs(t, f.svc.WithdrawUnbonded(ctx, "alice", tt.asset, 1), tt.wantErr)
			_, err := f.svc.ReserveWithdrawAndDeposit(ctx, "alice", tt.asset, 1)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrCrossChain)

			f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRemoteService_BondThenBondExtra(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.sender.On("Send", mock.Anything, domain.RelayChain, mock.MatchedBy(func(i domain.RemoteInstruction) bool {
		return i.Kind == domain.InstructionBond && i.CallIndex == 0 && i.PalletIndex == 7 &&
			i.Amount == 100 && string(i.EncodedAmount) == string(EncodeCompact(100))
	})).Return(nil).Once()
	f.sender.On("Send", mock.Anything, domain.RelayChain, mock.MatchedBy(func(i domain.RemoteInstruction) bool {
		return i.Kind == domain.InstructionBondExtra && i.CallIndex == 1
	})).Return(nil).Once()

	require.NoError(t, f.svc.Bond(ctx, "DOT", 100))
	require.NoError(t, f.svc.Bond(ctx, "DOT", 50))

	l, err := f.svc.StakingLedger(ctx, "DOT")
	require.NoError(t, err)
	assert.Equal(t, domain.Balance(150), l.Active)
	assert.Equal(t, domain.AccountID("controller"), l.Controller)
	f.sender.AssertExpectations(t)
}

func TestRemoteService_BondChecksStash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Bond(ctx, "DOT", 996), domain.ErrInsufficientStash)
	assert.ErrorIs(t, f.svc.Bond(ctx, "DOT", 995), domain.ErrInsufficientStash, "stash must stay above the minimum")
	assert.ErrorIs(t, f.svc.Bond(ctx, "DOT", 2000), domain.ErrInsufficientStash)
	assert.ErrorIs(t, f.svc.Bond(ctx, "KSM", 1), domain.ErrNotCrossChainTransferableAsset, "no staking config")
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoteService_BondsShareOneStash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.svc.Bond(ctx, "DOT", 900))
	assert.ErrorIs(t, f.svc.Bond(ctx, "DOT", 900), domain.ErrInsufficientStash, "bonded funds are not stash")
	assert.ErrorIs(t, f.svc.Bond(ctx, "DOT", 95), domain.ErrInsufficientStash)
	require.NoError(t, f.svc.Bond(ctx, "DOT", 94))

	l, err := f.svc.StakingLedger(ctx, "DOT")
	require.NoError(t, err)
	assert.Equal(t, domain.Balance(994), l.Active)
	avail, _ := f.ledger.AvailableBalance(ctx, "DOT", "treasury")
	assert.Equal(t, domain.Balance(1000), avail)
}

func TestRemoteService_StashAfterUnbondAndWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.svc.Bond(ctx, "DOT", 900))
	require.NoError(t, f.svc.Unbond(ctx, "DOT", 50))
	assert.ErrorIs(t, f.svc.Bond(ctx, "DOT", 95), domain.ErrInsufficientStash, "unbonding funds are still committed")

	require.NoError(t, f.svc.WithdrawUnbonded(ctx, "alice", "DOT", 50))
	require.NoError(t, f.svc.Bond(ctx, "DOT", 140), "withdrawn funds count as stash again")
	assert.ErrorIs(t, f.svc.Bond(ctx, "DOT", 5), domain.ErrInsufficientStash)

	l, _ := f.svc.StakingLedger(ctx, "DOT")
	assert.Equal(t, domain.Balance(990), l.Active)
	assert.Equal(t, domain.Balance(0), l.Unbonded)
}

func TestRemoteService_UnbondRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	assert.ErrorIs(t, f.svc.Unbond(ctx, "DOT", 1), domain.ErrNotBonded)

	require.NoError(t, f.svc.Bond(ctx, "DOT", 100))
	assert.ErrorIs(t, f.svc.Unbond(ctx, "DOT", 91), domain.ErrInsufficientBond, "must keep the minimum bond")
	assert.ErrorIs(t, f.svc.Unbond(ctx, "DOT", 90), domain.ErrInsufficientBond, "remaining bond must exceed the minimum")

	require.NoError(t, f.svc.Unbond(ctx, "DOT", 30))
	require.NoError(t, f.svc.Unbond(ctx, "DOT", 30))
	assert.ErrorIs(t, f.svc.Unbond(ctx, "DOT", 1), domain.ErrNoMoreUnbondingChunks)

	l, _ := f.svc.StakingLedger(ctx, "DOT")
	assert.Equal(t, domain.Balance(40), l.Active)
	assert.Equal(t, domain.Balance(60), l.Unbonded)

	assert.ErrorIs(t, f.svc.WithdrawUnbonded(ctx, "alice", "DOT", 61), domain.ErrNothingToWithdraw)
	require.NoError(t, f.svc.WithdrawUnbonded(ctx, "alice", "DOT", 60))

	l, _ = f.svc.StakingLedger(ctx, "DOT")
	assert.Equal(t, domain.Balance(0), l.Unbonded)
	assert.Equal(t, uint32(0), l.UnlockedChunks, "withdrawing everything frees the chunks")
	require.NoError(t, f.svc.Unbond(ctx, "DOT", 5))

	assert.ErrorIs(t, f.svc.Unbond(ctx, "DOT", 25), domain.ErrInsufficientBond, "unbonding down to exactly the minimum is refused")
	require.NoError(t, f.svc.Unbond(ctx, "DOT", 24))
	l, _ = f.svc.StakingLedger(ctx, "DOT")
	assert.Equal(t, domain.Balance(11), l.Active)

	f.sender.AssertCalled(t, "Send", mock.Anything, domain.RelayChain, mock.MatchedBy(func(i domain.RemoteInstruction) bool {
		return i.Kind == domain.InstructionWithdrawUnbonded && i.CallIndex == 3 &&
			i.Beneficiary.String() == "../account(alice)"
	}))
}

func TestRemoteService_SendFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("queue down"))

	err := f.svc.Bond(ctx, "DOT", 100)
	assert.ErrorIs(t, err, domain.ErrSendFailed)

	l, err := f.svc.StakingLedger(ctx, "DOT")
	require.NoError(t, err)
	assert.Nil(t, l)

	_, err = f.svc.ReserveWithdrawAndDeposit(ctx, "treasury", "DOT", 10)
	assert.ErrorIs(t, err, domain.ErrSendFailed)
	reserved, _ := f.ledger.ReservedBalance(ctx, "DOT", "treasury")
	assert.Equal(t, domain.Balance(0), reserved)
}

func TestRemoteService_TransferOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.ledger.Deposit(ctx, "DOT", "alice", 100))

	_, err := f.svc.ReserveWithdrawAndDeposit(ctx, "alice", "DOT", 101)
	assert.ErrorIs(t, err, domain.ErrNotEnoughBalance)

	okID, err := f.svc.ReserveWithdrawAndDeposit(ctx, "alice", "DOT", 60)
	require.NoError(t, err)
	failID, err := f.svc.ReserveWithdrawAndDeposit(ctx, "alice", "DOT", 40)
	require.NoError(t, err)

	avail, _ := f.ledger.AvailableBalance(ctx, "DOT", "alice")
	assert.Equal(t, domain.Balance(0), avail)

	require.NoError(t, f.svc.OnTransferOutcome(ctx, okID, true))
	require.NoError(t, f.svc.OnTransferOutcome(ctx, okID, true), "repeated outcome is ignored")
	require.NoError(t, f.svc.OnTransferOutcome(ctx, failID, false))
	require.NoError(t, f.svc.OnTransferOutcome(ctx, failID, true), "late contradicting outcome is ignored")

	total, _ := f.ledger.TotalBalance(ctx, "DOT", "alice")
	assert.Equal(t, domain.Balance(40), total)
	agg, _ := f.ledger.AggregatedBalance(ctx, "DOT")
	assert.Equal(t, domain.Balance(1040), agg)

	tr, err := f.svc.Transfer(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCompleted, tr.Status)

	assert.ErrorIs(t, f.svc.OnTransferOutcome(ctx, [16]byte{1}, true), domain.ErrTransferNotFound)
}

func TestRemoteService_WithdrawUnbondedFromRecordedLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.svc.SetStakingConfig(ctx, domain.Root("root"), domain.StakingConfig{
		Asset:              "KSM",
		PalletIndex:        6,
		MaxUnlockingChunks: 4,
	}))
	require.NoError(t, f.ledger.Deposit(ctx, "KSM", "treasury", 500))
	require.NoError(t, f.svc.Bond(ctx, "KSM", 100))
	require.NoError(t, f.svc.Unbond(ctx, "KSM", 10))

	home, err := domain.ParseLocation("../parachain(1000)/index(1984)")
	require.NoError(t, err)
	f.svc.Locator = staticLocator{}

	assert.ErrorIs(t, f.svc.WithdrawUnbonded(ctx, "alice", "KSM", 10), domain.ErrBadLocation)
	require.NoError(t, f.svc.WithdrawUnbondedFrom(ctx, "alice", "KSM", home, 10))
	assert.ErrorIs(t, f.svc.WithdrawUnbondedFrom(ctx, "alice", "KSM", domain.Here, 1), domain.ErrNoCrossChainTransfer)

	l, _ := f.svc.StakingLedger(ctx, "KSM")
	assert.Equal(t, domain.Balance(0), l.Unbonded)
	f.sender.AssertCalled(t, "Send", mock.Anything, mock.MatchedBy(func(dest domain.Location) bool {
		return dest.String() == "../parachain(1000)"
	}), mock.MatchedBy(func(i domain.RemoteInstruction) bool {
		return i.Kind == domain.InstructionWithdrawUnbonded && i.Beneficiary.String() == "../parachain(1000)/account(alice)"
	}))
}
