package redemption

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/indexfund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/index"
	"github.com/simaogato/indexfund-backend/internal/usecase/ledger"
	"github.com/simaogato/indexfund-backend/internal/usecase/pricefeed"
)

const treasury domain.AccountID = "treasury"

var ksmLocation = domain.Location{
	Parents:  1,
	Interior: []domain.Junction{{Kind: domain.JunctionParachain, Value: "1000"}, {Kind: domain.JunctionIndex, Value: "1984"}},
}

// MockRemoteAssetManager is a mock implementation of domain.RemoteAssetManager
type MockRemoteAssetManager struct {
	mock.Mock
}

func (m *MockRemoteAssetManager) Bond(ctx context.Context, asset domain.AssetID, amount domain.Balance) error {
	args := m.Called(ctx, asset, amount)
	return args.Error(0)
}

func (m *MockRemoteAssetManager) Unbond(ctx context.Context, asset domain.AssetID, amount domain.Balance) error {
	args := m.Called(ctx, asset, amount)
	return args.Error(0)
}

func (m *MockRemoteAssetManager) WithdrawUnbonded(ctx context.Context, caller domain.AccountID, asset domain.AssetID, amount domain.Balance) error {
	args := m.Called(ctx, caller, asset, amount)
	return args.Error(0)
}

func (m *MockRemoteAssetManager) WithdrawUnbondedFrom(ctx context.Context, caller domain.AccountID, asset domain.AssetID, location domain.Location, amount domain.Balance) error {
	args := m.Called(ctx, caller, asset, location, amount)
	return args.Error(0)
}

func (m *MockRemoteAssetManager) ReserveWithdrawAndDeposit(ctx context.Context, who domain.AccountID, asset domain.AssetID, amount domain.Balance) (uuid.UUID, error) {
	args := m.Called(ctx, who, asset, amount)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type fixedClock uint64

func (c fixedClock) BlockNumber() uint64 { return uint64(c) }

type fixture struct {
	svc    *RedemptionService
	index  *index.IndexService
	prices *pricefeed.PriceFeedService
	ledger *ledger.LedgerService
	remote *MockRemoteAssetManager
}

// newFixture builds a basket of 100 local DOT @ 10 and 10 remote KSM @ 100.
// alice holds all 2000 index units at NAV 1.
func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	store := memory.NewStore()
	l := ledger.NewLedgerService(memory.NewLedgerRepository(store), store)
	p := pricefeed.NewPriceFeedService(memory.NewPriceRepository(store), store, nil)
	idx := index.NewIndexService(memory.NewHoldingRepository(store), memory.NewIssuanceRepository(store), l, p, store, treasury)
	remote := new(MockRemoteAssetManager)

	root := domain.Root("root")
	for asset, price := range map[domain.AssetID]int64{"DOT": 10, "KSM": 100} {
		require.NoError(t, p.Track(ctx, root, asset))
		_, err := p.Report(ctx, root, asset, domain.TimestampedValue{Value: decimal.NewFromInt(price), Moment: 1})
		require.NoError(t, err)
	}

	alice := domain.Root("alice")
	_, err := idx.AddAsset(ctx, alice, index.AddAssetInput{Asset: "DOT", Units: 100, Availability: domain.AvailabilityLiquid, Location: domain.Here})
	require.NoError(t, err)
	_, err = idx.AddAsset(ctx, alice, index.AddAssetInput{Asset: "KSM", Units: 10, Availability: domain.AvailabilityLiquid, Location: ksmLocation})
	require.NoError(t, err)

	svc := NewRedemptionService(memory.NewRedemptionRepository(store), idx, p, l, remote, fixedClock(42), store, treasury, 2)
	return &fixture{svc: svc, index: idx, prices: p, ledger: l, remote: remote}
}

func TestRedemptionService_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Unbond", mock.Anything, domain.AssetID("KSM"), domain.Balance(2)).Return(nil).Once()

	r, err := f.svc.InitiateRedemption(ctx, domain.Signed("alice"), 500)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, uint64(42), r.Initiated)
	assert.Equal(t, []domain.AssetWithdrawal{
		{Asset: "DOT", Units: 25, State: domain.RedemptionTransferred, Local: true},
		{Asset: "KSM", Units: 2, State: domain.RedemptionInitiated, Location: ksmLocation},
	}, r.Assets)

	tokens, _ := f.index.IndexTokenBalance(ctx, "alice")
	assert.Equal(t, domain.Balance(1500), tokens)
	dot, _ := f.ledger.AvailableBalance(ctx, "DOT", "alice")
	assert.Equal(t, domain.Balance(25), dot, "local asset is paid immediately")
	reserved, _ := f.ledger.ReservedBalance(ctx, "KSM", treasury)
	assert.Equal(t, domain.Balance(2), reserved)

	ref := domain.WithdrawalRef{RedemptionID: r.ID, Asset: "KSM"}
	assert.ErrorIs(t, f.svc.OnUnbondedAvailable(ctx, ref), domain.ErrUnbondNotConfirmed)
	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionInitiated, got.Assets[1].State, "early availability must not change state")

	require.NoError(t, f.svc.OnUnbondConfirmed(ctx, ref))
	require.NoError(t, f.svc.OnUnbondConfirmed(ctx, ref), "confirmation is idempotent")
	got, _ = f.svc.Get(ctx, r.ID)
	assert.Equal(t, domain.RedemptionUnbonding, got.Assets[1].State)

	f.remote.On("WithdrawUnbondedFrom", mock.Anything, domain.AccountID("alice"), domain.AssetID("KSM"), ksmLocation, domain.Balance(2)).Return(nil).Once()
	require.NoError(t, f.svc.OnUnbondedAvailable(ctx, ref))

	ksm, _ := f.ledger.AvailableBalance(ctx, "KSM", "alice")
	assert.Equal(t, domain.Balance(2), ksm)
	_, err = f.svc.Get(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrRedemptionNotFound, "completed redemption is removed")
	assert.ErrorIs(t, f.svc.OnUnbondedAvailable(ctx, ref), domain.ErrRedemptionNotFound)

	f.remote.AssertExpectations(t)
}

func TestRedemptionService_InitiateFailuresLeaveStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		origin  domain.Origin
		units   domain.Balance
		setup   func(t *testing.T, f *fixture)
		wantErr error
	}{
		{
			name:    "insufficient index tokens",
			origin:  domain.Signed("bob"),
			units:   10,
			wantErr: domain.ErrInsufficientIndexTokens,
		},
		{
			name:    "below minimum",
			origin:  domain.Signed("alice"),
			units:   1,
			wantErr: domain.ErrBelowMinimumRedemption,
		},
		{
			name:   "price unavailable",
			origin: domain.Signed("alice"),
			units:  500,
			setup: func(t *testing.T, f *fixture) {
				require.NoError(t, f.prices.Untrack(context.Background(), domain.Root("root"), "KSM"))
			},
			wantErr: domain.ErrPriceUnavailable,
		},
		{
			name:   "unbond rejected",
			origin: domain.Signed("alice"),
			units:  500,
			setup: func(t *testing.T, f *fixture) {
				f.remote.On("Unbond", mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrNotBonded)
			},
			wantErr: domain.ErrNotBonded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}

			_, err := f.svc.InitiateRedemption(ctx, tt.origin, tt.units)
			assert.ErrorIs(t, err, tt.wantErr)

			tokens, _ := f.index.IndexTokenBalance(ctx, "alice")
			assert.Equal(t, domain.Balance(2000), tokens)
			issuance, _ := f.index.IndexTokenIssuance(ctx)
			assert.Equal(t, domain.Balance(2000), issuance)
			dot, _ := f.ledger.TotalBalance(ctx, "DOT", "alice")
			assert.Equal(t, domain.Balance(0), dot)
			reserved, _ := f.ledger.ReservedBalance(ctx, "DOT", treasury)
			assert.Equal(t, domain.Balance(0), reserved)
			h, _ := f.index.Holding(ctx, "DOT")
			assert.Equal(t, domain.Balance(100), h.Units)

			pending, err := f.svc.ListPending(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, pending)
		})
	}
}

func TestRedemptionService_LocalOnlyRedemptionCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.index.RemoveAsset(ctx, domain.Root("root"), "KSM"))

	// NAV is now 1000 / 2000 = 0.5, so 400 units are worth 200 = 20 DOT
	r, err := f.svc.InitiateRedemption(ctx, domain.Signed("alice"), 400)
	require.NoError(t, err)
	assert.True(t, r.Completed())
	assert.True(t, r.NAV.Equal(decimal.RequireFromString("0.5")))

	dot, _ := f.ledger.AvailableBalance(ctx, "DOT", "alice")
	assert.Equal(t, domain.Balance(20), dot)

	_, err = f.svc.Get(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrRedemptionNotFound)
	f.remote.AssertNotCalled(t, "Unbond", mock.Anything, mock.Anything, mock.Anything)
}

func TestRedemptionService_ConfirmationErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Unbond", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	r, err := f.svc.InitiateRedemption(ctx, domain.Signed("alice"), 500)
	require.NoError(t, err)

	unknown := domain.WithdrawalRef{RedemptionID: uuid.New(), Asset: "KSM"}
	assert.ErrorIs(t, f.svc.OnUnbondConfirmed(ctx, unknown), domain.ErrRedemptionNotFound)

	wrongAsset := domain.WithdrawalRef{RedemptionID: r.ID, Asset: "ACA"}
	assert.ErrorIs(t, f.svc.OnUnbondConfirmed(ctx, wrongAsset), domain.ErrWithdrawalNotFound)

	// DOT already settled locally; late confirmations are no-ops
	dotRef := domain.WithdrawalRef{RedemptionID: r.ID, Asset: "DOT"}
	require.NoError(t, f.svc.OnUnbondConfirmed(ctx, dotRef))
	require.NoError(t, f.svc.OnUnbondedAvailable(ctx, dotRef))

	pending, err := f.svc.ListPending(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.RedemptionTransferred, pending[0].Assets[0].State)
	assert.Equal(t, domain.RedemptionInitiated, pending[0].Assets[1].State)
}

func TestRedemptionService_WithdrawFailureKeepsUnbonding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Unbond", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.remote.On("WithdrawUnbondedFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(domain.ErrSendFailed)

	r, err := f.svc.InitiateRedemption(ctx, domain.Signed("alice"), 500)
	require.NoError(t, err)
	ref := domain.WithdrawalRef{RedemptionID: r.ID, Asset: "KSM"}
	require.NoError(t, f.svc.OnUnbondConfirmed(ctx, ref))

	assert.ErrorIs(t, f.svc.OnUnbondedAvailable(ctx, ref), domain.ErrSendFailed)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RedemptionUnbonding, got.Assets[1].State)
	reserved, _ := f.ledger.ReservedBalance(ctx, "KSM", treasury)
	assert.Equal(t, domain.Balance(2), reserved)
}

func TestRedemptionService_SettlesAfterAssetLeavesBasket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.On("Unbond", mock.Anything, domain.AssetID("KSM"), domain.Balance(2)).Return(nil).Once()
	f.remote.On("WithdrawUnbondedFrom", mock.Anything, domain.AccountID("alice"), domain.AssetID("KSM"), ksmLocation, domain.Balance(2)).Return(nil).Once()

	r, err := f.svc.InitiateRedemption(ctx, domain.Signed("alice"), 500)
	require.NoError(t, err)
	ref := domain.WithdrawalRef{RedemptionID: r.ID, Asset: "KSM"}
	require.NoError(t, f.svc.OnUnbondConfirmed(ctx, ref))

	require.NoError(t, f.index.RemoveAsset(ctx, domain.Root("root"), "KSM"))
	_, err = f.index.Location(ctx, "KSM")
	require.ErrorIs(t, err, domain.ErrBadLocation)

	require.NoError(t, f.svc.OnUnbondedAvailable(ctx, ref))

	ksm, _ := f.ledger.AvailableBalance(ctx, "KSM", "alice")
	assert.Equal(t, domain.Balance(2), ksm)
	reserved, _ := f.ledger.ReservedBalance(ctx, "KSM", treasury)
	assert.Equal(t, domain.Balance(0), reserved, "treasury reserve is released")
	_, err = f.svc.Get(ctx, r.ID)
	assert.ErrorIs(t, err, domain.ErrRedemptionNotFound)
	f.remote.AssertExpectations(t)
}
