package saft

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/indexfund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/index"
	"github.com/simaogato/indexfund-backend/internal/usecase/ledger"
	"github.com/simaogato/indexfund-backend/internal/usecase/pricefeed"
)

var root = domain.Root("root")

func newTestSaft() (*SaftService, *index.IndexService, *pricefeed.PriceFeedService) {
	store := memory.NewStore()
	l := ledger.NewLedgerService(memory.NewLedgerRepository(store), store)
	p := pricefeed.NewPriceFeedService(memory.NewPriceRepository(store), store, nil)
	idx := index.NewIndexService(memory.NewHoldingRepository(store), memory.NewIssuanceRepository(store), l, p, store, "treasury")
	return NewSaftService(memory.NewSaftRepository(store), idx, store), idx, p
}

func TestSaftService_AddAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, idx, _ := newTestSaft()

	rec, err := svc.AddSaft(ctx, root, "ACA", 100, 0)
	require.NoError(t, err)
	assert.Nil(t, rec, "zero units is a no-op")

	first, err := svc.AddSaft(ctx, root, "ACA", 100, 10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), first.ID)

	second, err := svc.AddSaft(ctx, root, "ACA", 300, 20)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), second.ID)

	h, err := idx.Holding(ctx, "ACA")
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityIlliquidCommitment, h.Availability)
	assert.Equal(t, domain.Balance(30), h.Units)
	assert.Equal(t, domain.Balance(400), h.ReportedValue)

	require.NoError(t, svc.RemoveSaft(ctx, root, "ACA", first.ID))
	assert.ErrorIs(t, svc.RemoveSaft(ctx, root, "ACA", first.ID), domain.ErrSaftNotFound)

	h, _ = idx.Holding(ctx, "ACA")
	assert.Equal(t, domain.Balance(20), h.Units)
	assert.Equal(t, domain.Balance(300), h.ReportedValue)

	third, err := svc.AddSaft(ctx, root, "ACA", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), third.ID, "ids are never reused")
}

func TestSaftService_ReportNAV(t *testing.T) {
	ctx := context.Background()
	svc, idx, _ := newTestSaft()

	rec, err := svc.AddSaft(ctx, root, "ACA", 100, 10)
	require.NoError(t, err)
	_, err = svc.AddSaft(ctx, root, "ACA", 50, 5)
	require.NoError(t, err)

	require.NoError(t, svc.ReportNAV(ctx, root, "ACA", rec.ID, 250))
	h, _ := idx.Holding(ctx, "ACA")
	assert.Equal(t, domain.Balance(300), h.ReportedValue)

	nav, err := idx.NAV(ctx)
	require.NoError(t, err)
	assert.True(t, nav.Equal(decimal.NewFromInt(2)), "nav %s", nav)

	assert.ErrorIs(t, svc.ReportNAV(ctx, root, "ACA", 99, 1), domain.ErrSaftNotFound)
	assert.ErrorIs(t, svc.ReportNAV(ctx, domain.Signed("bob"), "ACA", rec.ID, 1), domain.ErrBadOrigin)
}

func TestSaftService_ConvertToLiquid(t *testing.T) {
	ctx := context.Background()
	svc, idx, _ := newTestSaft()

	_, err := svc.AddSaft(ctx, root, "ACA", 100, 10)
	require.NoError(t, err)

	loc, err := domain.ParseLocation("../parachain(2000)/index(0)")
	require.NoError(t, err)
	require.NoError(t, svc.ConvertToLiquid(ctx, root, "ACA", loc))

	h, _ := idx.Holding(ctx, "ACA")
	assert.True(t, h.IsLiquid())
	assert.Equal(t, loc.String(), h.Location.String())

	records, err := svc.Safts(ctx, "ACA")
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.ErrorIs(t, svc.ConvertToLiquid(ctx, root, "ACA", loc), domain.ErrExpectedSaft)
	assert.ErrorIs(t, svc.ConvertToLiquid(ctx, root, "KSM", loc), domain.ErrAssetNotFound)
}

func TestSaftService_RejectsLiquidHolding(t *testing.T) {
	ctx := context.Background()
	svc, idx, prices := newTestSaft()

	require.NoError(t, prices.Track(ctx, root, "DOT"))
	_, err := prices.Report(ctx, root, "DOT", domain.TimestampedValue{Value: decimal.NewFromInt(1), Moment: 1})
	require.NoError(t, err)
	_, err = idx.AddAsset(ctx, root, index.AddAssetInput{Asset: "DOT", Units: 1, Availability: domain.AvailabilityLiquid})
	require.NoError(t, err)

	_, err = svc.AddSaft(ctx, root, "DOT", 1, 1)
	assert.ErrorIs(t, err, domain.ErrExpectedSaft)
}
