package dashboard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// Valuator is the part of the index registry the overview reads
type Valuator interface {
	Valuations(ctx context.Context) ([]domain.HoldingValuation, decimal.Decimal, error)
	IndexTokenIssuance(ctx context.Context) (domain.Balance, error)
}

// RedemptionLister lists in-flight redemptions
type RedemptionLister interface {
	ListPending(ctx context.Context, account domain.AccountID) ([]*domain.PendingRedemption, error)
}

// HoldingOverview is one basket entry as shown to clients
type HoldingOverview struct {
	Asset         domain.AssetID
	Units         domain.Balance
	Availability  domain.AssetAvailability
	Location      domain.Location
	Price         decimal.Decimal
	Value         decimal.Decimal
	LedgerBalance domain.Balance // Aggregate ledger balance of the asset across all accounts
}

// OverviewResult represents the calculated fund overview
type OverviewResult struct {
	NAV                decimal.Decimal // Zero while no index units are issued
	Issuance           domain.Balance
	Total              decimal.Decimal
	Liquid             decimal.Decimal
	Illiquid           decimal.Decimal
	Holdings           []HoldingOverview
	PendingRedemptions int
}

// DashboardService handles fund overview operations
type DashboardService struct {
	Index       Valuator
	Ledger      domain.MultiAssetDepository
	Redemptions RedemptionLister
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(
	index Valuator,
	ledger domain.MultiAssetDepository,
	redemptions RedemptionLister,
) *DashboardService {
	return &DashboardService{
		Index:       index,
		Ledger:      ledger,
		Redemptions: redemptions,
	}
}

// GetOverview calculates the fund overview
// Logic:
//   - Liquid: sum of units x price over LIQUID holdings
//   - Illiquid: sum of reported values over ILLIQUID_COMMITMENT holdings
//   - Total: Liquid + Illiquid; NAV: Total / issuance
func (s *DashboardService) GetOverview(ctx context.Context) (*OverviewResult, error) {
	// 1. Value the basket
	valuations, total, err := s.Index.Valuations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to value holdings: %w", err)
	}

	result := &OverviewResult{
		Total:    total,
		Liquid:   decimal.Zero,
		Illiquid: decimal.Zero,
		NAV:      decimal.Zero,
		Holdings: make([]HoldingOverview, 0, len(valuations)),
	}

	// 2. Split by availability and attach ledger totals
	for _, v := range valuations {
		if v.Holding.IsLiquid() {
			result.Liquid = result.Liquid.Add(v.Value)
		} else {
			result.Illiquid = result.Illiquid.Add(v.Value)
		}

		aggregate, err := s.Ledger.AggregatedBalance(ctx, v.Holding.Asset)
		if err != nil {
			return nil, fmt.Errorf("failed to get aggregated balance of %s: %w", v.Holding.Asset, err)
		}
		result.Holdings = append(result.Holdings, HoldingOverview{
			Asset:         v.Holding.Asset,
			Units:         v.Holding.Units,
			Availability:  v.Holding.Availability,
			Location:      v.Holding.Location,
			Price:         v.Price,
			Value:         v.Value,
			LedgerBalance: aggregate,
		})
	}

	// 3. NAV
	issuance, err := s.Index.IndexTokenIssuance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get index token issuance: %w", err)
	}
	result.Issuance = issuance
	if !issuance.IsZero() {
		result.NAV = total.Div(issuance.Decimal())
	}

	pending, err := s.Redemptions.ListPending(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list pending redemptions: %w", err)
	}
	result.PendingRedemptions = len(pending)

	return result, nil
}
