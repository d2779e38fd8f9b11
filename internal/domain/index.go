package domain

import (
	"github.com/shopspring/decimal"
)

// AssetAvailability classifies how a basket asset is valued
type AssetAvailability string

const (
	// AvailabilityLiquid assets are valued from the live price feed
	AvailabilityLiquid AssetAvailability = "LIQUID"
	// AvailabilityIlliquidCommitment assets (SAFTs) are valued by manual attestation
	AvailabilityIlliquidCommitment AssetAvailability = "ILLIQUID_COMMITMENT"
)

// Valid reports whether the availability is one of the known kinds
func (a AssetAvailability) Valid() bool {
	return a == AvailabilityLiquid || a == AvailabilityIlliquidCommitment
}

// IndexAssetData is one basket entry
type IndexAssetData struct {
	Asset         AssetID
	Units         Balance
	Availability  AssetAvailability
	Location      Location
	ReportedValue Balance // Last attested value in base currency; used for illiquid assets
}

// IsLiquid reports whether the holding is priced by the oracle
func (d IndexAssetData) IsLiquid() bool {
	return d.Availability == AvailabilityLiquid
}

// HoldingValuation is the value of one basket entry at the time of a NAV computation
type HoldingValuation struct {
	Holding IndexAssetData
	Price   decimal.Decimal // Zero for illiquid holdings
	Value   decimal.Decimal
}

// SaftRecord is one Simple Agreement for Future Tokens backing an illiquid
// basket entry.
type SaftRecord struct {
	ID    uint32
	Asset AssetID
	NAV   Balance
	Units Balance
}
