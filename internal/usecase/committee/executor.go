package committee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/index"
)

// IndexAdmin is the part of the index registry proposals can drive
type IndexAdmin interface {
	AddAsset(ctx context.Context, origin domain.Origin, input index.AddAssetInput) (domain.Balance, error)
	RemoveAsset(ctx context.Context, origin domain.Origin, asset domain.AssetID) error
}

// PriceAdmin is the part of the price feed proposals can drive
type PriceAdmin interface {
	Track(ctx context.Context, origin domain.Origin, asset domain.AssetID) error
	Untrack(ctx context.Context, origin domain.Origin, asset domain.AssetID) error
}

// SaftAdmin is the part of the SAFT registry proposals can drive
type SaftAdmin interface {
	ReportNAV(ctx context.Context, origin domain.Origin, asset domain.AssetID, id uint32, nav domain.Balance) error
	ConvertToLiquid(ctx context.Context, origin domain.Origin, asset domain.AssetID, location domain.Location) error
}

// AddAssetPayload is the payload of ActionAddAsset
type AddAssetPayload struct {
	Asset         domain.AssetID           `json:"asset"`
	Units         domain.Balance           `json:"units"`
	Availability  domain.AssetAvailability `json:"availability"`
	Location      string                   `json:"location"`
	ReportedValue domain.Balance           `json:"reported_value"`
}

// AssetPayload is the payload of actions that name a single asset
type AssetPayload struct {
	Asset domain.AssetID `json:"asset"`
}

// ReportSaftNAVPayload is the payload of ActionReportSaftNAV
type ReportSaftNAVPayload struct {
	Asset  domain.AssetID `json:"asset"`
	SaftID uint32         `json:"saft_id"`
	NAV    domain.Balance `json:"nav"`
}

// ConvertSaftPayload is the payload of ActionConvertSaftToLiquid
type ConvertSaftPayload struct {
	Asset    domain.AssetID `json:"asset"`
	Location string         `json:"location"`
}

// StakingPayload is the payload of ActionBond and ActionUnbond
type StakingPayload struct {
	Asset  domain.AssetID `json:"asset"`
	Amount domain.Balance `json:"amount"`
}

// NewAction encodes a payload into an action of the given kind
func NewAction(kind domain.ActionKind, payload any) (domain.Action, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.Action{}, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return domain.Action{Kind: kind, Payload: raw}, nil
}

// Executor routes approved actions to the services that own the state
type Executor struct {
	Index  IndexAdmin
	Prices PriceAdmin
	Safts  SaftAdmin
	Remote domain.RemoteAssetManager
}

// NewExecutor creates a new Executor instance
func NewExecutor(index IndexAdmin, prices PriceAdmin, safts SaftAdmin, remote domain.RemoteAssetManager) *Executor {
	return &Executor{
		Index:  index,
		Prices: prices,
		Safts:  safts,
		Remote: remote,
	}
}

// Execute decodes the action payload and performs the call with the given origin
func (e *Executor) Execute(ctx context.Context, origin domain.Origin, action domain.Action) error {
	if err := origin.EnsureAdmin(); err != nil {
		return err
	}
	log.Debug().Str("action", string(action.Kind)).Str("origin", string(origin.Kind)).Msg("executing action")

	switch action.Kind {
	case domain.ActionAddAsset:
		var p AddAssetPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		location, err := domain.ParseLocation(p.Location)
		if err != nil {
			return err
		}
		_, err = e.Index.AddAsset(ctx, origin, index.AddAssetInput{
			Asset:         p.Asset,
			Units:         p.Units,
			Availability:  p.Availability,
			Location:      location,
			ReportedValue: p.ReportedValue,
		})
		return err

	case domain.ActionRemoveAsset:
		var p AssetPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		return e.Index.RemoveAsset(ctx, origin, p.Asset)

	case domain.ActionTrackAsset:
		var p AssetPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		return e.Prices.Track(ctx, origin, p.Asset)

	case domain.ActionUntrackAsset:
		var p AssetPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		return e.Prices.Untrack(ctx, origin, p.Asset)

	case domain.ActionReportSaftNAV:
		var p ReportSaftNAVPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		return e.Safts.ReportNAV(ctx, origin, p.Asset, p.SaftID, p.NAV)

	case domain.ActionConvertSaftToLiquid:
		var p ConvertSaftPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		location, err := domain.ParseLocation(p.Location)
		if err != nil {
			return err
		}
		return e.Safts.ConvertToLiquid(ctx, origin, p.Asset, location)

	case domain.ActionBond:
		var p StakingPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		return e.Remote.Bond(ctx, p.Asset, p.Amount)

	case domain.ActionUnbond:
		var p StakingPayload
		if err := decode(action, &p); err != nil {
			return err
		}
		return e.Remote.Unbond(ctx, p.Asset, p.Amount)
	}

	return fmt.Errorf("%s: %w", action.Kind, domain.ErrUnknownAction)
}

func decode(action domain.Action, v any) error {
	dec := json.NewDecoder(bytes.NewReader(action.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid %s payload: %v: %w", action.Kind, err, domain.ErrInvalidArgument)
	}
	return nil
}

var _ ActionExecutor = (*Executor)(nil)
