package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/indexfund-backend/internal/domain"
	"github.com/simaogato/indexfund-backend/internal/usecase/committee"
	"github.com/simaogato/indexfund-backend/internal/usecase/dashboard"
	"github.com/simaogato/indexfund-backend/internal/usecase/index"
	"github.com/simaogato/indexfund-backend/internal/usecase/ledger"
	"github.com/simaogato/indexfund-backend/internal/usecase/pricefeed"
	"github.com/simaogato/indexfund-backend/internal/usecase/redemption"
	"github.com/simaogato/indexfund-backend/internal/usecase/remote"
	"github.com/simaogato/indexfund-backend/internal/usecase/saft"
)

// Runner serializes entry points; satisfied by dispatch.Serializer
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Server implements the IndexFundService gRPC server
type Server struct {
	Runner Runner

	LedgerService     *ledger.LedgerService
	PriceFeedService  *pricefeed.PriceFeedService
	IndexService      *index.IndexService
	SaftService       *saft.SaftService
	RemoteService     *remote.RemoteService
	RedemptionService *redemption.RedemptionService
	CommitteeService  *committee.CommitteeService
	DashboardService  *dashboard.DashboardService
}

// NewServer creates a new gRPC server instance
func NewServer(
	runner Runner,
	ledgerService *ledger.LedgerService,
	priceFeedService *pricefeed.PriceFeedService,
	indexService *index.IndexService,
	saftService *saft.SaftService,
	remoteService *remote.RemoteService,
	redemptionService *redemption.RedemptionService,
	committeeService *committee.CommitteeService,
	dashboardService *dashboard.DashboardService,
) *Server {
	return &Server{
		Runner:            runner,
		LedgerService:     ledgerService,
		PriceFeedService:  priceFeedService,
		IndexService:      indexService,
		SaftService:       saftService,
		RemoteService:     remoteService,
		RedemptionService: redemptionService,
		CommitteeService:  committeeService,
		DashboardService:  dashboardService,
	}
}

// call runs fn as one serialized, transactional entry point on behalf of the
// authenticated caller
func (s *Server) call(ctx context.Context, fn func(ctx context.Context, origin domain.Origin) error) error {
	origin, ok := domain.OriginFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing caller")
	}
	err := s.Runner.Do(ctx, func(ctx context.Context) error {
		return fn(ctx, origin)
	})
	return mapError(err)
}

// GetBalance handles the GetBalance RPC
func (s *Server) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	asset, err := in.asset("asset")
	if err != nil {
		return nil, err
	}

	var total, reserved domain.Balance
	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		account := domain.AccountID(in.optional("account"))
		if account == "" {
			account = origin.Caller
		}
		if total, err = s.LedgerService.TotalBalance(ctx, asset, account); err != nil {
			return err
		}
		reserved, err = s.LedgerService.ReservedBalance(ctx, asset, account)
		return err
	})
	if err != nil {
		return nil, err
	}

	return reply(map[string]interface{}{
		"total":     total.String(),
		"available": total.SaturatingSub(reserved).String(),
		"reserved":  reserved.String(),
	})
}

// ReportPrice handles the ReportPrice RPC
func (s *Server) ReportPrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	asset, err := in.asset("asset")
	if err != nil {
		return nil, err
	}
	value, err := in.decimal("value")
	if err != nil {
		return nil, err
	}
	moment, err := in.balance("moment")
	if err != nil {
		return nil, err
	}

	var accepted bool
	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		accepted, err = s.PriceFeedService.Report(ctx, origin, asset, domain.TimestampedValue{Value: value, Moment: uint64(moment)})
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{"accepted": accepted})
}

// GetPrice handles the GetPrice RPC
func (s *Server) GetPrice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	asset, err := argsOf(req).asset("asset")
	if err != nil {
		return nil, err
	}

	var price domain.Price
	err = s.call(ctx, func(ctx context.Context, _ domain.Origin) error {
		price, err = s.PriceFeedService.GetPrice(ctx, asset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{"asset": string(asset), "price": price.String()})
}

// DepositUnits handles the DepositUnits RPC
func (s *Server) DepositUnits(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	asset, err := in.asset("asset")
	if err != nil {
		return nil, err
	}
	units, err := in.balance("units")
	if err != nil {
		return nil, err
	}
	value, err := in.optionalBalance("value")
	if err != nil {
		return nil, err
	}

	var minted domain.Balance
	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		minted, err = s.IndexService.AddUnits(ctx, origin, asset, units, value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{"minted": minted.String()})
}

// AddSaft handles the AddSaft RPC
func (s *Server) AddSaft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	asset, err := in.asset("asset")
	if err != nil {
		return nil, err
	}
	nav, err := in.balance("nav")
	if err != nil {
		return nil, err
	}
	units, err := in.balance("units")
	if err != nil {
		return nil, err
	}

	var record *domain.SaftRecord
	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		record, err = s.SaftService.AddSaft(ctx, origin, asset, nav, units)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(saftToMap(record))
}

// RemoveSaft handles the RemoveSaft RPC
func (s *Server) RemoveSaft(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	asset, err := in.asset("asset")
	if err != nil {
		return nil, err
	}
	id, err := in.uint32("id")
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		return s.SaftService.RemoveSaft(ctx, origin, asset, id)
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{})
}

// ListSafts handles the ListSafts RPC
func (s *Server) ListSafts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	asset, err := argsOf(req).asset("asset")
	if err != nil {
		return nil, err
	}

	var records []*domain.SaftRecord
	err = s.call(ctx, func(ctx context.Context, _ domain.Origin) error {
		records, err = s.SaftService.Safts(ctx, asset)
		return err
	})
	if err != nil {
		return nil, err
	}

	list := make([]interface{}, 0, len(records))
	for _, r := range records {
		list = append(list, saftToMap(r))
	}
	return reply(map[string]interface{}{"safts": list})
}

// InitiateRedemption handles the InitiateRedemption RPC
func (s *Server) InitiateRedemption(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	units, err := argsOf(req).balance("index_units")
	if err != nil {
		return nil, err
	}

	var r *domain.PendingRedemption
	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		r, err = s.RedemptionService.InitiateRedemption(ctx, origin, units)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(redemptionToMap(r))
}

// GetRedemption handles the GetRedemption RPC
func (s *Server) GetRedemption(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := argsOf(req).uuid("id")
	if err != nil {
		return nil, err
	}

	var r *domain.PendingRedemption
	err = s.call(ctx, func(ctx context.Context, _ domain.Origin) error {
		r, err = s.RedemptionService.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(redemptionToMap(r))
}

// ListRedemptions handles the ListRedemptions RPC. Signed callers only see
// their own redemptions; root may list any account or all of them.
func (s *Server) ListRedemptions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)

	var pending []*domain.PendingRedemption
	err := s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		account := domain.AccountID(in.optional("account"))
		if origin.EnsureRoot() != nil {
			account = origin.Caller
		}
		var err error
		pending, err = s.RedemptionService.ListPending(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}

	list := make([]interface{}, 0, len(pending))
	for _, r := range pending {
		list = append(list, redemptionToMap(r))
	}
	return reply(map[string]interface{}{"redemptions": list})
}

// TransferRemote handles the TransferRemote RPC
func (s *Server) TransferRemote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	asset, err := in.asset("asset")
	if err != nil {
		return nil, err
	}
	amount, err := in.balance("amount")
	if err != nil {
		return nil, err
	}

	var id uuid.UUID
	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		who, err := origin.EnsureSigned()
		if err != nil {
			return err
		}
		id, err = s.RemoteService.ReserveWithdrawAndDeposit(ctx, who, asset, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{"transfer_id": id.String()})
}

// GetTransfer handles the GetTransfer RPC
func (s *Server) GetTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := argsOf(req).uuid("transfer_id")
	if err != nil {
		return nil, err
	}

	var t *domain.PendingTransfer
	err = s.call(ctx, func(ctx context.Context, _ domain.Origin) error {
		t, err = s.RemoteService.Transfer(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{
		"transfer_id": t.ID.String(),
		"account":     string(t.Account),
		"asset":       string(t.Asset),
		"amount":      t.Amount.String(),
		"status":      string(t.Status),
	})
}

// SetStakingConfig handles the SetStakingConfig RPC
func (s *Server) SetStakingConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	asset, err := in.asset("asset")
	if err != nil {
		return nil, err
	}
	pallet, err := in.uint32("pallet_index")
	if err != nil {
		return nil, err
	}
	if pallet > 255 {
		return nil, status.Error(codes.InvalidArgument, "pallet_index out of range")
	}
	chunks, err := in.uint32("max_unlocking_chunks")
	if err != nil {
		return nil, err
	}
	minBalance, err := in.optionalBalance("minimum_balance")
	if err != nil {
		return nil, err
	}
	minStash, err := in.optionalBalance("minimum_stash")
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		return s.RemoteService.SetStakingConfig(ctx, origin, domain.StakingConfig{
			Asset:              asset,
			PalletIndex:        uint8(pallet),
			MaxUnlockingChunks: chunks,
			MinimumBalance:     minBalance,
			MinimumStash:       minStash,
		})
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{})
}

// ConfirmUnbond handles the ConfirmUnbond RPC
func (s *Server) ConfirmUnbond(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := argsOf(req).withdrawalRef()
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		if err := origin.EnsureRoot(); err != nil {
			return err
		}
		return s.RedemptionService.OnUnbondConfirmed(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{})
}

// ConfirmUnbondedAvailable handles the ConfirmUnbondedAvailable RPC
func (s *Server) ConfirmUnbondedAvailable(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ref, err := argsOf(req).withdrawalRef()
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		if err := origin.EnsureRoot(); err != nil {
			return err
		}
		return s.RedemptionService.OnUnbondedAvailable(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{})
}

// ConfirmTransfer handles the ConfirmTransfer RPC
func (s *Server) ConfirmTransfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	id, err := in.uuid("transfer_id")
	if err != nil {
		return nil, err
	}
	success, err := in.bool("success")
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		if err := origin.EnsureRoot(); err != nil {
			return err
		}
		return s.RemoteService.OnTransferOutcome(ctx, id, success)
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{})
}

// Propose handles the Propose RPC. The payload is either a JSON string or a
// struct, and is handed to the executor as JSON.
func (s *Server) Propose(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	kind, err := in.str("kind")
	if err != nil {
		return nil, err
	}
	payload, err := in.json("payload")
	if err != nil {
		return nil, err
	}

	var p *domain.Proposal
	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		p, err = s.CommitteeService.Propose(ctx, origin, domain.Action{Kind: domain.ActionKind(kind), Payload: payload})
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply(proposalToMap(p))
}

// Vote handles the Vote RPC
func (s *Server) Vote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	hash, err := in.hash("hash")
	if err != nil {
		return nil, err
	}
	vote, err := in.str("vote")
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		return s.CommitteeService.Vote(ctx, origin, hash, domain.Vote(vote))
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{})
}

// CloseProposal handles the CloseProposal RPC
func (s *Server) CloseProposal(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	hash, err := argsOf(req).hash("hash")
	if err != nil {
		return nil, err
	}

	var closed *domain.ClosedProposal
	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		closed, err = s.CommitteeService.Close(ctx, origin, hash)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"hash":      closed.Proposal.Hash.String(),
		"outcome":   string(closed.Outcome),
		"reason":    string(closed.Reason),
		"ayes":      closed.Ayes,
		"nays":      closed.Nays,
		"abstains":  closed.Abstains,
		"closed_at": closed.ClosedAt,
	}
	if closed.ExecutionErr != nil {
		out["execution_error"] = closed.ExecutionErr.Error()
	}
	return reply(out)
}

// ListProposals handles the ListProposals RPC
func (s *Server) ListProposals(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	var proposals []*domain.Proposal
	err := s.call(ctx, func(ctx context.Context, _ domain.Origin) error {
		var err error
		proposals, err = s.CommitteeService.Proposals(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	list := make([]interface{}, 0, len(proposals))
	for _, p := range proposals {
		list = append(list, proposalToMap(p))
	}
	return reply(map[string]interface{}{"proposals": list})
}

// AddMember handles the AddMember RPC
func (s *Server) AddMember(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := argsOf(req)
	account, err := in.str("account")
	if err != nil {
		return nil, err
	}
	memberType, err := in.str("type")
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		return s.CommitteeService.AddMember(ctx, origin, domain.CommitteeMember{
			Account: domain.AccountID(account),
			Type:    domain.MemberType(memberType),
		})
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{})
}

// RemoveMember handles the RemoveMember RPC
func (s *Server) RemoveMember(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account, err := argsOf(req).str("account")
	if err != nil {
		return nil, err
	}

	err = s.call(ctx, func(ctx context.Context, origin domain.Origin) error {
		return s.CommitteeService.RemoveMember(ctx, origin, domain.AccountID(account))
	})
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{})
}

// ListMembers handles the ListMembers RPC
func (s *Server) ListMembers(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	var members []*domain.CommitteeMember
	err := s.call(ctx, func(ctx context.Context, _ domain.Origin) error {
		var err error
		members, err = s.CommitteeService.Members(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	list := make([]interface{}, 0, len(members))
	for _, m := range members {
		list = append(list, map[string]interface{}{"account": string(m.Account), "type": string(m.Type)})
	}
	return reply(map[string]interface{}{"members": list})
}

// GetOverview handles the GetOverview RPC
func (s *Server) GetOverview(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	var result *dashboard.OverviewResult
	err := s.call(ctx, func(ctx context.Context, _ domain.Origin) error {
		var err error
		result, err = s.DashboardService.GetOverview(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	holdings := make([]interface{}, 0, len(result.Holdings))
	for _, h := range result.Holdings {
		holdings = append(holdings, map[string]interface{}{
			"asset":          string(h.Asset),
			"units":          h.Units.String(),
			"availability":   string(h.Availability),
			"location":       h.Location.String(),
			"price":          h.Price.String(),
			"value":          h.Value.String(),
			"ledger_balance": h.LedgerBalance.String(),
		})
	}

	return reply(map[string]interface{}{
		"nav":                 result.NAV.String(),
		"issuance":            result.Issuance.String(),
		"total":               result.Total.String(),
		"liquid":              result.Liquid.String(),
		"illiquid":            result.Illiquid.String(),
		"holdings":            holdings,
		"pending_redemptions": result.PendingRedemptions,
	})
}

func saftToMap(r *domain.SaftRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":    r.ID,
		"asset": string(r.Asset),
		"nav":   r.NAV.String(),
		"units": r.Units.String(),
	}
}

func redemptionToMap(r *domain.PendingRedemption) map[string]interface{} {
	assets := make([]interface{}, 0, len(r.Assets))
	for _, w := range r.Assets {
		assets = append(assets, map[string]interface{}{
			"asset": string(w.Asset),
			"units": w.Units.String(),
			"state":    string(w.State),
			"local":    w.Local,
			"location": w.Location.String(),
		})
	}
	return map[string]interface{}{
		"id":          r.ID.String(),
		"account":     string(r.Account),
		"initiated":   r.Initiated,
		"index_units": r.IndexUnits.String(),
		"nav":         r.NAV.String(),
		"assets":      assets,
		"completed":   r.Completed(),
	}
}

func proposalToMap(p *domain.Proposal) map[string]interface{} {
	return map[string]interface{}{
		"hash":      p.Hash.String(),
		"nonce":     p.Nonce,
		"kind":      string(p.Action.Kind),
		"payload":   string(p.Action.Payload),
		"proposer":  string(p.Proposer),
		"opened_at": p.OpenedAt,
	}
}

func reply(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// args reads typed request fields. Balances travel as decimal strings since
// protobuf numbers cannot hold every u64.
type args struct {
	fields map[string]*structpb.Value
}

func argsOf(req *structpb.Struct) args {
	return args{fields: req.GetFields()}
}

func (a args) str(name string) (string, error) {
	v, ok := a.fields[name]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || s.StringValue == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a non-empty string", name)
	}
	return s.StringValue, nil
}

func (a args) optional(name string) string {
	return a.fields[name].GetStringValue()
}

func (a args) asset(name string) (domain.AssetID, error) {
	s, err := a.str(name)
	return domain.AssetID(s), err
}

func (a args) balance(name string) (domain.Balance, error) {
	s, err := a.str(name)
	if err != nil {
		return 0, err
	}
	b, err := domain.ParseBalance(s)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "invalid %s: %v", name, err)
	}
	return b, nil
}

func (a args) optionalBalance(name string) (domain.Balance, error) {
	if _, ok := a.fields[name]; !ok {
		return 0, nil
	}
	return a.balance(name)
}

func (a args) decimal(name string) (decimal.Decimal, error) {
	s, err := a.str(name)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return d, nil
}

func (a args) uint32(name string) (uint32, error) {
	v, ok := a.fields[name]
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue < 0 || n.NumberValue > float64(^uint32(0)) || n.NumberValue != float64(uint32(n.NumberValue)) {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a non-negative integer", name)
	}
	return uint32(n.NumberValue), nil
}

func (a args) bool(name string) (bool, error) {
	v, ok := a.fields[name]
	if !ok {
		return false, status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, status.Errorf(codes.InvalidArgument, "%s must be a bool", name)
	}
	return b.BoolValue, nil
}

func (a args) uuid(name string) (uuid.UUID, error) {
	s, err := a.str(name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
	}
	return id, nil
}

func (a args) hash(name string) (domain.ProposalHash, error) {
	s, err := a.str(name)
	if err != nil {
		return domain.ProposalHash{}, err
	}
	h, err := domain.ParseProposalHash(s)
	if err != nil {
		return h, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	return h, nil
}

func (a args) json(name string) ([]byte, error) {
	v, ok := a.fields[name]
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "missing %s", name)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return []byte(k.StringValue), nil
	case *structpb.Value_StructValue:
		raw, err := k.StructValue.MarshalJSON()
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid %s: %v", name, err)
		}
		return raw, nil
	}
	return nil, status.Errorf(codes.InvalidArgument, "%s must be a JSON string or object", name)
}

func (a args) withdrawalRef() (domain.WithdrawalRef, error) {
	id, err := a.uuid("redemption_id")
	if err != nil {
		return domain.WithdrawalRef{}, err
	}
	asset, err := a.asset("asset")
	if err != nil {
		return domain.WithdrawalRef{}, err
	}
	return domain.WithdrawalRef{RedemptionID: id, Asset: asset}, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, domain.ErrSendFailed):
		code = codes.Unavailable
	case errors.Is(err, domain.ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrOverflow):
		code = codes.OutOfRange
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrGovernance),
		errors.Is(err, domain.ErrCrossChain):
		code = codes.FailedPrecondition
	}
	return status.Error(code, err.Error())
}
