package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/indexfund-backend/internal/adapter/clock"
	"github.com/simaogato/indexfund-backend/internal/adapter/repository/memory"
	"github.com/simaogato/indexfund-backend/internal/app"
	"github.com/simaogato/indexfund-backend/internal/domain"
)

type nopSender struct{}

func (nopSender) Send(context.Context, domain.Location, domain.RemoteInstruction) error { return nil }

type testServer struct {
	conn  *grpclib.ClientConn
	clock *clock.ManualClock
	app   *app.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	clk := clock.NewManualClock(1)
	a := app.New(app.MemoryRepositories(store), store, clk, nopSender{}, app.Params{
		Treasury:          "treasury",
		Controller:        "controller",
		Reporters:         []domain.AccountID{"oracle"},
		MinimumRedemption: 1,
		Rules: domain.VotingRules{
			Period:          domain.VotingPeriodRange{Min: 2, Max: 100},
			MinCouncilVotes: 2,
			Threshold:       decimal.RequireFromString("0.5"),
		},
	})
	require.NoError(t, a.Prices.Track(ctx, domain.Root("sudo"), "DOT"))

	auth := NewAuthenticator(map[string]domain.AccountID{
		"sudo-token":   "sudo",
		"oracle-token": "oracle",
		"c1-token":     "c1",
		"c2-token":     "c2",
		"alice-token":  "alice",
	}, []domain.AccountID{"sudo"})

	lis := bufconn.Listen(1 << 20)
	gs := grpclib.NewServer(grpclib.UnaryInterceptor(AuthInterceptor(auth)))
	RegisterIndexFundServiceServer(gs, NewServer(
		a.Serializer, a.Ledger, a.Prices, a.Index, a.Safts, a.Remote, a.Redemptions, a.Committee, a.Dashboard,
	))
	go func() {
		_ = gs.Serve(lis)
	}()
	t.Cleanup(gs.Stop)

	conn, err := grpclib.NewClient("passthrough:///bufnet",
		grpclib.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testServer{conn: conn, clock: clk, app: a}
}

func (s *testServer) invoke(token, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	ctx := context.Background()
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	err = s.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out)
	return out, err
}

func (s *testServer) mustInvoke(t *testing.T, token, method string, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	out, err := s.invoke(token, method, fields)
	require.NoError(t, err, method)
	return out
}

func TestServer_GovernanceAndRedemption(t *testing.T) {
	s := newTestServer(t)

	out := s.mustInvoke(t, "oracle-token", "ReportPrice", map[string]interface{}{"asset": "DOT", "value": "10", "moment": "1"})
	assert.True(t, out.Fields["accepted"].GetBoolValue())

	s.mustInvoke(t, "sudo-token", "AddMember", map[string]interface{}{"account": "c1", "type": "COUNCIL"})
	s.mustInvoke(t, "sudo-token", "AddMember", map[string]interface{}{"account": "c2", "type": "COUNCIL"})
	members := s.mustInvoke(t, "alice-token", "ListMembers", nil)
	assert.Len(t, members.Fields["members"].GetListValue().GetValues(), 2)

	proposal := s.mustInvoke(t, "c1-token", "Propose", map[string]interface{}{
		"kind": "add_asset",
		"payload": map[string]interface{}{
			"asset":          "DOT",
			"units":          100,
			"availability":   "LIQUID",
			"location":       ".",
			"reported_value": 0,
		},
	})
	hash := proposal.Fields["hash"].GetStringValue()
	require.Len(t, hash, 64)
	assert.Equal(t, "c1", proposal.Fields["proposer"].GetStringValue())

	s.mustInvoke(t, "c1-token", "Vote", map[string]interface{}{"hash": hash, "vote": "AYE"})

	_, err := s.invoke("alice-token", "CloseProposal", map[string]interface{}{"hash": hash})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err), "no quorum before the minimum period")

	s.mustInvoke(t, "c2-token", "Vote", map[string]interface{}{"hash": hash, "vote": "AYE"})
	s.clock.Advance(5)
	closed := s.mustInvoke(t, "alice-token", "CloseProposal", map[string]interface{}{"hash": hash})
	assert.Equal(t, "APPROVED", closed.Fields["outcome"].GetStringValue())
	assert.Equal(t, float64(2), closed.Fields["ayes"].GetNumberValue())
	assert.NotContains(t, closed.Fields, "execution_error")

	overview := s.mustInvoke(t, "alice-token", "GetOverview", nil)
	assert.Equal(t, "1", overview.Fields["nav"].GetStringValue())
	assert.Equal(t, "1000", overview.Fields["issuance"].GetStringValue())
	holdings := overview.Fields["holdings"].GetListValue().GetValues()
	require.Len(t, holdings, 1)
	assert.Equal(t, "DOT", holdings[0].GetStructValue().Fields["asset"].GetStringValue())
	assert.Equal(t, "100", holdings[0].GetStructValue().Fields["ledger_balance"].GetStringValue())

	r := s.mustInvoke(t, "c1-token", "InitiateRedemption", map[string]interface{}{"index_units": "100"})
	assert.True(t, r.Fields["completed"].GetBoolValue(), "local-only redemption settles at once")

	bal := s.mustInvoke(t, "c1-token", "GetBalance", map[string]interface{}{"asset": "DOT"})
	assert.Equal(t, "10", bal.Fields["total"].GetStringValue())
	assert.Equal(t, "10", bal.Fields["available"].GetStringValue())

	pending := s.mustInvoke(t, "c1-token", "ListRedemptions", nil)
	assert.Empty(t, pending.Fields["redemptions"].GetListValue().GetValues())
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer(t)
	missing := uuid.New().String()

	tests := []struct {
		name   string
		token  string
		method string
		fields map[string]interface{}
		code   codes.Code
	}{
		{"no token", "", "GetOverview", nil, codes.Unauthenticated},
		{"unknown token", "mallory", "GetOverview", nil, codes.Unauthenticated},
		{"confirmation needs root", "alice-token", "ConfirmUnbond", map[string]interface{}{"redemption_id": missing, "asset": "KSM"}, codes.PermissionDenied},
		{"transfer outcome needs root", "alice-token", "ConfirmTransfer", map[string]interface{}{"transfer_id": missing, "success": true}, codes.PermissionDenied},
		{"unknown redemption", "sudo-token", "ConfirmUnbond", map[string]interface{}{"redemption_id": missing, "asset": "KSM"}, codes.NotFound},
		{"unknown transfer", "sudo-token", "GetTransfer", map[string]interface{}{"transfer_id": missing}, codes.NotFound},
		{"malformed id", "alice-token", "GetRedemption", map[string]interface{}{"id": "nope"}, codes.InvalidArgument},
		{"missing field", "alice-token", "GetPrice", nil, codes.InvalidArgument},
		{"balance as number", "alice-token", "InitiateRedemption", map[string]interface{}{"index_units": 5}, codes.InvalidArgument},
		{"untracked price", "alice-token", "GetPrice", map[string]interface{}{"asset": "KSM"}, codes.NotFound},
		{"no index tokens", "alice-token", "InitiateRedemption", map[string]interface{}{"index_units": "5"}, codes.FailedPrecondition},
		{"non-member vote", "alice-token", "Vote", map[string]interface{}{"hash": fmt.Sprintf("%064x", 1), "vote": "AYE"}, codes.PermissionDenied},
		{"non-root member change", "alice-token", "AddMember", map[string]interface{}{"account": "bob", "type": "COUNCIL"}, codes.PermissionDenied},
		{"reporter allow-list", "alice-token", "ReportPrice", map[string]interface{}{"asset": "DOT", "value": "1", "moment": "1"}, codes.PermissionDenied},
		{"staking config needs root", "alice-token", "SetStakingConfig", map[string]interface{}{"asset": "KSM", "pallet_index": 7, "max_unlocking_chunks": 32}, codes.PermissionDenied},
		{"pallet index range", "sudo-token", "SetStakingConfig", map[string]interface{}{"asset": "KSM", "pallet_index": 300, "max_unlocking_chunks": 32}, codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.invoke(tt.token, tt.method, tt.fields)
			require.Error(t, err)
			assert.Equal(t, tt.code, status.Code(err), err.Error())
		})
	}
}

func TestServer_StakingConfigAndSafts(t *testing.T) {
	s := newTestServer(t)

	s.mustInvoke(t, "sudo-token", "SetStakingConfig", map[string]interface{}{
		"asset": "KSM", "pallet_index": 7, "max_unlocking_chunks": 32, "minimum_balance": "5",
	})
	cfg, err := s.app.Remote.StakingRepo.GetConfig(context.Background(), "KSM")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, uint8(7), cfg.PalletIndex)
	assert.Equal(t, domain.Balance(5), cfg.MinimumBalance)

	saft := s.mustInvoke(t, "sudo-token", "AddSaft", map[string]interface{}{"asset": "PINT", "nav": "500", "units": "50"})
	assert.Equal(t, float64(0), saft.Fields["id"].GetNumberValue())

	list := s.mustInvoke(t, "alice-token", "ListSafts", map[string]interface{}{"asset": "PINT"})
	assert.Len(t, list.Fields["safts"].GetListValue().GetValues(), 1)

	s.mustInvoke(t, "sudo-token", "RemoveSaft", map[string]interface{}{"asset": "PINT", "id": 0})
	list = s.mustInvoke(t, "alice-token", "ListSafts", map[string]interface{}{"asset": "PINT"})
	assert.Empty(t, list.Fields["safts"].GetListValue().GetValues())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{domain.ErrBadOrigin, codes.PermissionDenied},
		{domain.ErrRedemptionNotFound, codes.NotFound},
		{domain.ErrBelowMinimumRedemption, codes.InvalidArgument},
		{domain.ErrBalanceOverflow, codes.OutOfRange},
		{domain.ErrNotEnoughBalance, codes.FailedPrecondition},
		{domain.ErrVotingStillOpen, codes.FailedPrecondition},
		{domain.ErrInvalidDestination, codes.FailedPrecondition},
		{fmt.Errorf("wrapped: %w", domain.ErrSendFailed), codes.Unavailable},
		{errors.New("disk on fire"), codes.Internal},
		{status.Error(codes.Aborted, "kept"), codes.Aborted},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(mapError(tt.err)))
		})
	}
	assert.NoError(t, mapError(nil))
}
