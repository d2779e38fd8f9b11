package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "indexfund.v1.IndexFundService"

// IndexFundServiceServer is the server API for IndexFundService. Requests and
// responses are google.protobuf.Struct messages.
type IndexFundServiceServer interface {
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReportPrice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPrice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DepositUnits(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddSaft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveSaft(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSafts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InitiateRedemption(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRedemption(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRedemptions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TransferRemote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTransfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetStakingConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmUnbond(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmUnbondedAvailable(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmTransfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Propose(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Vote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseProposal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProposals(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddMember(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveMember(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMembers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOverview(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ IndexFundServiceServer = (*Server)(nil)

type unaryMethod func(IndexFundServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, fn unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(IndexFundServiceServer)
			if interceptor == nil {
				return fn(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return fn(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for IndexFundService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IndexFundServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		method("GetBalance", IndexFundServiceServer.GetBalance),
		method("ReportPrice", IndexFundServiceServer.ReportPrice),
		method("GetPrice", IndexFundServiceServer.GetPrice),
		method("DepositUnits", IndexFundServiceServer.DepositUnits),
		method("AddSaft", IndexFundServiceServer.AddSaft),
		method("RemoveSaft", IndexFundServiceServer.RemoveSaft),
		method("ListSafts", IndexFundServiceServer.ListSafts),
		method("InitiateRedemption", IndexFundServiceServer.InitiateRedemption),
		method("GetRedemption", IndexFundServiceServer.GetRedemption),
		method("ListRedemptions", IndexFundServiceServer.ListRedemptions),
		method("TransferRemote", IndexFundServiceServer.TransferRemote),
		method("GetTransfer", IndexFundServiceServer.GetTransfer),
		method("SetStakingConfig", IndexFundServiceServer.SetStakingConfig),
		method("ConfirmUnbond", IndexFundServiceServer.ConfirmUnbond),
		method("ConfirmUnbondedAvailable", IndexFundServiceServer.ConfirmUnbondedAvailable),
		method("ConfirmTransfer", IndexFundServiceServer.ConfirmTransfer),
		method("Propose", IndexFundServiceServer.Propose),
		method("Vote", IndexFundServiceServer.Vote),
		method("CloseProposal", IndexFundServiceServer.CloseProposal),
		method("ListProposals", IndexFundServiceServer.ListProposals),
		method("AddMember", IndexFundServiceServer.AddMember),
		method("RemoveMember", IndexFundServiceServer.RemoveMember),
		method("ListMembers", IndexFundServiceServer.ListMembers),
		method("GetOverview", IndexFundServiceServer.GetOverview),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "indexfund/v1/indexfund.proto",
}

// RegisterIndexFundServiceServer registers the service on a gRPC server
func RegisterIndexFundServiceServer(s grpc.ServiceRegistrar, srv IndexFundServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
