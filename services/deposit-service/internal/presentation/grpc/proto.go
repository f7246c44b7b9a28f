package grpc

// proto.go hand-writes the descriptor for bib.deposit.v1.DepositService. Requests and
// responses are the application DTOs, carried by the grpcjson codec.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bib/services/deposit-service/internal/application/dto"
)

const serviceName = "bib.deposit.v1.DepositService"

// DepositServiceServer is the server API for DepositService.
type DepositServiceServer interface {
	CreateProduct(context.Context, *dto.CreateDepositProductRequest) (*dto.DepositProductResponse, error)
	DeactivateProduct(context.Context, *dto.DeactivateDepositProductRequest) (*dto.DepositProductResponse, error)
	OpenAccount(context.Context, *dto.OpenDepositAccountRequest) (*dto.DepositAccountResponse, error)
	ActivateAccount(context.Context, *dto.ActivateDepositAccountRequest) (*dto.DepositAccountResponse, error)
	GetAccount(context.Context, *dto.GetDepositAccountRequest) (*dto.DepositAccountResponse, error)
	PrematureClose(context.Context, *dto.PrematureCloseRequest) (*dto.PrematureCloseResponse, error)
	CloseOnMaturity(context.Context, *dto.CloseOnMaturityRequest) (*dto.MaturityPayout, error)
	AccrueInterest(context.Context, *dto.AccrueInterestRequest) (*dto.AccrueInterestResponse, error)
	ProcessMaturity(context.Context, *dto.ProcessMaturityRequest) (*dto.ProcessMaturityResponse, error)
	mustEmbedUnimplementedDepositServiceServer()
}

// UnimplementedDepositServiceServer answers Unimplemented for every RPC.
type UnimplementedDepositServiceServer struct{}

func (UnimplementedDepositServiceServer) CreateProduct(context.Context, *dto.CreateDepositProductRequest) (*dto.DepositProductResponse, error) {
	return nil, unimplemented("CreateProduct")
}
func (UnimplementedDepositServiceServer) DeactivateProduct(context.Context, *dto.DeactivateDepositProductRequest) (*dto.DepositProductResponse, error) {
	return nil, unimplemented("DeactivateProduct")
}
func (UnimplementedDepositServiceServer) OpenAccount(context.Context, *dto.OpenDepositAccountRequest) (*dto.DepositAccountResponse, error) {
	return nil, unimplemented("OpenAccount")
}
func (UnimplementedDepositServiceServer) ActivateAccount(context.Context, *dto.ActivateDepositAccountRequest) (*dto.DepositAccountResponse, error) {
	return nil, unimplemented("ActivateAccount")
}
func (UnimplementedDepositServiceServer) GetAccount(context.Context, *dto.GetDepositAccountRequest) (*dto.DepositAccountResponse, error) {
	return nil, unimplemented("GetAccount")
}
func (UnimplementedDepositServiceServer) PrematureClose(context.Context, *dto.PrematureCloseRequest) (*dto.PrematureCloseResponse, error) {
	return nil, unimplemented("PrematureClose")
}
func (UnimplementedDepositServiceServer) CloseOnMaturity(context.Context, *dto.CloseOnMaturityRequest) (*dto.MaturityPayout, error) {
	return nil, unimplemented("CloseOnMaturity")
}
func (UnimplementedDepositServiceServer) AccrueInterest(context.Context, *dto.AccrueInterestRequest) (*dto.AccrueInterestResponse, error) {
	return nil, unimplemented("AccrueInterest")
}
func (UnimplementedDepositServiceServer) ProcessMaturity(context.Context, *dto.ProcessMaturityRequest) (*dto.ProcessMaturityResponse, error) {
	return nil, unimplemented("ProcessMaturity")
}
func (UnimplementedDepositServiceServer) mustEmbedUnimplementedDepositServiceServer() {}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

// RegisterDepositServiceServer registers srv with the gRPC server.
func RegisterDepositServiceServer(s grpclib.ServiceRegistrar, srv DepositServiceServer) {
	s.RegisterService(&depositServiceDesc, srv)
}

var depositServiceDesc = grpclib.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DepositServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		unary("CreateProduct", DepositServiceServer.CreateProduct),
		unary("DeactivateProduct", DepositServiceServer.DeactivateProduct),
		unary("OpenAccount", DepositServiceServer.OpenAccount),
		unary("ActivateAccount", DepositServiceServer.ActivateAccount),
		unary("GetAccount", DepositServiceServer.GetAccount),
		unary("PrematureClose", DepositServiceServer.PrematureClose),
		unary("CloseOnMaturity", DepositServiceServer.CloseOnMaturity),
		unary("AccrueInterest", DepositServiceServer.AccrueInterest),
		unary("ProcessMaturity", DepositServiceServer.ProcessMaturity),
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "bib/deposit/v1/deposit.proto",
}

func unary[Req, Resp any](
	method string,
	call func(DepositServiceServer, context.Context, *Req) (*Resp, error),
) grpclib.MethodDesc {
	fullMethod := "/" + serviceName + "/" + method
	return grpclib.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DepositServiceServer), ctx, in)
			}
			info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(DepositServiceServer), ctx, req.(*Req))
			})
		},
	}
}
