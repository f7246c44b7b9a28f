package grpc

// proto.go hand-writes the service descriptor for bib.lending.v1.LendingService. Messages
// are the application DTOs carried by the JSON codec, so no generated types are needed.

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
)

const serviceName = "bib.lending.v1.LendingService"

// LendingServiceServer is the server API for LendingService.
type LendingServiceServer interface {
	DisburseLoan(context.Context, *dto.DisburseLoanRequest) (*dto.LoanResponse, error)
	GetLoan(context.Context, *dto.GetLoanRequest) (*dto.LoanResponse, error)
	MakePayment(context.Context, *dto.MakePaymentRequest) (*dto.PaymentResponse, error)
	CreateRestructureRequest(context.Context, *dto.CreateRestructureRequest) (*dto.RestructureRequestResponse, error)
	GetRestructureRequest(context.Context, *dto.GetRestructureRequest) (*dto.RestructureRequestResponse, error)
	PreviewRestructure(context.Context, *dto.GetRestructureRequest) (*dto.ScheduleResponse, error)
	ApproveRestructureRequest(context.Context, *dto.DecideRestructureRequest) (*dto.ApproveRestructureResponse, error)
	RejectRestructureRequest(context.Context, *dto.DecideRestructureRequest) (*dto.RestructureRequestResponse, error)
	PreviewLiquidation(context.Context, *dto.LiquidationRequest) (*dto.ScheduleResponse, error)
	ConfirmLiquidation(context.Context, *dto.LiquidationRequest) (*dto.LiquidationResponse, error)
	mustEmbedUnimplementedLendingServiceServer()
}

// UnimplementedLendingServiceServer provides forward-compatible default implementations.
type UnimplementedLendingServiceServer struct{}

func (UnimplementedLendingServiceServer) DisburseLoan(context.Context, *dto.DisburseLoanRequest) (*dto.LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DisburseLoan not implemented")
}
func (UnimplementedLendingServiceServer) GetLoan(context.Context, *dto.GetLoanRequest) (*dto.LoanResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetLoan not implemented")
}
func (UnimplementedLendingServiceServer) MakePayment(context.Context, *dto.MakePaymentRequest) (*dto.PaymentResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method MakePayment not implemented")
}
func (UnimplementedLendingServiceServer) CreateRestructureRequest(context.Context, *dto.CreateRestructureRequest) (*dto.RestructureRequestResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateRestructureRequest not implemented")
}
func (UnimplementedLendingServiceServer) GetRestructureRequest(context.Context, *dto.GetRestructureRequest) (*dto.RestructureRequestResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetRestructureRequest not implemented")
}
func (UnimplementedLendingServiceServer) PreviewRestructure(context.Context, *dto.GetRestructureRequest) (*dto.ScheduleResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PreviewRestructure not implemented")
}
func (UnimplementedLendingServiceServer) ApproveRestructureRequest(context.Context, *dto.DecideRestructureRequest) (*dto.ApproveRestructureResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ApproveRestructureRequest not implemented")
}
func (UnimplementedLendingServiceServer) RejectRestructureRequest(context.Context, *dto.DecideRestructureRequest) (*dto.RestructureRequestResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RejectRestructureRequest not implemented")
}
func (UnimplementedLendingServiceServer) PreviewLiquidation(context.Context, *dto.LiquidationRequest) (*dto.ScheduleResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PreviewLiquidation not implemented")
}
func (UnimplementedLendingServiceServer) ConfirmLiquidation(context.Context, *dto.LiquidationRequest) (*dto.LiquidationResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ConfirmLiquidation not implemented")
}
func (UnimplementedLendingServiceServer) mustEmbedUnimplementedLendingServiceServer() {}

// RegisterLendingServiceServer registers the LendingServiceServer with the gRPC server.
func RegisterLendingServiceServer(s grpclib.ServiceRegistrar, srv LendingServiceServer) {
	s.RegisterService(&lendingServiceDesc, srv)
}

var lendingServiceDesc = grpclib.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LendingServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		unary("DisburseLoan", LendingServiceServer.DisburseLoan),
		unary("GetLoan", LendingServiceServer.GetLoan),
		unary("MakePayment", LendingServiceServer.MakePayment),
		unary("CreateRestructureRequest", LendingServiceServer.CreateRestructureRequest),
		unary("GetRestructureRequest", LendingServiceServer.GetRestructureRequest),
		unary("PreviewRestructure", LendingServiceServer.PreviewRestructure),
		unary("ApproveRestructureRequest", LendingServiceServer.ApproveRestructureRequest),
		unary("RejectRestructureRequest", LendingServiceServer.RejectRestructureRequest),
		unary("PreviewLiquidation", LendingServiceServer.PreviewLiquidation),
		unary("ConfirmLiquidation", LendingServiceServer.ConfirmLiquidation),
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "bib/lending/v1/lending.proto",
}

// unary builds the method handler generated code would emit for one RPC.
func unary[Req, Resp any](
	method string,
	call func(LendingServiceServer, context.Context, *Req) (*Resp, error),
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
				return call(srv.(LendingServiceServer), ctx, in)
			}
			info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LendingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
