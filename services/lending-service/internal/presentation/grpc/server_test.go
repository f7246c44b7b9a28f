package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/bibbank/bib/pkg/grpcjson"
	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

type executorFunc[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

func (f executorFunc[Req, Resp]) Execute(ctx context.Context, req Req) (Resp, error) {
	return f(ctx, req)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, uc UseCases) *grpclib.ClientConn {
	t.Helper()
	srv, err := NewServer(NewLendingHandler(uc, discardLogger()), ServerOptions{}, discardLogger())
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.ServeListener(lis) }()
	t.Cleanup(srv.GracefulStop)

	conn, err := grpclib.NewClient("passthrough:///bufnet",
		grpclib.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
		grpclib.WithDefaultCallOptions(grpclib.CallContentSubtype(grpcjson.Name)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServer_Health(t *testing.T) {
	conn := startServer(t, UseCases{})

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: serviceName},
		grpclib.CallContentSubtype("proto"),
	)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestServer_MakePaymentOverJSON(t *testing.T) {
	var got dto.MakePaymentRequest
	conn := startServer(t, UseCases{
		MakePayment: executorFunc[dto.MakePaymentRequest, dto.PaymentResponse](
			func(_ context.Context, req dto.MakePaymentRequest) (dto.PaymentResponse, error) {
				got = req
				return dto.PaymentResponse{
					LoanID:               req.LoanID,
					TransactionID:        "txn-1",
					AmountPaid:           req.Amount,
					OutstandingPrincipal: decimal.RequireFromString("9053.81"),
					LoanStatus:           "ACTIVE",
				}, nil
			}),
	})

	var resp dto.PaymentResponse
	err := conn.Invoke(context.Background(), "/"+serviceName+"/MakePayment", &dto.MakePaymentRequest{
		TenantID: "tenant-1",
		LoanID:   "loan-1",
		Amount:   decimal.RequireFromString("1066.19"),
		Currency: "USD",
	}, &resp)
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", got.TenantID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1066.19")))
	assert.Equal(t, "txn-1", resp.TransactionID)
	assert.Equal(t, "9053.81", resp.OutstandingPrincipal.String())
}

func TestServer_UnwiredMethodIsUnimplemented(t *testing.T) {
	conn := startServer(t, UseCases{})

	var resp dto.LoanResponse
	err := conn.Invoke(context.Background(), "/"+serviceName+"/GetLoan", &dto.GetLoanRequest{LoanID: "x"}, &resp)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestServer_DomainErrorsMapToCodes(t *testing.T) {
	conn := startServer(t, UseCases{
		GetLoan: executorFunc[dto.GetLoanRequest, dto.LoanResponse](
			func(context.Context, dto.GetLoanRequest) (dto.LoanResponse, error) {
				return dto.LoanResponse{}, valueobject.NewNotFoundError("loan", "x")
			}),
	})

	var resp dto.LoanResponse
	err := conn.Invoke(context.Background(), "/"+serviceName+"/GetLoan", &dto.GetLoanRequest{LoanID: "x"}, &resp)
	st := status.Convert(err)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Contains(t, st.Message(), valueobject.CodeNotFound)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"duplicate request", valueobject.NewDuplicateRestructureRequestError("loan", "req"), codes.AlreadyExists},
		{"stale version", valueobject.NewConcurrentModificationError("loan", "l", 3), codes.Aborted},
		{"temporal ordering", valueobject.ErrTemporalOrdering, codes.FailedPrecondition},
		{"liquidation too large", valueobject.NewLiquidationExceedsBalanceError("10", "5"), codes.FailedPrecondition},
		{"currency mismatch", money.ErrCurrencyMismatch, codes.InvalidArgument},
		{"unknown", errors.New("connection reset"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := toStatus(tt.err)
			assert.Equal(t, tt.want, st.Code())
		})
	}

	assert.Equal(t, "internal error", toStatus(errors.New("pq: password leaked")).Message())
}
