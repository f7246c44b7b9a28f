package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	_ "github.com/bibbank/bib/pkg/grpcjson" // registers the json codec
	"github.com/bibbank/bib/pkg/tlsutil"
)

// ServerOptions configures transport security and reflection.
type ServerOptions struct {
	TLS        tlsutil.ServerOptions
	Reflection bool
}

// Server wraps a gRPC server for the deposit service.
type Server struct {
	server *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewServer(handler DepositServiceServer, opts ServerOptions, logger *slog.Logger) (*Server, error) {
	serverOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(requestLogger(logger))}

	// TLS is on when both certificate files are set; a client CA turns on mTLS.
	if opts.TLS.CertFile != "" && opts.TLS.KeyFile != "" {
		creds, err := tlsutil.ServerCredentials(opts.TLS)
		if err != nil {
			return nil, fmt.Errorf("load gRPC TLS credentials: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
		logger.Info("gRPC TLS enabled", "cert", opts.TLS.CertFile, "mtls", opts.TLS.ClientCAFile != "")
	} else {
		logger.Info("gRPC TLS not configured, running without TLS")
	}

	srv := grpc.NewServer(serverOpts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	RegisterDepositServiceServer(srv, handler)

	if opts.Reflection {
		reflection.Register(srv)
	}

	return &Server{server: srv, health: healthSrv, logger: logger}, nil
}

// Serve listens on addr and blocks until the server stops.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(lis)
}

func (s *Server) ServeListener(lis net.Listener) error {
	s.logger.Info("gRPC server starting", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// GracefulStop flips health to NOT_SERVING and waits for in-flight calls.
func (s *Server) GracefulStop() {
	s.logger.Info("gRPC server stopping")
	s.health.Shutdown()
	s.server.GracefulStop()
}

func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.DebugContext(ctx, "grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}
