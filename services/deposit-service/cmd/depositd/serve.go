package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/bibbank/bib/pkg/health"
	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/pkg/observability"
	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/pkg/tlsutil"
	"github.com/bibbank/bib/services/deposit-service/internal/application/usecase"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/service"
	"github.com/bibbank/bib/services/deposit-service/internal/infrastructure/config"
	"github.com/bibbank/bib/services/deposit-service/internal/infrastructure/kafka"
	pgRepo "github.com/bibbank/bib/services/deposit-service/internal/infrastructure/persistence/postgres"
	grpcPresentation "github.com/bibbank/bib/services/deposit-service/internal/presentation/grpc"
)

func init() {
	serveCmd.Flags().Bool("migrate", true, "apply pending migrations before serving")
	serveCmd.Flags().Bool("relay", true, "publish outbox events to Kafka")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC API, health endpoints and outbox relay",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func utcNow() time.Time { return time.Now().UTC() }

// bootstrap loads and validates configuration, then builds the logger and database pool
// every subcommand needs.
func bootstrap(ctx context.Context) (config.Config, *slog.Logger, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := observability.InitLogger(cfg.Logging())

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pkgpostgres.NewPool(dbCtx, cfg.Postgres())
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, logger, pool, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, logger, pool, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("starting deposit-service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	tp, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.OTLPInsecure,
		SampleRatio: cfg.Observability.SampleRatio,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }() //nolint:errcheck
	}

	mp, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return err
	}
	defer func() { _ = mp.Shutdown(context.Background()) }() //nolint:errcheck

	if runMigrations, _ := cmd.Flags().GetBool("migrate"); runMigrations {
		m, err := newMigrator(cfg)
		if err != nil {
			return err
		}
		err = m.Up()
		_ = m.Close() //nolint:errcheck
		if err != nil {
			return err
		}
	}

	rounding, err := cfg.Rounding()
	if err != nil {
		return err
	}
	productRepo := pgRepo.NewProductRepo(pool)
	accountRepo := pgRepo.NewAccountRepo(pool)

	ucs := grpcPresentation.UseCases{
		CreateProduct:     usecase.NewCreateDepositProduct(productRepo, utcNow),
		DeactivateProduct: usecase.NewDeactivateDepositProduct(productRepo, utcNow),
		OpenAccount:       usecase.NewOpenDepositAccount(productRepo, accountRepo, rounding, utcNow),
		ActivateAccount:   usecase.NewActivateDepositAccount(accountRepo),
		GetAccount:        usecase.NewGetDepositAccount(accountRepo),
		PrematureClose:    usecase.NewPrematureClose(accountRepo, utcNow),
		CloseOnMaturity:   usecase.NewCloseOnMaturity(accountRepo),
		AccrueInterest:    usecase.NewAccrueInterest(accountRepo, service.NewAccrualEngine(), logger),
		ProcessMaturity:   usecase.NewProcessMaturity(accountRepo, logger),
	}

	grpcServer, err := grpcPresentation.NewServer(
		grpcPresentation.NewDepositHandler(ucs, logger),
		grpcPresentation.ServerOptions{
			TLS: tlsutil.ServerOptions{
				CertFile:     cfg.TLS.CertFile,
				KeyFile:      cfg.TLS.KeyFile,
				ClientCAFile: cfg.TLS.ClientCAFile,
			},
			Reflection: cfg.Reflection,
		},
		logger,
	)
	if err != nil {
		return err
	}

	routes := health.NewHandler(cfg.ServiceName, map[string]health.Checker{
		"postgres": func(ctx context.Context) error { return pkgpostgres.HealthCheck(ctx, pool) },
	}, metricsHandler, logger).Router()
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 3)
	go func() {
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if relayEnabled, _ := cmd.Flags().GetBool("relay"); relayEnabled {
		producer, err := pkgkafka.NewProducer(cfg.KafkaClient())
		if err != nil {
			return err
		}
		defer producer.Close() //nolint:errcheck
		relay := kafka.NewOutboxRelay(pgRepo.NewOutboxRepo(pool, utcNow), producer, kafka.RelayOptions{
			Topic:     cfg.Kafka.EventsTopic,
			BatchSize: cfg.Outbox.BatchSize,
			Interval:  cfg.Outbox.PollInterval.Duration,
		}, logger)
		go func() {
			if err := relay.Run(ctx); err != nil {
				errCh <- fmt.Errorf("outbox relay error: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}
	cancel()

	grpcServer.GracefulStop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("deposit-service stopped")
	return nil
}
