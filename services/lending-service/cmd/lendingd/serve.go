package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bibbank/bib/pkg/health"
	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/pkg/observability"
	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/pkg/tlsutil"
	"github.com/bibbank/bib/services/lending-service/internal/application/usecase"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/infrastructure/cache"
	"github.com/bibbank/bib/services/lending-service/internal/infrastructure/config"
	"github.com/bibbank/bib/services/lending-service/internal/infrastructure/kafka"
	pgRepo "github.com/bibbank/bib/services/lending-service/internal/infrastructure/persistence/postgres"
	grpcPresentation "github.com/bibbank/bib/services/lending-service/internal/presentation/grpc"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", true, "apply pending migrations before serving")
	serveCmd.Flags().Bool("consume-payments", true, "book repayments from the payments topic")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC API, health endpoints and payment consumer",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	calendar, err := cfg.HolidayCalendar()
	if err != nil {
		return err
	}

	logger := observability.InitLogger(cfg.Logging())
	logger.Info("starting lending-service",
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"roll_convention", calendar.Convention,
	)

	tp, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.OTLPInsecure,
		SampleRatio: cfg.Observability.SampleRatio,
	})
	if err != nil {
		logger.Warn("failed to initialize tracer, continuing without tracing", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }() //nolint:errcheck // best-effort tracer shutdown
	}

	mp, metricsHandler, err := observability.InitMetrics(observability.MetricsConfig{ServiceName: cfg.ServiceName})
	if err != nil {
		return err
	}
	defer func() { _ = mp.Shutdown(context.Background()) }() //nolint:errcheck

	// Database connection.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()
	pool, err := pkgpostgres.NewPool(dbCtx, cfg.Postgres())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if runMigrations, _ := cmd.Flags().GetBool("migrate"); runMigrations {
		if err := withMigrator(func(m *pkgpostgres.Migrator) error { return m.Up() }); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewClient(dbCtx, cache.Options{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		EnableTLS: cfg.Redis.TLS,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close() //nolint:errcheck
	previews := cache.NewPreviewCache(redisClient)

	producer, err := pkgkafka.NewProducer(cfg.KafkaClient())
	if err != nil {
		return err
	}
	defer producer.Close() //nolint:errcheck

	// Wire infrastructure adapters.
	loanRepo := pgRepo.NewLoanRepo(pool)
	requestRepo := pgRepo.NewRestructureRequestRepo(pool)
	archive := pgRepo.NewScheduleHistoryRepo(pool)
	details := pgRepo.NewPaymentDetailRepo(pool)
	transfers := pgRepo.NewAccountTransferRepo(pool)
	uow := pgRepo.NewUnitOfWork(pool)
	publisher := kafka.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic, logger)
	accounting := kafka.NewAccountingBridge(producer, cfg.Kafka.JournalTopic, logger)

	engine := service.NewScheduleEngine()
	reprocessor := service.NewTransactionReprocessor(uuid.NewString, func() time.Time { return time.Now().UTC() })

	// Wire use cases.
	payments := usecase.NewMakePaymentUseCase(loanRepo, details, uow, transfers, accounting, publisher, reprocessor)
	ucs := grpcPresentation.UseCases{
		Disburse:          usecase.NewDisburseLoanUseCase(loanRepo, uow, accounting, publisher, engine, calendar),
		GetLoan:           usecase.NewGetLoanUseCase(loanRepo),
		MakePayment:       payments,
		CreateRestructure: usecase.NewCreateRestructureRequestUseCase(loanRepo, requestRepo, uow, publisher, engine),
		GetRestructure:    usecase.NewGetRestructureRequestUseCase(requestRepo),
		PreviewRestructure: usecase.NewPreviewRestructureUseCase(
			loanRepo, requestRepo, engine, calendar),
		ApproveRestructure: usecase.NewApproveRestructureRequestUseCase(usecase.ApproveDeps{
			Loans:       loanRepo,
			Requests:    requestRepo,
			Archive:     archive,
			Transfers:   transfers,
			UnitOfWork:  uow,
			Accounting:  accounting,
			Publisher:   publisher,
			Engine:      engine,
			Reprocessor: reprocessor,
			Calendar:    calendar,
			Logger:      logger,
		}),
		RejectRestructure: usecase.NewRejectRestructureRequestUseCase(requestRepo, publisher),
		PreviewLiquidation: usecase.NewPreviewLiquidationUseCase(
			loanRepo, previews, cfg.Redis.PreviewTTL.Duration, engine, calendar, logger),
		ConfirmLiquidation: usecase.NewConfirmLiquidationUseCase(usecase.LiquidationDeps{
			Loans:          loanRepo,
			PaymentDetails: details,
			Archive:        archive,
			Transfers:      transfers,
			UnitOfWork:     uow,
			Accounting:     accounting,
			Publisher:      publisher,
			Engine:         engine,
			Reprocessor:    reprocessor,
			Calendar:       calendar,
		}),
	}

	// gRPC server.
	grpcServer, err := grpcPresentation.NewServer(
		grpcPresentation.NewLendingHandler(ucs, logger),
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

	// HTTP server (health checks and metrics).
	routes := health.NewHandler(cfg.ServiceName, map[string]health.Checker{
		"postgres": func(ctx context.Context) error { return pkgpostgres.HealthCheck(ctx, pool) },
		"redis":    previews.Ping,
	}, metricsHandler, logger).Router()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start servers.
	errCh := make(chan error, 3)

	go func() {
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if consume, _ := cmd.Flags().GetBool("consume-payments"); consume {
		handler := kafka.NewPaymentHandler(payments, logger)
		consumer, err := pkgkafka.NewConsumer(cfg.KafkaClient(), cfg.Kafka.PaymentsTopic, handler.Handle, logger)
		if err != nil {
			return err
		}
		defer consumer.Close() //nolint:errcheck
		go func() {
			if err := consumer.Start(ctx); err != nil {
				errCh <- fmt.Errorf("payment consumer error: %w", err)
			}
		}()
	}

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}
	cancel()

	// Graceful shutdown.
	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("lending-service stopped")
	return nil
}
