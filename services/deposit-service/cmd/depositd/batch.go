package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bibbank/bib/services/deposit-service/internal/application/dto"
	"github.com/bibbank/bib/services/deposit-service/internal/application/usecase"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/service"
	pgRepo "github.com/bibbank/bib/services/deposit-service/internal/infrastructure/persistence/postgres"
)

func init() {
	for _, c := range []*cobra.Command{accrueCmd, matureCmd} {
		c.Flags().String("tenant", "", "tenant ID (required)")
		c.Flags().String("date", "", "business date as YYYY-MM-DD (default today, UTC)")
		_ = c.MarkFlagRequired("tenant") //nolint:errcheck
		rootCmd.AddCommand(c)
	}
}

var accrueCmd = &cobra.Command{
	Use:   "accrue",
	Short: "Run the daily interest close for a tenant's active deposits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tenantID, date, err := batchFlags(cmd)
		if err != nil {
			return err
		}
		_, logger, pool, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		uc := usecase.NewAccrueInterest(pgRepo.NewAccountRepo(pool), service.NewAccrualEngine(), logger)
		return runBatch(cmd, uc, dto.AccrueInterestRequest{TenantID: tenantID, AsOf: date})
	},
}

var matureCmd = &cobra.Command{
	Use:   "mature",
	Short: "Apply maturity instructions to a tenant's matured deposits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tenantID, date, err := batchFlags(cmd)
		if err != nil {
			return err
		}
		_, logger, pool, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		uc := usecase.NewProcessMaturity(pgRepo.NewAccountRepo(pool), logger)
		return runBatch(cmd, uc, dto.ProcessMaturityRequest{TenantID: tenantID, ProcessedOn: date})
	},
}

func batchFlags(cmd *cobra.Command) (uuid.UUID, time.Time, error) {
	rawTenant, _ := cmd.Flags().GetString("tenant")
	tenantID, err := uuid.Parse(rawTenant)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid --tenant %q: %w", rawTenant, err)
	}
	rawDate, _ := cmd.Flags().GetString("date")
	if rawDate == "" {
		now := utcNow()
		return tenantID, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(time.DateOnly, rawDate)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid --date %q: %w", rawDate, err)
	}
	return tenantID, date, nil
}

// runBatch executes uc and prints its report as indented JSON.
func runBatch[Req, Resp any](cmd *cobra.Command, uc interface {
	Execute(context.Context, Req) (Resp, error)
}, req Req) error {
	resp, err := uc.Execute(cmd.Context(), req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
