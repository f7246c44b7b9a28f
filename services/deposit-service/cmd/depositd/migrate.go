package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/deposit-service/internal/infrastructure/config"
	pgRepo "github.com/bibbank/bib/services/deposit-service/internal/infrastructure/persistence/postgres"
)

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd, func(m *pkgpostgres.Migrator) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back the given number of migrations, or all of them",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 0
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				return migrate(cmd, func(m *pkgpostgres.Migrator) error { return m.Down(steps) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd, func(*pkgpostgres.Migrator) error { return nil })
			},
		},
	)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the deposit schema",
}

// migrate runs fn against the configured database and prints the resulting version.
func migrate(cmd *cobra.Command, fn func(m *pkgpostgres.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	if err := fn(m); err != nil {
		return err
	}
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	cmd.Printf("deposit schema at version %d (dirty: %t)\n", v, dirty)
	return nil
}

func newMigrator(cfg config.Config) (*pkgpostgres.Migrator, error) {
	return pkgpostgres.NewMigrator(cfg.Postgres().DSN(), pgRepo.Migrations, pgRepo.MigrationsDir)
}
