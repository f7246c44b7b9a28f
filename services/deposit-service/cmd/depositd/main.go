// Command depositd runs the term deposit service, its batch jobs and schema migrations.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "depositd",
	Short:        "Term deposit accounts, interest accrual and maturity processing",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
