// Command lendingd runs the lending service and manages its schema.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "lendingd",
	Short:        "Loan schedule, restructure and part-liquidation service",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
