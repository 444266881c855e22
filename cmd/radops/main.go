// Command radops runs the attendance and booking API and its maintenance jobs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const appName = "radops"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Truck attendance and patient booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(serveCmd(), migrateCmd(), sweepCmd(), outboxCmd())
	return cmd
}
