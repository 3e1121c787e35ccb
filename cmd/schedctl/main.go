// Command schedctl is the operator tool for the scheduling API: it mints
// tokens, applies migrations and imports task workbooks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "schedctl",
		Short:        "Operator tool for the scheduling API",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
