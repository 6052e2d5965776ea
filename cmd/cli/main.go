package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gracechapel/backend/internal/database"
)

var (
	format  string = "csv" // "csv" or "json"
	outPath string        // empty = stdout
)

var rootCmd = &cobra.Command{
	Use:   "gracechapel",
	Short: "Grace Chapel admin CLI",
	Long: `Command-line administration for the Grace Chapel backend.
Exports member and event records straight from the database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintln(os.Stderr, "Warning: .env file not found, using system environment variables")
		}
		return database.Initialize()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = database.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&format, "format", format, "Output format: csv or json")
	rootCmd.PersistentFlags().StringVarP(&outPath, "out", "o", "", "Output file (defaults to stdout)")

	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
