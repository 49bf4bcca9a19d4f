package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oppintel",
	Short: "Opportunity intelligence pipeline",
	Long: `oppintel - opportunity intelligence pipeline

Polls external sources for marketing opportunities, scores them with a
multi-factor model and derives phased campaign strategies.

Examples:
  go run ./cmd/oppintel start
  go run ./cmd/oppintel scan
  go run ./cmd/oppintel status
  go run ./cmd/oppintel strategy <opportunity-id> --budget 5000`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
