package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/config"
	"github.com/kestrelworks/oppintel/pkg/httputil"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

var strategyBudget float64

// strategyCmd asks a running pipeline to generate a campaign strategy
var strategyCmd = &cobra.Command{
	Use:   "strategy <opportunity-id>",
	Short: "Generate a campaign strategy for one opportunity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.NewNop()

		client := httputil.New(log).DisableRetry()

		constraints := contracts.StrategyConstraints{TotalBudget: strategyBudget}
		url := fmt.Sprintf("http://localhost:%s/api/v1/opportunities/%s/strategy", cfg.Port, args[0])

		resp, err := client.PostJSON(context.Background(), url, constraints)
		if err != nil {
			return fmt.Errorf("is the pipeline running? %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("strategy request failed with status %d", resp.StatusCode)
		}

		var result map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode strategy response: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(strategyCmd)
	strategyCmd.Flags().Float64Var(&strategyBudget, "budget", 0, "total campaign budget (default from strategy generator)")
}
