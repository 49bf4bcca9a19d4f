package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/oppintel/pkg/config"
	"github.com/kestrelworks/oppintel/pkg/httputil"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// statusCmd queries a running pipeline's stats endpoint
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show working-set statistics of a running pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.NewNop()

		client := httputil.New(log).DisableRetry()

		var stats map[string]interface{}
		url := fmt.Sprintf("http://localhost:%s/api/v1/stats", cfg.Port)
		if err := client.GetJSON(context.Background(), url, &stats); err != nil {
			return fmt.Errorf("is the pipeline running? %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
