package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// scanCmd runs a single scan cycle and prints the qualifying results
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan cycle and print qualifying opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}
		defer application.close()

		application.orch.PerformScan(context.Background())

		opportunities := application.orch.ActiveOpportunities()
		if len(opportunities) == 0 {
			fmt.Println("No qualifying opportunities found")
			return nil
		}

		fmt.Printf("%-5s %-20s %-40s %s\n", "SCORE", "SOURCE", "TITLE", "ID")
		for _, opp := range opportunities {
			title := opp.Title
			if len(title) > 38 {
				title = title[:38] + ".."
			}
			fmt.Printf("%-5d %-20s %-40s %s\n", opp.Score, opp.Source, title, opp.ID)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
