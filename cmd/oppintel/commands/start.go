package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrelworks/oppintel/internal/api"
	"github.com/kestrelworks/oppintel/internal/api/handlers"
	"github.com/kestrelworks/oppintel/internal/strategy"
)

// startCmd runs the scheduler and the API server until interrupted
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scanning scheduler and API server",
	Long: `Starts the opportunity pipeline: an immediate scan cycle, repeating
cycles at SCAN_INTERVAL, and the HTTP/websocket API.

Example:
  go run ./cmd/oppintel start`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := buildApp()
		if err != nil {
			return err
		}
		defer application.close()

		generator := strategy.NewGenerator(application.log)

		router := api.NewRouter(
			handlers.NewOpportunityHandler(application.orch, generator, application.cache, application.log),
			handlers.NewEventsHandler(application.bus, application.log),
			application.log,
		)
		server := api.New(application.cfg, application.log, router)

		if err := application.orch.StartScanning(); err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		// Wait for interrupt or server failure
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			application.log.WithField("signal", sig.String()).Info("Shutting down")
		case err := <-errCh:
			if err != nil {
				application.log.WithError(err).Error("API server failed")
			}
		}

		application.orch.StopScanning()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
