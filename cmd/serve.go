package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start an HTTP server exposing the query pipeline.

POST /v1/query accepts {"question": "...", "debug": false} and returns either
the result rows with the final SQL, or a structured error naming the stage
that failed. GET /v1/catalog lists the known tables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides configuration)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Catalog.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			if err := a.catalog.Watch(watchCtx); err != nil {
				logging.GetLogger().WithError(err).Warn("catalog watcher stopped")
			}
		}()
	}

	return server.New(cfg.Server, a.pipeline, a.catalog).ListenAndServe(ctx)
}
