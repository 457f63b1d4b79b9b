package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gaiakodi/gaiasource/internal/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operations as a JSON API",
	Long: `Serve runs an HTTP server exposing every operation:

  GET  /v1/{operation}?media=movie&query=...   parameters as in the CLI flags
  POST /v1/run                                 a JSON request body
  GET  /v1/providers                           registered providers and budgets
  GET  /v1/summary                             operation counters
  GET  /healthz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.Listen = listenAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		sc := server.DefaultConfig(cfg.Listen)
		if cfg.Timeout.Duration > 0 {
			sc.Timeout = cfg.Timeout.Duration
		}
		srv := server.New(a.engine, sc, server.WithGovernor(a.governor), server.WithLogger(a.logger))
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default from config, 127.0.0.1:8321)")
	rootCmd.AddCommand(serveCmd)
}
