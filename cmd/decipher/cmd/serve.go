package cmd

import (
	"decipher/pkg/playground"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the websocket playground",
	Long: `Starts an HTTP server that runs programs sent over a websocket.

Endpoints:
  GET  /healthz  liveness probe
  POST /token    exchange the configured password for a bearer token
  GET  /run      websocket; send {"type":"run","payload":{"source":"...","input":"..."}}

When playground.jwt_secret is set, /run requires a bearer token, given in
the Authorization header or the token query parameter.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig.Playground
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serveAddr
		}
		r := newRunner()
		if cfg.CacheSize > 0 {
			if err := r.UseCache(cfg.CacheSize); err != nil {
				return err
			}
		}
		return playground.New(cfg, r, logger).ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides playground.addr)")
	rootCmd.AddCommand(serveCmd)
}
