package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/catbits/pkg/cache"
	"github.com/matzehuels/catbits/pkg/config"
	"github.com/matzehuels/catbits/pkg/server"
)

// serveKeyPrefix scopes server cache entries away from CLI entries when
// both share a redis instance.
const serveKeyPrefix = "serve:"

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		maxBody  int64
		cacheURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the bitstream pipeline over HTTP",
		Long: `Serve the bitstream pipeline over HTTP.

Endpoints:
  GET  /healthz       liveness probe
  GET  /v1/config     effective pipeline options
  POST /v1/bitstream  image body in, packed bytes out (?format=text for '0'/'1')
  POST /v1/analyze    artifact body in, JSON statistics out

Pipeline defaults come from the config file; /v1/bitstream accepts
iterations, threshold, width, height, channel, no_permute, edge and tail as
query parameters.`,
		Example: `  catbits serve --addr :9000
  curl --data-binary @photo.jpg localhost:9000/v1/bitstream > photo.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Server.Addr = addr
			}
			if flags.Changed("max-body") {
				cfg.Server.MaxBodyBytes = maxBody
			}
			if flags.Changed("cache") {
				cfg.Cache.URL = cacheURL
			}
			ctx := cmd.Context()

			stopTracing, err := c.setupTracing(ctx, cfg.Tracing)
			if err != nil {
				return err
			}
			defer stopTracing()

			runner, err := c.newRunner(cfg, cache.NewScopedKeyer(nil, serveKeyPrefix))
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			srv, err := server.New(runner, server.Config{
				Addr:         cfg.Server.Addr,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				Options:      cfg.Pipeline,
				Logger:       c.Logger,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVar(&addr, "addr", defaults.Server.Addr, "listen address")
	cmd.Flags().Int64Var(&maxBody, "max-body", defaults.Server.MaxBodyBytes, "maximum request body in bytes")
	cmd.Flags().StringVar(&cacheURL, "cache", defaults.Cache.URL, "cache backend: file, none or redis://host:port/db")

	return cmd
}
