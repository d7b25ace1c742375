// Package cli implements the catbits command-line interface.
//
// The main commands are:
//   - run: process a directory (or list of URLs) of images into the bitstream artifact
//   - analyze: histogram, entropy and related measures of an artifact
//   - stages: show the configured stage chain (text, DOT or SVG)
//   - serve: the HTTP API
//   - runs: recently recorded batches
//   - cache, config, completion: housekeeping
//
// Settings come from the config file and CATBITS_* variables (see package
// config); command-line flags override both.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/catbits/pkg/buildinfo"
	"github.com/matzehuels/catbits/pkg/cache"
	"github.com/matzehuels/catbits/pkg/config"
	"github.com/matzehuels/catbits/pkg/observability"
	"github.com/matzehuels/catbits/pkg/observability/tracing"
	"github.com/matzehuels/catbits/pkg/pipeline"
	"github.com/matzehuels/catbits/pkg/store"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag; empty means the XDG default.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "catbits",
		Short: "catbits turns photographs into a packed bitstream",
		Long: `catbits crops, dithers and scrambles images with a cat map, reduces
every 4x4 block to its parity bit and appends the packed bits of each
image to a single artifact.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default "+config.DefaultPath()+")")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.stagesCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Factories
// =============================================================================

// loadConfig reads the config file and environment.
func (c *CLI) loadConfig() (*config.File, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("config loaded", "path", c.configPath, "cache", cfg.Cache.URL, "store", cfg.Store.URL)
	return cfg, nil
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(cfg *config.File, keyer cache.Keyer) (*pipeline.Runner, error) {
	cc, err := newCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, keyer, c.Logger), nil
}

func newCache(cfg config.Cache) (cache.Cache, error) {
	dir := cfg.Dir
	if dir == "" {
		var err error
		if dir, err = config.CacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.Open(cfg.URL, dir)
}

// newStore opens the run ledger. A failure only disables run recording.
func (c *CLI) newStore(ctx context.Context, cfg config.Store) store.Store {
	dir, err := config.DataDir()
	if err != nil {
		dir = "."
	}
	s, err := store.Open(ctx, cfg.URL, dir)
	if err != nil {
		c.Logger.Warn("run history disabled", "error", err)
		return store.NullStore{}
	}
	return s
}

// setupTracing installs the OpenTelemetry pipeline hooks when an endpoint
// is configured. The returned function flushes spans and restores the
// no-op hooks.
func (c *CLI) setupTracing(ctx context.Context, cfg config.Tracing) (func(), error) {
	shutdown, err := tracing.Setup(ctx, cfg.Service, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	if cfg.Endpoint == "" {
		return func() {}, nil
	}
	observability.SetPipelineHooks(tracing.NewHooks(nil))
	c.Logger.Debug("tracing enabled", "endpoint", cfg.Endpoint)
	return func() {
		observability.Reset()
		if err := shutdown(context.Background()); err != nil {
			c.Logger.Warn("flush traces", "error", err)
		}
	}, nil
}
