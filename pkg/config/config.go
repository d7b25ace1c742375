// Package config loads catbits settings from a TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file, CATBITS_*
// environment variables, then command-line flags (applied by the CLI).
//
//	[pipeline]
//	iterations = 7
//	channel = "luma"
//
//	[output]
//	path = "random_sequence.bin"
//
// Every key has an environment counterpart, for example
// CATBITS_ITERATIONS, CATBITS_OUTPUT or CATBITS_CACHE_URL.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/matzehuels/catbits/pkg/errors"
	pkgio "github.com/matzehuels/catbits/pkg/io"
	"github.com/matzehuels/catbits/pkg/pipeline"
	"github.com/matzehuels/catbits/pkg/source"
)

const (
	appName = "catbits"

	// EnvPrefix prefixes every environment variable.
	EnvPrefix = "CATBITS_"

	// DefaultOutput is the primary artifact path.
	DefaultOutput = "random_sequence.bin"

	// DefaultBitmapOutput is the dithered bitmap artifact path.
	DefaultBitmapOutput = "dithered_bitmap.bin"

	// DefaultSourceDir is the directory scanned for images.
	DefaultSourceDir = "src"

	// DefaultAddr is the HTTP listen address.
	DefaultAddr = ":8080"

	// DefaultServiceName identifies traces.
	DefaultServiceName = "catbits"
)

// File is the complete configuration.
type File struct {
	Pipeline pipeline.Options `toml:"pipeline"`
	Source   Source           `toml:"source"`
	Output   Output           `toml:"output"`
	Cache    Cache            `toml:"cache" envPrefix:"CACHE_"`
	Store    Store            `toml:"store" envPrefix:"STORE_"`
	Server   Server           `toml:"server" envPrefix:"SERVER_"`
	Tracing  Tracing          `toml:"tracing" envPrefix:"OTEL_"`
}

// Source selects input images.
type Source struct {
	Dir        string   `toml:"dir" env:"SOURCE_DIR"`
	Extensions []string `toml:"extensions" env:"SOURCE_EXTENSIONS" envSeparator:","`
	Prefetch   int      `toml:"prefetch" env:"PREFETCH"`
}

// Output configures the artifacts.
type Output struct {
	Path   string       `toml:"path" env:"OUTPUT"`
	Bitmap string       `toml:"bitmap" env:"BITMAP_OUTPUT"`
	Format pkgio.Format `toml:"format" env:"OUTPUT_FORMAT"`
}

// Cache selects the cache backend: "file", "none" or a redis:// URL.
type Cache struct {
	URL string `toml:"url" env:"URL"`
	Dir string `toml:"dir" env:"DIR"`
}

// Store selects the run ledger: a sqlite path or sqlite:// URL, a
// mongodb:// URL, or "none".
type Store struct {
	URL string `toml:"url" env:"URL"`
}

// Server configures `catbits serve`.
type Server struct {
	Addr         string `toml:"addr" env:"ADDR"`
	MaxBodyBytes int64  `toml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

// Tracing configures OpenTelemetry export. An empty endpoint disables it.
type Tracing struct {
	Endpoint string `toml:"endpoint" env:"ENDPOINT"`
	Service  string `toml:"service" env:"SERVICE"`
}

// Default returns the built-in configuration.
func Default() File {
	f := File{
		Source: Source{
			Dir:        DefaultSourceDir,
			Extensions: []string{source.DefaultExtension},
			Prefetch:   source.DefaultPrefetch,
		},
		Output: Output{
			Path:   DefaultOutput,
			Bitmap: DefaultBitmapOutput,
			Format: pkgio.FormatBinary,
		},
		Cache:   Cache{URL: "file"},
		Server:  Server{Addr: DefaultAddr, MaxBodyBytes: 32 << 20},
		Tracing: Tracing{Service: DefaultServiceName},
	}
	f.Pipeline.SetDefaults()
	f.Pipeline.Logger = nil
	return f
}

// Load builds the configuration from defaults, the TOML file at path and
// the environment. An empty path uses DefaultPath and tolerates a missing
// file; an explicit path must exist.
func Load(path string) (*File, error) {
	f := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &f); err != nil {
			switch {
			case os.IsNotExist(err) && !explicit:
			case os.IsNotExist(err):
				return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
			default:
				return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
			}
		}
	}

	if err := env.ParseWithOptions(&f, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse env")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the non-pipeline sections and the pipeline options.
func (f *File) Validate() error {
	if !pkgio.ValidFormats[f.Output.Format] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid output format: %q (must be one of: bin, text)", f.Output.Format)
	}
	for _, ext := range f.Source.Extensions {
		if err := errors.ValidateExtension(ext); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "source.extensions")
		}
	}
	if f.Server.MaxBodyBytes < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.max_body_bytes must be >= 0")
	}
	opts := f.Pipeline
	return opts.ValidateAndSetDefaults()
}

// Write emits f as TOML, preceded by a short header.
func Write(w io.Writer, f File) error {
	if _, err := fmt.Fprintf(w, "# catbits configuration\n# Environment variables (%s*) override these values.\n\n", EnvPrefix); err != nil {
		return err
	}
	return toml.NewEncoder(w).Encode(f)
}

// DefaultPath returns the config file location using the XDG standard
// (~/.config/catbits/config.toml), or "" if no home directory is known.
func DefaultPath() string {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.toml")
}

// CacheDir returns the cache directory (~/.cache/catbits/).
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// DataDir returns the data directory (~/.local/share/catbits/).
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(envVar, fallback string) (string, error) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}
