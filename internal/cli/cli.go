package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/graphstate/pkg/buildinfo"
	"github.com/matzehuels/graphstate/pkg/cache"
	"github.com/matzehuels/graphstate/pkg/graph"
	"github.com/matzehuels/graphstate/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "graphstate"
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

	configPath string
	verbose    bool
	metrics    bool

	config *Config
	hooks  *logHooks
	meter  *metricsReader
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
		Use:   appName,
		Short: "Graphstate splits object graphs into structure and state",
		Long: `Graphstate loads object graphs described in TOML, flattens them into a
graph definition and a flat state, and merges them back with aliasing and
cycles intact.`,
		Version:            buildinfo.Version,
		SilenceUsage:       true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default graphstate.toml)")
	root.PersistentFlags().BoolVar(&c.metrics, "metrics", false, "print engine metrics after the command")

	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.fingerprintCommand())
	root.AddCommand(c.roundtripCommand())
	root.AddCommand(c.dotCommand())
	root.AddCommand(c.encodeCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration, applies the log level and registers the
// observability hooks before any command runs.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.config = cfg

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.verbose {
		level = log.DebugLevel
	}
	c.SetLogLevel(level)

	c.hooks = newLogHooks(c.Logger)
	var h hooks = c.hooks
	if c.metrics || cfg.Metrics {
		meter, otel, err := newMetricsReader()
		if err != nil {
			return err
		}
		c.meter = meter
		h = teeHooks{c.hooks, otel}
	}
	observability.SetGraphHooks(h)
	observability.SetCacheHooks(h)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	return nil
}

func (c *CLI) teardown(cmd *cobra.Command, _ []string) error {
	if c.meter == nil {
		return nil
	}
	defer func() { c.meter = nil }()
	return c.meter.print(cmd.Context())
}

// =============================================================================
// Cache Factory
// =============================================================================

// newDefCache creates the graph definition cache selected by the config.
// The returned cache must be closed by the caller.
func (c *CLI) newDefCache(ctx context.Context) (*graph.DefCache, cache.Cache, error) {
	backend, err := newCache(ctx, c.config)
	if err != nil {
		return nil, nil, err
	}
	var keyer cache.Keyer
	if c.config.Cache.Scope != "" {
		keyer = cache.NewScopedKeyer(cache.NewDefaultKeyer(), c.config.Cache.Scope)
	}
	loggerFromContext(ctx).Debug("cache", "backend", c.config.Cache.Backend, "scope", c.config.Cache.Scope)
	return graph.NewDefCache(backend, keyer, c.config.Cache.TTL), backend, nil
}

func newCache(ctx context.Context, cfg *Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case backendNone:
		return cache.NewNullCache(), nil
	case backendMemory:
		return cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL), nil
	case backendFile:
		dir, err := cfg.cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return cache.NewFileCache(dir)
	case backendRedis:
		rc := cache.DefaultRedisConfig()
		rc.Addr = cfg.Redis.Addr
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		if cfg.Cache.TTL > 0 {
			rc.DefaultTTL = cfg.Cache.TTL
		}
		return cache.NewRedisCache(ctx, rc)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/graphstate/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory using XDG standard (~/.config/graphstate/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
