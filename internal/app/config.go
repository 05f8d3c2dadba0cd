package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"gpulife/internal/core"
	"gpulife/internal/gpu"
	"gpulife/internal/gpu/software"
	"gpulife/internal/life"
	"gpulife/internal/logging"
	"gpulife/internal/shader"
)

// Config represents the command-line parameters for the application. Values
// come from the defaults, then the optional YAML file, then explicit flags.
type Config struct {
	ConfigFile string `yaml:"-"`

	Width           int           `yaml:"width"`
	Height          int           `yaml:"height"`
	SeedProbability float64       `yaml:"seed_probability"`
	Seed            int64         `yaml:"seed"`
	Interval        time.Duration `yaml:"interval"`
	TileSize        uint          `yaml:"tile_size"`

	Backend     string `yaml:"backend"`
	SurfaceSize int    `yaml:"surface_size"`
	Workers     int    `yaml:"workers"`
	ShaderDir   string `yaml:"shader_dir"`

	Scale    int `yaml:"scale"`
	HUDWidth int `yaml:"hud_width"`

	LogLevel    string `yaml:"log_level"`
	LogConsole  bool   `yaml:"log_console"`
	MetricsAddr string `yaml:"metrics_addr"`

	SnapshotDir   string `yaml:"snapshot_dir"`
	SnapshotEvery uint64 `yaml:"snapshot_every"`
	MaxTicks      uint64 `yaml:"max_ticks"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Width:           life.DefaultWidth,
		Height:          life.DefaultHeight,
		SeedProbability: life.DefaultSeedProbability,
		Seed:            life.DefaultSeed,
		Interval:        core.DefaultInterval,
		TileSize:        shader.DefaultTileSize,
		Backend:         software.Backend,
		SurfaceSize:     gpu.DefaultSurfaceSize,
		Scale:           1,
		HUDWidth:        220,
		LogLevel:        "info",
	}
}

// Bind attaches the configuration to the provided FlagSet.
func (c *Config) Bind(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "YAML file with default settings")
	fs.IntVar(&c.Width, "width", c.Width, "grid width in cells")
	fs.IntVar(&c.Height, "height", c.Height, "grid height in cells")
	fs.Float64Var(&c.SeedProbability, "density", c.SeedProbability, "probability a cell starts active")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "random seed for the initial generation")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "time between ticks")
	fs.UintVar(&c.TileSize, "tile", c.TileSize, "compute workgroup edge length (1-16)")
	fs.StringVar(&c.Backend, "backend", c.Backend, "device backend")
	fs.IntVar(&c.SurfaceSize, "surface", c.SurfaceSize, "surface edge length in pixels")
	fs.IntVar(&c.Workers, "workers", c.Workers, "host workers for the software backend (0 = GOMAXPROCS)")
	fs.StringVar(&c.ShaderDir, "shader-dir", c.ShaderDir, "directory overriding the embedded WGSL programs (executed by the wgpu backend only)")
	fs.IntVar(&c.Scale, "scale", c.Scale, "window or snapshot pixel scale multiplier")
	fs.IntVar(&c.HUDWidth, "hud", c.HUDWidth, "side panel width in pixels (0 hides it)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&c.LogConsole, "log-console", c.LogConsole, "human readable log output")
	fs.StringVar(&c.MetricsAddr, "metrics", c.MetricsAddr, "address serving /metrics (empty disables)")
	fs.StringVar(&c.SnapshotDir, "snapshots", c.SnapshotDir, "directory for PNG frame snapshots")
	fs.Uint64Var(&c.SnapshotEvery, "snapshot-every", c.SnapshotEvery, "write a snapshot every N ticks (0 disables)")
	fs.Uint64Var(&c.MaxTicks, "ticks", c.MaxTicks, "stop after N ticks (0 runs until interrupted)")
}

// LoadFile overlays the values present in a YAML file.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Parse builds a Config from defaults, the -config file and args. Flags given
// on the command line win over the file.
func Parse(name string, args []string) (*Config, error) {
	c := NewConfig()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c.Bind(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.ConfigFile != "" {
		if err := c.LoadFile(c.ConfigFile); err != nil {
			return nil, err
		}
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}
	return c, c.Validate()
}

// Validate reports the first invalid option as a *core.ConfigurationError.
func (c *Config) Validate() error {
	// Range check ahead of the uint32 conversion in SimulationOptions.
	if c.TileSize > shader.MaxTileSize {
		return &core.ConfigurationError{Field: "tile_size", Value: c.TileSize, Reason: fmt.Sprintf("must be within [1,%d]", shader.MaxTileSize)}
	}
	if err := c.SimulationOptions().Validate(); err != nil {
		return err
	}
	switch {
	case c.Backend == "":
		return &core.ConfigurationError{Field: "backend", Value: c.Backend, Reason: "must name a backend"}
	case c.SurfaceSize <= 0:
		return &core.ConfigurationError{Field: "surface_size", Value: c.SurfaceSize, Reason: "must be positive"}
	case c.Scale <= 0:
		return &core.ConfigurationError{Field: "scale", Value: c.Scale, Reason: "must be positive"}
	case c.Workers < 0:
		return &core.ConfigurationError{Field: "workers", Value: c.Workers, Reason: "must not be negative"}
	case c.SnapshotEvery > 0 && c.SnapshotDir == "":
		return &core.ConfigurationError{Field: "snapshot_dir", Value: c.SnapshotDir, Reason: "required when snapshot_every is set"}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return &core.ConfigurationError{Field: "log_level", Value: c.LogLevel, Reason: err.Error()}
	}
	return nil
}

// SimulationOptions maps the config onto life.Options.
func (c *Config) SimulationOptions() life.Options {
	return life.Options{
		Size:            core.Size{W: c.Width, H: c.Height},
		SeedProbability: c.SeedProbability,
		Seed:            c.Seed,
		TileSize:        uint32(c.TileSize),
		Interval:        c.Interval,
		ShaderDir:       c.ShaderDir,
	}
}

// DeviceOptions maps the config onto gpu.Options.
func (c *Config) DeviceOptions(log *zap.Logger) gpu.Options {
	return gpu.Options{
		SurfaceWidth:  c.SurfaceSize,
		SurfaceHeight: c.SurfaceSize,
		Workers:       c.Workers,
		Logger:        log,
	}
}

// Logger builds the zap logger for the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	return logging.New(logging.Config{Level: c.LogLevel, Development: c.LogConsole})
}

// IsHelp reports whether err is the flag package's -h response.
func IsHelp(err error) bool { return errors.Is(err, flag.ErrHelp) }
