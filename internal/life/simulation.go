package life

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gpulife/internal/core"
	"gpulife/internal/gpu"
	"gpulife/internal/metrics"
	"gpulife/internal/shader"
)

// Defaults for Options.
const (
	DefaultWidth           = 32
	DefaultHeight          = 32
	DefaultSeedProbability = 0.4
	DefaultSeed            = 42
)

// Options configure a Simulation.
type Options struct {
	Size            core.Size
	SeedProbability float64
	Seed            int64
	TileSize        uint32
	Interval        time.Duration

	// ShaderDir overrides the embedded WGSL programs.
	ShaderDir string

	// Metrics receives tick metrics; a private registry is used when nil.
	Metrics *metrics.Ticks
}

// DefaultOptions returns a 32x32 grid seeded with density 0.4.
func DefaultOptions() Options {
	return Options{
		Size:            core.Size{W: DefaultWidth, H: DefaultHeight},
		SeedProbability: DefaultSeedProbability,
		Seed:            DefaultSeed,
		TileSize:        shader.DefaultTileSize,
		Interval:        core.DefaultInterval,
	}
}

// Validate reports the first invalid option.
func (o Options) Validate() error {
	if err := core.ValidateGrid(o.Size, o.SeedProbability); err != nil {
		return err
	}
	if o.TileSize < 1 || o.TileSize > shader.MaxTileSize {
		return &core.ConfigurationError{Field: "tile_size", Value: o.TileSize, Reason: fmt.Sprintf("must be within [1,%d]", shader.MaxTileSize)}
	}
	if o.Interval < 0 {
		return &core.ConfigurationError{Field: "interval", Value: o.Interval, Reason: "must not be negative"}
	}
	return nil
}

// Simulation is the assembled pipeline: grid state, shared layout, both
// binding configurations, both stages and the scheduler.
type Simulation struct {
	ctx  *gpu.Context
	opts Options
	log  *zap.Logger

	state    *GridState
	layout   gpu.BindGroupLayout
	bindings *BindingSet
	compute  *ComputeStage
	render   *RenderStage
	sched    *Scheduler
	metrics  *metrics.Ticks
}

// New validates opts, loads the programs and creates every device resource.
// On failure everything created so far is released.
func New(ctx *gpu.Context, opts Options) (*Simulation, error) {
	if opts.TileSize == 0 {
		opts.TileSize = shader.DefaultTileSize
	}
	if opts.Interval == 0 {
		opts.Interval = core.DefaultInterval
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := ctx.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewTicks()
	}

	if info := ctx.Device.Info(); opts.ShaderDir != "" && info.HostKernels {
		log.Warn("shader directory is validated but not executed by this backend",
			zap.String("shader_dir", opts.ShaderDir),
			zap.String("backend", info.Backend),
		)
	}
	loader := shader.NewLoader(opts.ShaderDir)
	params := shader.Params{TileSize: opts.TileSize}
	lifeProgram, err := loader.Load(shader.Life, params)
	if err != nil {
		return nil, err
	}
	cellsProgram, err := loader.Load(shader.Cells, params)
	if err != nil {
		return nil, err
	}

	s := &Simulation{ctx: ctx, opts: opts, log: log, metrics: opts.Metrics}
	if s.state, err = NewGridState(ctx, opts.Size, opts.SeedProbability, core.NewRNG(opts.Seed)); err != nil {
		return nil, err
	}
	if s.layout, err = NewLayout(ctx.Device); err != nil {
		s.release()
		return nil, err
	}
	if s.bindings, err = NewBindingSet(ctx.Device, s.layout, s.state); err != nil {
		s.release()
		return nil, err
	}
	if s.compute, err = NewComputeStage(ctx.Device, s.layout, lifeProgram, opts.Size); err != nil {
		s.release()
		return nil, err
	}
	if s.render, err = NewRenderStage(ctx, s.layout, cellsProgram, opts.Size); err != nil {
		s.release()
		return nil, err
	}
	s.sched = NewScheduler(ctx, s.compute, s.render, s.bindings, s.metrics)

	wx, wy := s.compute.Workgroups()
	log.Info("simulation ready",
		zap.Stringer("grid", opts.Size),
		zap.Float64("seed_probability", opts.SeedProbability),
		zap.Int64("seed", opts.Seed),
		zap.Uint32("tile_size", opts.TileSize),
		zap.Uint32("workgroups_x", wx),
		zap.Uint32("workgroups_y", wy),
	)
	return s, nil
}

// Scheduler returns the tick scheduler.
func (s *Simulation) Scheduler() *Scheduler { return s.sched }

// State returns the grid state.
func (s *Simulation) State() *GridState { return s.state }

// Metrics returns the tick collectors.
func (s *Simulation) Metrics() *metrics.Ticks { return s.metrics }

// Context returns the device context the simulation was built on.
func (s *Simulation) Context() *gpu.Context { return s.ctx }

// Options returns the effective options.
func (s *Simulation) Options() Options { return s.opts }

// Cells reads the authoritative generation back from the device. It waits
// for all submitted work and is meant for diagnostics and tests.
func (s *Simulation) Cells(ctx context.Context) ([]uint32, error) {
	if err := s.sched.Wait(ctx); err != nil {
		return nil, err
	}
	return gpu.ReadWords(ctx, s.ctx.Device, s.state.Buffer(int(s.sched.Parity())))
}

// Parameters describes the simulation for display.
func (s *Simulation) Parameters() core.ParameterSnapshot {
	info := s.ctx.Device.Info()
	wx, wy := s.compute.Workgroups()
	return core.ParameterSnapshot{Groups: []core.ParameterGroup{
		{
			Name: "Grid",
			Params: []core.Parameter{
				{Key: "width", Label: "Width", Type: core.ParamTypeInt, Value: strconv.Itoa(s.opts.Size.W)},
				{Key: "height", Label: "Height", Type: core.ParamTypeInt, Value: strconv.Itoa(s.opts.Size.H)},
				{Key: "seed_probability", Label: "Seed density", Type: core.ParamTypeFloat, Value: strconv.FormatFloat(s.opts.SeedProbability, 'g', -1, 64)},
				{Key: "seed", Label: "Seed", Type: core.ParamTypeInt, Value: strconv.FormatInt(s.opts.Seed, 10)},
			},
		},
		{
			Name: "Device",
			Params: []core.Parameter{
				{Key: "backend", Label: "Backend", Type: core.ParamTypeString, Value: info.Backend},
				{Key: "adapter", Label: "Adapter", Type: core.ParamTypeString, Value: info.Name},
				{Key: "tile_size", Label: "Tile", Type: core.ParamTypeInt, Value: strconv.FormatUint(uint64(s.opts.TileSize), 10)},
				{Key: "workgroups", Label: "Workgroups", Type: core.ParamTypeString, Value: fmt.Sprintf("%dx%d", wx, wy)},
			},
		},
		{
			Name: "Schedule",
			Params: []core.Parameter{
				{Key: "interval", Label: "Interval", Type: core.ParamTypeDuration, Value: s.opts.Interval.String()},
				{Key: "tick", Label: "Tick", Type: core.ParamTypeInt, Value: strconv.FormatUint(s.sched.Tick(), 10)},
				{Key: "parity", Label: "Parity", Type: core.ParamTypeInt, Value: strconv.FormatUint(s.sched.Parity(), 10)},
				{Key: "state", Label: "State", Type: core.ParamTypeString, Value: s.sched.State().String()},
			},
		},
	}}
}

// Close waits for submitted work and releases everything in reverse order of
// creation. The device itself belongs to the caller.
func (s *Simulation) Close() error {
	err := s.sched.Wait(context.Background())
	if err != nil {
		s.log.Warn("last tick failed", zap.Error(err))
	}
	s.release()
	return err
}

func (s *Simulation) release() {
	if s.render != nil {
		s.render.Release()
		s.render = nil
	}
	if s.compute != nil {
		s.compute.Release()
		s.compute = nil
	}
	if s.bindings != nil {
		s.bindings.Release()
		s.bindings = nil
	}
	if s.layout != nil {
		s.layout.Release()
		s.layout = nil
	}
	if s.state != nil {
		s.state.Release()
		s.state = nil
	}
}
