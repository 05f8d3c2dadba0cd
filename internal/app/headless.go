package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gpulife/internal/gpu"
	"gpulife/internal/life"
	"gpulife/internal/metrics"
	"gpulife/internal/render"
)

var errTickLimit = errors.New("tick limit reached")

// Headless runs the simulation without a window. Frames can be written as PNG
// snapshots and tick metrics served over HTTP.
type Headless struct {
	cfg *Config
	log *zap.Logger

	sim       *life.Simulation
	snapshots render.SnapshotWriter
}

// NewHeadless opens the configured backend and assembles the simulation.
func NewHeadless(cfg *Config, log *zap.Logger) (*Headless, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dev, err := gpu.Open(cfg.Backend, cfg.DeviceOptions(log))
	if err != nil {
		return nil, err
	}
	opts := cfg.SimulationOptions()
	opts.Metrics = metrics.NewTicks()
	sim, err := life.New(dev, opts)
	if err != nil {
		dev.Release()
		return nil, err
	}
	return &Headless{
		cfg:       cfg,
		log:       log,
		sim:       sim,
		snapshots: render.SnapshotWriter{Dir: cfg.SnapshotDir, Scale: cfg.Scale},
	}, nil
}

// Simulation exposes the assembled pipeline.
func (h *Headless) Simulation() *life.Simulation { return h.sim }

// Run ticks until ctx is done or the tick limit is reached. The metrics
// endpoint, when configured, lives as long as the loop.
func (h *Headless) Run(ctx context.Context) error {
	loopCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(loopCtx)

	if h.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", h.sim.Metrics().Handler())
		srv := &http.Server{Addr: h.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			h.log.Info("serving metrics", zap.String("addr", h.cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(shutdown)
		})
	}

	g.Go(func() error {
		defer stop()
		err := h.sim.Scheduler().RunWith(gctx, h.cfg.Interval, h.afterTick(gctx))
		if errors.Is(err, errTickLimit) {
			return nil
		}
		return err
	})

	err := g.Wait()
	h.log.Info("headless run finished", zap.Uint64("tick", h.sim.Scheduler().Tick()), zap.Error(err))
	return err
}

func (h *Headless) afterTick(ctx context.Context) life.TickHook {
	return func(tick uint64, sub *gpu.Submission) error {
		if h.cfg.SnapshotEvery > 0 && tick%h.cfg.SnapshotEvery == 0 {
			if err := h.snapshot(ctx, tick, sub); err != nil {
				return err
			}
		}
		if h.cfg.MaxTicks > 0 && tick >= h.cfg.MaxTicks {
			return errTickLimit
		}
		return nil
	}
}

func (h *Headless) snapshot(ctx context.Context, tick uint64, sub *gpu.Submission) error {
	if err := sub.Wait(ctx); err != nil {
		return err
	}
	frame, err := h.sim.Context().Surface.Frame()
	if err != nil {
		return err
	}
	path, err := h.snapshots.Write(tick, frame)
	if err != nil {
		return err
	}
	h.log.Debug("snapshot written", zap.Uint64("tick", tick), zap.String("path", path))
	return nil
}

// Close releases the simulation and its device.
func (h *Headless) Close() error {
	err := h.sim.Close()
	h.sim.Context().Release()
	return err
}
