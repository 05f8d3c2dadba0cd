package life

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"gpulife/internal/core"
	"gpulife/internal/gpu"
	"gpulife/internal/metrics"
)

// ErrTickInProgress is returned by RunTick when another call is still
// encoding a tick.
var ErrTickInProgress = errors.New("life: tick already in progress")

// State is the scheduler lifecycle state.
type State int32

const (
	Idle State = iota
	TickInFlight
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TickInFlight:
		return "tick in flight"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// TickHook runs after every submitted tick of Run.
type TickHook func(tick uint64, sub *gpu.Submission) error

// Scheduler owns the tick counter and records one compute pass and one
// render pass per tick into a single submission.
type Scheduler struct {
	ctx      *gpu.Context
	compute  *ComputeStage
	render   *RenderStage
	bindings *BindingSet
	metrics  *metrics.Ticks
	log      *zap.Logger

	encoding atomic.Bool
	tick     atomic.Uint64

	mu   sync.Mutex
	last *gpu.Submission
}

// NewScheduler wires the stages together. m may be nil.
func NewScheduler(ctx *gpu.Context, compute *ComputeStage, render *RenderStage, bindings *BindingSet, m *metrics.Ticks) *Scheduler {
	if m == nil {
		m = metrics.NewTicks()
	}
	log := ctx.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		ctx:      ctx,
		compute:  compute,
		render:   render,
		bindings: bindings,
		metrics:  m,
		log:      log.Named("scheduler"),
	}
}

// Tick returns the number of ticks submitted so far.
func (s *Scheduler) Tick() uint64 { return s.tick.Load() }

// Parity returns the index of the authoritative cell buffer.
func (s *Scheduler) Parity() uint64 { return s.tick.Load() % 2 }

// State reports TickInFlight while a tick is being encoded or its
// submission has not completed.
func (s *Scheduler) State() State {
	if s.encoding.Load() {
		return TickInFlight
	}
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil && !last.Finished() {
		return TickInFlight
	}
	return Idle
}

// RunTick encodes and submits one tick without waiting for the device.
// The compute pass reads configuration[parity], the render pass draws
// configuration[parity+1], so the frame shows the generation just computed.
// The tick counter advances only once the work is queued.
func (s *Scheduler) RunTick() (*gpu.Submission, error) {
	if !s.encoding.CompareAndSwap(false, true) {
		return nil, ErrTickInProgress
	}
	defer s.encoding.Store(false)

	start := time.Now()
	tick := s.tick.Load()
	enc, err := s.ctx.Device.CreateCommandEncoder(fmt.Sprintf("tick %d", tick))
	if err != nil {
		s.metrics.ObserveFailure("encode")
		return nil, fmt.Errorf("tick %d: %w", tick, err)
	}

	s.compute.Encode(enc, s.bindings.For(tick))
	next := tick + 1
	s.render.Encode(enc, s.ctx.Surface, s.bindings.For(next))

	cmd, err := enc.Finish()
	if err != nil {
		s.metrics.ObserveFailure("finish")
		return nil, fmt.Errorf("tick %d: %w", tick, err)
	}
	sub, err := s.ctx.Queue.Submit(cmd)
	if err != nil {
		s.metrics.ObserveFailure("submit")
		return nil, fmt.Errorf("tick %d: %w", tick, err)
	}

	s.tick.Store(next)
	s.mu.Lock()
	s.last = sub
	s.mu.Unlock()

	took := time.Since(start)
	s.metrics.ObserveSubmit(took, next)
	sub.OnComplete(func(error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.last == sub {
			s.metrics.ObserveComplete()
		}
	})
	s.log.Debug("tick submitted",
		zap.Uint64("tick", next),
		zap.Uint64("parity", next%2),
		zap.Duration("encode", took),
	)
	return sub, nil
}

// Wait blocks until the last submitted tick has completed on the device.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return nil
	}
	return last.Wait(ctx)
}

// Run ticks every interval until ctx is done, then waits for the tick in
// flight. It returns nil on cancellation and the first tick error otherwise.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	return s.RunWith(ctx, interval, nil)
}

// RunWith is Run with a hook called after each submitted tick. A hook error
// stops the loop and is returned.
func (s *Scheduler) RunWith(ctx context.Context, interval time.Duration, hook TickHook) error {
	if interval <= 0 {
		interval = core.DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Wait(context.Background())
		case <-ticker.C:
			sub, err := s.RunTick()
			if errors.Is(err, ErrTickInProgress) {
				continue
			}
			if err != nil {
				_ = s.Wait(context.Background())
				return err
			}
			if hook != nil {
				if err := hook(s.Tick(), sub); err != nil {
					_ = s.Wait(context.Background())
					return err
				}
			}
		}
	}
}
