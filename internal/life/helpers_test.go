package life

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gpulife/internal/core"
	"gpulife/internal/gpu"
	"gpulife/internal/gpu/software"
)

func newContext(t *testing.T, surface int) *gpu.Context {
	t.Helper()
	dev := software.New(gpu.Options{SurfaceWidth: surface, SurfaceHeight: surface, Workers: 4})
	t.Cleanup(dev.Release)
	return gpu.NewContext(dev, nil)
}

func newSimulation(t *testing.T, ctx *gpu.Context, opts Options) *Simulation {
	t.Helper()
	sim, err := New(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sim.Close() })
	return sim
}

// setCells overwrites the authoritative buffer with a pattern.
func setCells(t *testing.T, sim *Simulation, cells []uint32) {
	t.Helper()
	buf := sim.State().Buffer(int(sim.Scheduler().Parity()))
	require.NoError(t, sim.Context().Queue.WriteBuffer(buf, 0, gpu.EncodeWords(cells)))
}

func pattern(size core.Size, active ...[2]int) []uint32 {
	cells := make([]uint32, size.Cells())
	for _, c := range active {
		cells[size.Index(c[0], c[1])] = 1
	}
	return cells
}

func tick(t *testing.T, sim *Simulation) {
	t.Helper()
	sub, err := sim.Scheduler().RunTick()
	require.NoError(t, err)
	require.NoError(t, sub.Wait(context.Background()))
}

func readCells(t *testing.T, sim *Simulation) []uint32 {
	t.Helper()
	cells, err := sim.Cells(context.Background())
	require.NoError(t, err)
	return cells
}

// faultyDevice fails the n-th buffer creation and records every buffer it
// hands out.
type faultyDevice struct {
	gpu.Device
	failBufferAt int
	calls        int
	buffers      []*trackedBuffer
}

type trackedBuffer struct {
	gpu.Buffer
	released bool
}

func (b *trackedBuffer) Release() {
	b.released = true
	b.Buffer.Release()
}

func (d *faultyDevice) CreateBuffer(desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	d.calls++
	if d.calls == d.failBufferAt {
		return nil, errors.New("out of device memory")
	}
	b, err := d.Device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	tb := &trackedBuffer{Buffer: b}
	d.buffers = append(d.buffers, tb)
	return tb, nil
}

// faultyQueue rejects submissions.
type faultyQueue struct {
	gpu.Queue
}

func (faultyQueue) Submit(...gpu.CommandBuffer) (*gpu.Submission, error) {
	return nil, errors.New("device lost")
}
