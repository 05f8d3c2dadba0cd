package life

import (
	"errors"
	"fmt"

	"gpulife/internal/core"
	"gpulife/internal/gpu"
)

// uniformSize is the byte size of the vec2<f32> grid uniform.
const uniformSize = 8

// GridState owns the grid uniform and the two cell buffers. Buffer 0 is
// seeded at creation; buffer 1 is only ever written by the compute stage.
type GridState struct {
	size    core.Size
	uniform gpu.Buffer
	cells   [2]gpu.Buffer
}

// Seed returns the initial generation: one independent Bernoulli draw per
// cell in index order. The same rng state yields the same cells.
func Seed(size core.Size, seedProbability float64, rng *core.RNG) []uint32 {
	cells := make([]uint32, size.Cells())
	rng.FillBernoulli(cells, seedProbability)
	return cells
}

// NewGridState validates the grid, allocates its buffers and uploads the
// uniform and the seeded generation. Nothing is allocated when validation
// fails, and everything allocated is released when a later step fails.
func NewGridState(ctx *gpu.Context, size core.Size, seedProbability float64, rng *core.RNG) (*GridState, error) {
	if err := core.ValidateGrid(size, seedProbability); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, &core.ConfigurationError{Field: "seed", Value: nil, Reason: "no random source"}
	}

	g := &GridState{size: size}
	var err error
	g.uniform, err = createBuffer(ctx.Device, &gpu.BufferDescriptor{
		Label: "grid uniforms",
		Size:  uniformSize,
		Usage: gpu.BufferUsageUniform | gpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	for i, label := range [2]string{"cell state A", "cell state B"} {
		g.cells[i], err = createBuffer(ctx.Device, &gpu.BufferDescriptor{
			Label: label,
			Size:  uint64(4 * size.Cells()),
			Usage: gpu.BufferUsageStorage | gpu.BufferUsageCopyDst | gpu.BufferUsageCopySrc,
		})
		if err != nil {
			g.Release()
			return nil, err
		}
	}

	q := ctx.Queue
	if err := q.WriteBuffer(g.uniform, 0, gpu.EncodeFloats([]float32{float32(size.W), float32(size.H)})); err != nil {
		g.Release()
		return nil, fmt.Errorf("upload grid uniform: %w", err)
	}
	if err := q.WriteBuffer(g.cells[0], 0, gpu.EncodeWords(Seed(size, seedProbability, rng))); err != nil {
		g.Release()
		return nil, fmt.Errorf("upload seed: %w", err)
	}
	return g, nil
}

func createBuffer(dev gpu.Device, desc *gpu.BufferDescriptor) (gpu.Buffer, error) {
	buf, err := dev.CreateBuffer(desc)
	if err != nil {
		if errors.Is(err, gpu.ErrResourceCreation) {
			return nil, err
		}
		return nil, gpu.NewResourceError("buffer", desc.Label, err)
	}
	return buf, nil
}

// Size returns the grid dimensions.
func (g *GridState) Size() core.Size { return g.size }

// CellCount returns W*H.
func (g *GridState) CellCount() int { return g.size.Cells() }

// Uniform returns the grid uniform buffer.
func (g *GridState) Uniform() gpu.Buffer { return g.uniform }

// Buffer returns cell buffer i, where i is 0 or 1.
func (g *GridState) Buffer(i int) gpu.Buffer { return g.cells[i&1] }

// Release frees every buffer. It is safe to call more than once.
func (g *GridState) Release() {
	for i, b := range g.cells {
		if b != nil {
			b.Release()
			g.cells[i] = nil
		}
	}
	if g.uniform != nil {
		g.uniform.Release()
		g.uniform = nil
	}
}
