// Package life runs Conway's Game of Life on a gpu device.
//
// The grid lives in two device buffers that swap roles every tick. A compute
// stage derives the next generation from the current one, a render stage
// draws one quad per cell from the freshly written buffer, and the scheduler
// records both into a single submission so cell state never returns to the
// host.
package life

import "gpulife/internal/core"

// Next returns the state of a cell in the following generation. Exactly two
// active neighbours keep the current state, three activate the cell and any
// other count deactivates it.
func Next(state, neighbors uint32) uint32 {
	switch neighbors {
	case 2:
		return state
	case 3:
		return 1
	default:
		return 0
	}
}

// neighborhood lists the Moore offsets in the order life.wgsl sums them.
var neighborhood = [8][2]int{
	{1, 1}, {1, 0}, {1, -1}, {0, -1},
	{-1, -1}, {-1, 0}, {-1, 1}, {0, 1},
}

// Neighbors sums the eight toroidal neighbours of (x, y). On grids smaller
// than 3x3 several offsets wrap onto the same cell and each one is counted.
func Neighbors(cells []uint32, size core.Size, x, y int) uint32 {
	var n uint32
	for _, d := range neighborhood {
		nx, ny := size.Wrap(x+d[0], y+d[1])
		n += cells[size.Index(nx, ny)]
	}
	return n
}

// Step writes the generation following in into out.
func Step(in, out []uint32, size core.Size) {
	for y := 0; y < size.H; y++ {
		for x := 0; x < size.W; x++ {
			i := size.Index(x, y)
			out[i] = Next(in[i], Neighbors(in, size, x, y))
		}
	}
}
