package core

import "strconv"

// Size describes the dimensions of a simulation grid. It is fixed for the
// lifetime of a simulation.
type Size struct {
	W int
	H int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.W > 0 && s.H > 0 }

// Cells returns the number of cells in the grid.
func (s Size) Cells() int { return s.W * s.H }

// Index returns the row-major slice index for coordinates (x, y).
func (s Size) Index(x, y int) int { return y*s.W + x }

// Coord is the inverse of Index.
func (s Size) Coord(i int) (int, int) { return i % s.W, i / s.W }

// Wrap applies toroidal wrapping to the provided coordinates.
func (s Size) Wrap(x, y int) (int, int) {
	x = (x%s.W + s.W) % s.W
	y = (y%s.H + s.H) % s.H
	return x, y
}

func (s Size) String() string {
	return strconv.Itoa(s.W) + "x" + strconv.Itoa(s.H)
}
