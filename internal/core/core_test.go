package core

import (
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeWrap(t *testing.T) {
	s := Size{W: 5, H: 4}
	tests := []struct {
		x, y   int
		wx, wy int
	}{
		{-1, -1, 4, 3},
		{5, 4, 0, 0},
		{2, 2, 2, 2},
		{-6, 9, 4, 1},
	}
	for _, tt := range tests {
		x, y := s.Wrap(tt.x, tt.y)
		assert.Equal(t, tt.wx, x, "x for (%d,%d)", tt.x, tt.y)
		assert.Equal(t, tt.wy, y, "y for (%d,%d)", tt.x, tt.y)
	}
	assert.Equal(t, 13, s.Index(3, 2))
	x, y := s.Coord(13)
	assert.Equal(t, [2]int{3, 2}, [2]int{x, y})
}

func TestValidateGrid(t *testing.T) {
	tests := []struct {
		name  string
		size  Size
		p     float64
		field string
	}{
		{"zero width", Size{W: 0, H: 4}, 0.5, "width"},
		{"negative height", Size{W: 4, H: -1}, 0.5, "height"},
		{"probability above one", Size{W: 4, H: 4}, 1.5, "seed_probability"},
		{"negative probability", Size{W: 4, H: 4}, -0.1, "seed_probability"},
		{"nan probability", Size{W: 4, H: 4}, math.NaN(), "seed_probability"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGrid(tt.size, tt.p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
	assert.NoError(t, ValidateGrid(Size{W: 1, H: 1}, 0))
	assert.NoError(t, ValidateGrid(Size{W: 1, H: 1}, 1))
}

func TestFillBernoulliDeterministic(t *testing.T) {
	a := make([]uint32, 256)
	b := make([]uint32, 256)
	NewRNG(7).FillBernoulli(a, 0.4)
	NewRNG(7).FillBernoulli(b, 0.4)
	require.True(t, slices.Equal(a, b))

	NewRNG(7).FillBernoulli(a, 0)
	assert.NotContains(t, a, uint32(1))
	NewRNG(7).FillBernoulli(a, 1)
	assert.NotContains(t, a, uint32(0))
}

func TestFixedStepCadence(t *testing.T) {
	now := time.Unix(0, 0)
	fs := NewFixedStep(100 * time.Millisecond)
	fs.now = func() time.Time { return now }

	// The first poll fires immediately.
	require.True(t, fs.ShouldStep())
	now = now.Add(50 * time.Millisecond)
	require.False(t, fs.ShouldStep())
	now = now.Add(50 * time.Millisecond)
	require.True(t, fs.ShouldStep())

	// A long stall yields one tick per poll, not a burst.
	now = now.Add(time.Second)
	require.True(t, fs.ShouldStep())
	require.True(t, fs.ShouldStep())
	require.False(t, fs.ShouldStep())
}

func TestParameterLookup(t *testing.T) {
	snap := ParameterSnapshot{Groups: []ParameterGroup{
		{Name: "Grid", Params: []Parameter{{Key: "w", Value: "32"}}},
	}}
	p, ok := snap.Lookup("w")
	require.True(t, ok)
	assert.Equal(t, "32", p.Value)
	_, ok = snap.Lookup("missing")
	assert.False(t, ok)
}
