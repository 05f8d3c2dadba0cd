package life

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpulife/internal/core"
	"gpulife/internal/gpu"
)

func TestSeedIsDeterministic(t *testing.T) {
	size := core.Size{W: 16, H: 9}
	a := Seed(size, 0.4, core.NewRNG(42))
	b := Seed(size, 0.4, core.NewRNG(42))
	assert.Equal(t, a, b)
	assert.Len(t, a, size.Cells())

	c := Seed(size, 0.4, core.NewRNG(43))
	assert.NotEqual(t, a, c)
}

func TestSeedExtremes(t *testing.T) {
	size := core.Size{W: 4, H: 4}
	for _, v := range Seed(size, 0, core.NewRNG(1)) {
		assert.Equal(t, uint32(0), v)
	}
	for _, v := range Seed(size, 1, core.NewRNG(1)) {
		assert.Equal(t, uint32(1), v)
	}
}

func TestNewGridStateUploads(t *testing.T) {
	ctx := newContext(t, 8)
	size := core.Size{W: 6, H: 5}
	g, err := NewGridState(ctx, size, 0.5, core.NewRNG(9))
	require.NoError(t, err)
	defer g.Release()

	assert.Equal(t, size, g.Size())
	assert.Equal(t, 30, g.CellCount())
	assert.Equal(t, uint64(8), g.Uniform().Size())
	for i := 0; i < 2; i++ {
		assert.Equal(t, uint64(4*30), g.Buffer(i).Size())
		assert.True(t, g.Buffer(i).Usage().Has(gpu.BufferUsageStorage|gpu.BufferUsageCopyDst|gpu.BufferUsageCopySrc))
	}
	assert.NotSame(t, g.Buffer(0), g.Buffer(1))

	got, err := gpu.ReadWords(context.Background(), ctx.Device, g.Buffer(0))
	require.NoError(t, err)
	assert.Equal(t, Seed(size, 0.5, core.NewRNG(9)), got)
}

func TestNewGridStateRejectsConfiguration(t *testing.T) {
	cases := []struct {
		name  string
		size  core.Size
		p     float64
		field string
	}{
		{"zero width", core.Size{W: 0, H: 4}, 0.5, "width"},
		{"negative height", core.Size{W: 4, H: -1}, 0.5, "height"},
		{"probability above one", core.Size{W: 4, H: 4}, 1.5, "seed_probability"},
		{"negative probability", core.Size{W: 4, H: 4}, -0.1, "seed_probability"},
		{"nan probability", core.Size{W: 4, H: 4}, math.NaN(), "seed_probability"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := newContext(t, 8)
			dev := &faultyDevice{Device: base.Device}
			ctx := gpu.NewContext(dev, nil)

			_, err := NewGridState(ctx, tc.size, tc.p, core.NewRNG(1))
			require.ErrorIs(t, err, core.ErrConfiguration)
			var cfgErr *core.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
			assert.Zero(t, dev.calls, "no device call before validation")
		})
	}
}

func TestNewGridStateReleasesOnPartialFailure(t *testing.T) {
	for failAt := 1; failAt <= 3; failAt++ {
		base := newContext(t, 8)
		dev := &faultyDevice{Device: base.Device, failBufferAt: failAt}
		ctx := gpu.NewContext(dev, nil)

		g, err := NewGridState(ctx, core.Size{W: 4, H: 4}, 0.5, core.NewRNG(1))
		require.Nil(t, g)
		require.ErrorIs(t, err, gpu.ErrResourceCreation, "failing buffer %d", failAt)
		require.Len(t, dev.buffers, failAt-1)
		for _, b := range dev.buffers {
			assert.True(t, b.released, "buffer %q leaked", b.Label())
		}
	}
}

func TestGridStateReleaseIsIdempotent(t *testing.T) {
	ctx := newContext(t, 8)
	g, err := NewGridState(ctx, core.Size{W: 2, H: 2}, 0.5, core.NewRNG(1))
	require.NoError(t, err)
	g.Release()
	g.Release()
	assert.Nil(t, g.Uniform())
}
