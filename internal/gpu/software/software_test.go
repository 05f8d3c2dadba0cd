package software

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpulife/internal/gpu"
	"gpulife/internal/shader"
)

func newDevice(t *testing.T) *Device {
	t.Helper()
	d := New(gpu.Options{SurfaceWidth: 8, SurfaceHeight: 8, Workers: 3})
	t.Cleanup(d.Release)
	return d
}

func storageBuffer(t *testing.T, d *Device, label string, words int) gpu.Buffer {
	t.Helper()
	buf, err := d.CreateBuffer(&gpu.BufferDescriptor{
		Label: label,
		Size:  uint64(4 * words),
		Usage: gpu.BufferUsageStorage | gpu.BufferUsageCopyDst | gpu.BufferUsageCopySrc,
	})
	require.NoError(t, err)
	return buf
}

func computeProgram(tile uint32) *shader.Program {
	return &shader.Program{
		Name:      "test",
		Interface: shader.Interface{Entries: []shader.EntryPoint{{Name: "main", Stage: shader.StageCompute}}},
		TileSize:  tile,
	}
}

func copyLayout(t *testing.T, d *Device) gpu.BindGroupLayout {
	t.Helper()
	layout, err := d.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "copy",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: gpu.ShaderStageCompute, Type: gpu.BindingTypeReadOnlyStorage},
			{Binding: 2, Visibility: gpu.ShaderStageCompute, Type: gpu.BindingTypeStorage},
		},
	})
	require.NoError(t, err)
	return layout
}

func TestRegisteredUnderBackendName(t *testing.T) {
	assert.Contains(t, gpu.Backends(), Backend)

	ctx, err := gpu.Open(Backend, gpu.Options{SurfaceWidth: 4, SurfaceHeight: 4})
	require.NoError(t, err)
	defer ctx.Release()
	w, h := ctx.Surface.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)
}

func TestWriteThenReadBack(t *testing.T) {
	d := newDevice(t)
	buf := storageBuffer(t, d, "cells", 4)

	require.NoError(t, d.Queue().WriteBuffer(buf, 4, gpu.EncodeWords([]uint32{7, 9})))
	words, err := gpu.ReadWords(context.Background(), d, buf)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 7, 9, 0}, words)
}

func TestWriteBufferValidation(t *testing.T) {
	d := newDevice(t)
	buf := storageBuffer(t, d, "cells", 2)

	assert.Error(t, d.Queue().WriteBuffer(buf, 0, make([]byte, 12)), "overrun")
	assert.Error(t, d.Queue().WriteBuffer(buf, 2, make([]byte, 4)), "unaligned offset")

	ro, err := d.CreateBuffer(&gpu.BufferDescriptor{Label: "ro", Size: 4, Usage: gpu.BufferUsageStorage})
	require.NoError(t, err)
	assert.Error(t, d.Queue().WriteBuffer(ro, 0, make([]byte, 4)), "no CopyDst")
}

func TestCreateBufferRejectsBadSize(t *testing.T) {
	d := newDevice(t)
	_, err := d.CreateBuffer(&gpu.BufferDescriptor{Label: "odd", Size: 6, Usage: gpu.BufferUsageStorage})
	assert.ErrorIs(t, err, gpu.ErrResourceCreation)
	_, err = d.CreateBuffer(&gpu.BufferDescriptor{Label: "empty", Size: 0, Usage: gpu.BufferUsageStorage})
	assert.ErrorIs(t, err, gpu.ErrResourceCreation)
}

func TestBindGroupRejectsWritableAlias(t *testing.T) {
	d := newDevice(t)
	layout := copyLayout(t, d)
	buf := storageBuffer(t, d, "same", 4)

	_, err := d.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:  "aliased",
		Layout: layout,
		Entries: []gpu.BindGroupEntry{
			{Binding: 1, Buffer: buf},
			{Binding: 2, Buffer: buf},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrResourceCreation)
}

func TestBindGroupRequiresEveryBinding(t *testing.T) {
	d := newDevice(t)
	layout := copyLayout(t, d)
	_, err := d.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   "partial",
		Layout:  layout,
		Entries: []gpu.BindGroupEntry{{Binding: 1, Buffer: storageBuffer(t, d, "a", 1)}},
	})
	assert.ErrorIs(t, err, gpu.ErrResourceCreation)
}

func TestLayoutRejectsWritableVertexStorage(t *testing.T) {
	d := newDevice(t)
	_, err := d.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Label: "bad",
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex | gpu.ShaderStageCompute, Type: gpu.BindingTypeStorage},
		},
	})
	assert.ErrorIs(t, err, gpu.ErrResourceCreation)
}

// The dispatch covers a 10x7 grid with 4x4 workgroups, so the last column
// and row of workgroups overhang and must be bounds-checked by the kernel.
func TestDispatchCoversEveryInvocation(t *testing.T) {
	const w, h = 10, 7
	d := newDevice(t)
	layout := copyLayout(t, d)
	in := storageBuffer(t, d, "in", w*h)
	out := storageBuffer(t, d, "out", w*h)

	src := make([]uint32, w*h)
	for i := range src {
		src[i] = uint32(i)
	}
	require.NoError(t, d.Queue().WriteBuffer(in, 0, gpu.EncodeWords(src)))

	pipeline, err := d.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
		Label:      "copy",
		Layout:     layout,
		Program:    computeProgram(4),
		EntryPoint: "main",
		Kernel: func(inv gpu.Invocation, res gpu.Resources) {
			x, y := inv.GlobalID[0], inv.GlobalID[1]
			if x >= w || y >= h {
				return
			}
			i := y*w + x
			res.Words(2)[i] = res.Words(1)[i] * 2
		},
	})
	require.NoError(t, err)
	group, err := d.CreateBindGroup(&gpu.BindGroupDescriptor{
		Label:   "copy",
		Layout:  layout,
		Entries: []gpu.BindGroupEntry{{Binding: 1, Buffer: in}, {Binding: 2, Buffer: out}},
	})
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder("dispatch")
	require.NoError(t, err)
	pass := enc.BeginComputePass("copy")
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group)
	pass.DispatchWorkgroups(3, 2, 1)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)

	sub, err := d.Queue().Submit(cmd)
	require.NoError(t, err)
	require.NoError(t, sub.Wait(context.Background()))

	got, err := gpu.ReadWords(context.Background(), d, out)
	require.NoError(t, err)
	for i, v := range got {
		assert.Equal(t, uint32(2*i), v, "cell %d", i)
	}
}

func TestKernelPanicFailsSubmission(t *testing.T) {
	d := newDevice(t)
	layout := copyLayout(t, d)
	pipeline, err := d.CreateComputePipeline(&gpu.ComputePipelineDescriptor{
		Label:      "boom",
		Layout:     layout,
		Program:    computeProgram(1),
		EntryPoint: "main",
		Kernel:     func(gpu.Invocation, gpu.Resources) { panic("boom") },
	})
	require.NoError(t, err)
	group, err := d.CreateBindGroup(&gpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: []gpu.BindGroupEntry{{Binding: 1, Buffer: storageBuffer(t, d, "a", 1)}, {Binding: 2, Buffer: storageBuffer(t, d, "b", 1)}},
	})
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder("boom")
	require.NoError(t, err)
	pass := enc.BeginComputePass("")
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group)
	pass.DispatchWorkgroups(1, 1, 1)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)
	sub, err := d.Queue().Submit(cmd)
	require.NoError(t, err)
	assert.Error(t, sub.Wait(context.Background()))
}

func TestRecordingErrorsSurfaceAtFinish(t *testing.T) {
	d := newDevice(t)
	layout := copyLayout(t, d)
	group, err := d.CreateBindGroup(&gpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: []gpu.BindGroupEntry{{Binding: 1, Buffer: storageBuffer(t, d, "a", 1)}, {Binding: 2, Buffer: storageBuffer(t, d, "b", 1)}},
	})
	require.NoError(t, err)

	cases := []struct {
		name   string
		record func(enc gpu.CommandEncoder)
		want   error
	}{
		{"no pipeline", func(enc gpu.CommandEncoder) {
			p := enc.BeginComputePass("")
			p.SetBindGroup(0, group)
			p.DispatchWorkgroups(1, 1, 1)
			p.End()
		}, gpu.ErrNoPipeline},
		{"used after end", func(enc gpu.CommandEncoder) {
			p := enc.BeginComputePass("")
			p.End()
			p.DispatchWorkgroups(1, 1, 1)
		}, gpu.ErrPassEnded},
		{"bind group index", func(enc gpu.CommandEncoder) {
			p := enc.BeginComputePass("")
			p.SetBindGroup(4, group)
			p.End()
		}, gpu.ErrBindGroupIndexOutOfRange},
		{"pass left open", func(enc gpu.CommandEncoder) {
			enc.BeginComputePass("")
		}, gpu.ErrPassOpen},
		{"overlapping passes", func(enc gpu.CommandEncoder) {
			enc.BeginComputePass("")
			enc.BeginComputePass("")
		}, gpu.ErrPassOpen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := d.CreateCommandEncoder(tc.name)
			require.NoError(t, err)
			tc.record(enc)
			_, err = enc.Finish()
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCommandBufferSubmittedOnce(t *testing.T) {
	d := newDevice(t)
	enc, err := d.CreateCommandEncoder("empty")
	require.NoError(t, err)
	cmd, err := enc.Finish()
	require.NoError(t, err)

	_, err = d.Queue().Submit(cmd)
	require.NoError(t, err)
	_, err = d.Queue().Submit(cmd)
	assert.Error(t, err)
}

func TestRenderPassClearsAndDraws(t *testing.T) {
	d := newDevice(t)
	layout, err := d.CreateBindGroupLayout(&gpu.BindGroupLayoutDescriptor{
		Entries: []gpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gpu.ShaderStageVertex | gpu.ShaderStageFragment, Type: gpu.BindingTypeUniform},
		},
	})
	require.NoError(t, err)
	uniform, err := d.CreateBuffer(&gpu.BufferDescriptor{Label: "u", Size: 4, Usage: gpu.BufferUsageUniform})
	require.NoError(t, err)
	group, err := d.CreateBindGroup(&gpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: []gpu.BindGroupEntry{{Binding: 0, Buffer: uniform}},
	})
	require.NoError(t, err)

	// Left half of the surface: x in [-1, 0].
	quad := []float32{-1, -1, 0, -1, 0, 1, -1, -1, 0, 1, -1, 1}
	vb, err := d.CreateBuffer(&gpu.BufferDescriptor{Label: "quad", Size: uint64(4 * len(quad)), Usage: gpu.BufferUsageVertex | gpu.BufferUsageCopyDst})
	require.NoError(t, err)
	require.NoError(t, d.Queue().WriteBuffer(vb, 0, gpu.EncodeFloats(quad)))

	program := &shader.Program{
		Name: "draw",
		Interface: shader.Interface{Entries: []shader.EntryPoint{
			{Name: "vs", Stage: shader.StageVertex},
			{Name: "fs", Stage: shader.StageFragment},
		}},
	}
	pipeline, err := d.CreateRenderPipeline(&gpu.RenderPipelineDescriptor{
		Label:         "draw",
		Layout:        layout,
		Program:       program,
		VertexEntry:   "vs",
		FragmentEntry: "fs",
		VertexBuffer: gpu.VertexBufferLayout{
			Stride:     8,
			Attributes: []gpu.VertexAttribute{{Format: gpu.VertexFormatFloat32x2}},
		},
		TargetFormat: gpu.TextureFormatRGBA8Unorm,
		VertexKernel: func(in gpu.VertexInput, _ gpu.Resources) gpu.VertexOutput {
			p := in.Attributes[0]
			return gpu.VertexOutput{Position: [4]float32{p[0], p[1], 0, 1}}
		},
		FragmentKernel: func(gpu.FragmentInput, gpu.Resources) [4]float32 {
			return [4]float32{1, 0, 0, 1}
		},
	})
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder("frame")
	require.NoError(t, err)
	pass := enc.BeginRenderPass(&gpu.RenderPassDescriptor{Target: d.Surface(), ClearColor: gpu.Color{B: 1, A: 1}})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group)
	pass.SetVertexBuffer(0, vb)
	pass.Draw(6, 1)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)
	sub, err := d.Queue().Submit(cmd)
	require.NoError(t, err)
	require.NoError(t, sub.Wait(context.Background()))

	frame, err := d.Surface().Frame()
	require.NoError(t, err)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := frame.RGBAAt(x, y)
			if x < 4 {
				assert.Equal(t, uint8(255), c.R, "pixel %d,%d", x, y)
				assert.Equal(t, uint8(0), c.B, "pixel %d,%d", x, y)
			} else {
				assert.Equal(t, uint8(0), c.R, "pixel %d,%d", x, y)
				assert.Equal(t, uint8(255), c.B, "pixel %d,%d", x, y)
			}
		}
	}
}

func TestDegenerateTriangleDrawsNothing(t *testing.T) {
	d := newDevice(t)
	s := d.surface
	s.begin(gpu.Color{A: 1})
	point := gpu.VertexOutput{Position: [4]float32{0.25, 0.25, 0, 1}}
	s.rasterize([3]gpu.VertexOutput{point, point, point}, func(gpu.FragmentInput, gpu.Resources) [4]float32 {
		t.Fatal("fragment ran for a zero-area triangle")
		return [4]float32{}
	}, nil)
}

func TestReleasedDeviceRejectsWork(t *testing.T) {
	d := New(gpu.Options{})
	d.Release()
	d.Release()

	_, err := d.CreateBuffer(&gpu.BufferDescriptor{Size: 4, Usage: gpu.BufferUsageStorage})
	assert.ErrorIs(t, err, gpu.ErrReleased)
	_, err = d.CreateCommandEncoder("late")
	assert.ErrorIs(t, err, gpu.ErrReleased)
}
