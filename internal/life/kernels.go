package life

import (
	"math"

	"gpulife/internal/gpu"
)

// Binding slots shared by life.wgsl and cells.wgsl.
const (
	BindingGrid  uint32 = 0
	BindingRead  uint32 = 1
	BindingWrite uint32 = 2
)

func gridUniform(res gpu.Resources) (float32, float32) {
	g := res.Words(BindingGrid)
	return math.Float32frombits(g[0]), math.Float32frombits(g[1])
}

// transitionKernel is computeMain from life.wgsl.
func transitionKernel(inv gpu.Invocation, res gpu.Resources) {
	gx, gy := gridUniform(res)
	w, h := uint32(gx), uint32(gy)
	x, y := inv.GlobalID[0], inv.GlobalID[1]
	if x >= w || y >= h {
		return
	}
	in, out := res.Words(BindingRead), res.Words(BindingWrite)
	active := func(cx, cy uint32) uint32 { return in[cy*w+cx] }

	left := (x + w - 1) % w
	right := (x + 1) % w
	down := (y + h - 1) % h
	up := (y + 1) % h

	n := active(right, up) +
		active(right, y) +
		active(right, down) +
		active(x, down) +
		active(left, down) +
		active(left, y) +
		active(left, up) +
		active(x, up)

	i := y*w + x
	out[i] = Next(in[i], n)
}

// cellVertex is vertexMain from cells.wgsl. Varyings 0 and 1 carry the cell
// coordinates.
func cellVertex(in gpu.VertexInput, res gpu.Resources) gpu.VertexOutput {
	gx, gy := gridUniform(res)
	w := uint32(gx)
	cx := float32(in.InstanceIndex % w)
	cy := float32(in.InstanceIndex / w)
	state := float32(res.Words(BindingRead)[in.InstanceIndex])

	pos := in.Attributes[0]
	return gpu.VertexOutput{
		Position: [4]float32{
			(pos[0]*state+1)/gx - 1 + cx/gx*2,
			(pos[1]*state+1)/gy - 1 + cy/gy*2,
			0,
			1,
		},
		Varyings: [4]float32{cx, cy},
	}
}

// cellFragment is fragmentMain from cells.wgsl.
func cellFragment(in gpu.FragmentInput, res gpu.Resources) [4]float32 {
	gx, gy := gridUniform(res)
	cx, cy := in.Varyings[0]/gx, in.Varyings[1]/gy
	return [4]float32{cx, cy, 1 - cx, 1}
}
