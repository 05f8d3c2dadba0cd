package software

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"gpulife/internal/gpu"
)

// surface is a double-buffered RGBA8 target. Render passes draw into back;
// present swaps it with front, which Frame copies out.
type surface struct {
	dev  *Device
	w, h int
	back *image.RGBA

	mu    sync.Mutex
	front *image.RGBA
}

var _ gpu.Surface = (*surface)(nil)

func newSurface(dev *Device, w, h int) *surface {
	rect := image.Rect(0, 0, w, h)
	return &surface{dev: dev, w: w, h: h, back: image.NewRGBA(rect), front: image.NewRGBA(rect)}
}

func (s *surface) Size() (int, int)          { return s.w, s.h }
func (s *surface) Format() gpu.TextureFormat { return gpu.TextureFormatRGBA8Unorm }

// Frame returns a copy of the last presented frame. Before the first
// present it is fully transparent.
func (s *surface) Frame() (*image.RGBA, error) {
	if err := s.dev.alive(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.front.Rect)
	copy(out.Pix, s.front.Pix)
	return out, nil
}

func (s *surface) begin(clear gpu.Color) {
	c := toRGBA([4]float32{float32(clear.R), float32(clear.G), float32(clear.B), float32(clear.A)})
	pix := s.back.Pix
	row := s.back.Stride
	for x := 0; x < s.w; x++ {
		pix[4*x], pix[4*x+1], pix[4*x+2], pix[4*x+3] = c.R, c.G, c.B, c.A
	}
	for y := 1; y < s.h; y++ {
		copy(pix[y*row:(y+1)*row], pix[:row])
	}
}

func (s *surface) present() {
	s.mu.Lock()
	s.front, s.back = s.back, s.front
	s.mu.Unlock()
}

// draw runs the vertex kernel for every vertex of every instance and
// rasterizes each consecutive triple as a triangle.
func (s *surface) draw(d draw) error {
	attrs, err := vertexAttributes(d)
	if err != nil {
		return err
	}
	var tri [3]gpu.VertexOutput
	for inst := uint32(0); inst < d.instances; inst++ {
		for v := uint32(0); v+2 < d.vertices; v += 3 {
			for k := uint32(0); k < 3; k++ {
				tri[k] = d.pipeline.vertex(gpu.VertexInput{
					VertexIndex:   v + k,
					InstanceIndex: inst,
					Attributes:    attrs[v+k],
				}, d.group)
			}
			s.rasterize(tri, d.pipeline.fragment, d.group)
		}
	}
	return nil
}

func vertexAttributes(d draw) ([][][4]float32, error) {
	layout := d.pipeline.vbLayout
	words := d.vertex.words
	out := make([][][4]float32, d.vertices)
	for v := range out {
		attrs := make([][4]float32, d.pipeline.locations)
		for i := range attrs {
			attrs[i] = [4]float32{0, 0, 0, 1}
		}
		base := uint64(v) * layout.Stride
		for _, a := range layout.Attributes {
			w := (base + a.Offset) / 4
			n := uint64(a.Format.Components())
			if w+n > uint64(len(words)) {
				return nil, fmt.Errorf("vertex %d reads past buffer %q", v, d.vertex.label)
			}
			for c := uint64(0); c < n; c++ {
				attrs[a.Location][c] = math.Float32frombits(words[w+c])
			}
		}
		out[v] = attrs
	}
	return out, nil
}

// rasterize fills the pixels whose centres lie inside the triangle, edges
// included. Degenerate triangles cover nothing.
func (s *surface) rasterize(tri [3]gpu.VertexOutput, frag gpu.FragmentKernel, res gpu.Resources) {
	var sx, sy, sz [3]float64
	for k, v := range tri {
		w := float64(v.Position[3])
		if w <= 0 {
			return
		}
		sx[k] = (float64(v.Position[0])/w + 1) * 0.5 * float64(s.w)
		sy[k] = (1 - float64(v.Position[1])/w) * 0.5 * float64(s.h)
		sz[k] = float64(v.Position[2]) / w
	}
	area := edge(sx[0], sy[0], sx[1], sy[1], sx[2], sy[2])
	if area == 0 {
		return
	}

	minX := max(0, int(math.Floor(min(sx[0], sx[1], sx[2]))))
	maxX := min(s.w-1, int(math.Ceil(max(sx[0], sx[1], sx[2]))))
	minY := max(0, int(math.Floor(min(sy[0], sy[1], sy[2]))))
	maxY := min(s.h-1, int(math.Ceil(max(sy[0], sy[1], sy[2]))))

	for py := minY; py <= maxY; py++ {
		cy := float64(py) + 0.5
		for px := minX; px <= maxX; px++ {
			cx := float64(px) + 0.5
			b0 := edge(sx[1], sy[1], sx[2], sy[2], cx, cy) / area
			b1 := edge(sx[2], sy[2], sx[0], sy[0], cx, cy) / area
			b2 := edge(sx[0], sy[0], sx[1], sy[1], cx, cy) / area
			if b0 < 0 || b1 < 0 || b2 < 0 {
				continue
			}
			in := gpu.FragmentInput{
				Position: [4]float32{float32(cx), float32(cy), float32(b0*sz[0] + b1*sz[1] + b2*sz[2]), 1},
			}
			for i := range in.Varyings {
				in.Varyings[i] = float32(b0*float64(tri[0].Varyings[i]) +
					b1*float64(tri[1].Varyings[i]) +
					b2*float64(tri[2].Varyings[i]))
			}
			s.back.SetRGBA(px, py, toRGBA(frag(in, res)))
		}
	}
}

func edge(ax, ay, bx, by, cx, cy float64) float64 {
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

func toRGBA(c [4]float32) color.RGBA {
	return color.RGBA{R: unorm8(c[0]), G: unorm8(c[1]), B: unorm8(c[2]), A: unorm8(c[3])}
}

func unorm8(v float32) uint8 {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
