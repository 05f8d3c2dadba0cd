//go:build wgpu

package webgpu

import (
	"context"
	"image"

	"github.com/cogentcore/webgpu/wgpu"

	"gpulife/internal/gpu"
)

// Rows copied out of a texture are padded to this alignment.
const copyRowAlignment = 256

type surface struct {
	dev  *Device
	w, h int
	tex  *wgpu.Texture
	view *wgpu.TextureView
}

var _ gpu.Surface = (*surface)(nil)

func newSurface(d *Device, w, h int) (*surface, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "surface",
		Size: wgpu.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, gpu.NewResourceError("surface", "surface", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, gpu.NewResourceError("surface", "surface view", err)
	}
	return &surface{dev: d, w: w, h: h, tex: tex, view: view}, nil
}

func (s *surface) Size() (int, int)          { return s.w, s.h }
func (s *surface) Format() gpu.TextureFormat { return gpu.TextureFormatRGBA8Unorm }

// Frame copies the texture out after all submitted work.
func (s *surface) Frame() (*image.RGBA, error) {
	d := s.dev
	stride := uint32(4*s.w+copyRowAlignment-1) / copyRowAlignment * copyRowAlignment
	size := uint64(stride) * uint64(s.h)
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "frame staging",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	enc, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Release()
	enc.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: s.tex, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{BytesPerRow: stride, RowsPerImage: uint32(s.h)},
		},
		&wgpu.Extent3D{Width: uint32(s.w), Height: uint32(s.h), DepthOrArrayLayers: 1},
	)
	cmd, err := enc.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer cmd.Release()
	d.wq.Submit(cmd)

	raw, err := mapRead(context.Background(), d, staging, size)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, s.w, s.h))
	for y := 0; y < s.h; y++ {
		copy(img.Pix[y*img.Stride:(y+1)*img.Stride], raw[y*int(stride):])
	}
	return img, nil
}

func (s *surface) release() {
	s.view.Release()
	s.tex.Release()
}
