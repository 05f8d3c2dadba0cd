//go:build ebiten

package render

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// FramePainter uploads surface frames into an ebiten image and draws them.
type FramePainter struct {
	w, h int
	img  *ebiten.Image
	buf  []byte
}

// NewFramePainter allocates a painter for frames of w*h pixels.
func NewFramePainter(w, h int) *FramePainter {
	fp := &FramePainter{w: w, h: h, buf: make([]byte, 4*w*h)}
	fp.img = ebiten.NewImage(w, h)
	return fp
}

// Clear fills the painter image with c, shown until the first frame arrives.
func (fp *FramePainter) Clear(c color.Color) {
	fillRGBA(fp.buf, c)
	fp.img.WritePixels(fp.buf)
}

// Upload replaces the painter image with frame. Frames of another size are
// ignored.
func (fp *FramePainter) Upload(frame *image.RGBA) {
	if frame == nil || frame.Bounds().Dx() != fp.w || frame.Bounds().Dy() != fp.h {
		return
	}
	copyFrameRGBA(fp.buf, frame)
	fp.img.WritePixels(fp.buf)
}

// Blit draws the last uploaded frame scaled by scale.
func (fp *FramePainter) Blit(dst *ebiten.Image, scale float64) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	dst.DrawImage(fp.img, op)
}

// Size returns the dimensions of the underlying image.
func (fp *FramePainter) Size() (int, int) { return fp.w, fp.h }
