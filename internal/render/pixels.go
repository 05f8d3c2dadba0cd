// Package render moves presented frames out of the device surface: into an
// ebiten image for the window, or into upscaled PNG snapshots.
package render

import (
	"image"
	"image/color"
)

// copyFrameRGBA copies frame into buf as tightly packed RGBA rows. buf must
// hold 4*w*h bytes for the frame's bounds.
func copyFrameRGBA(buf []byte, frame *image.RGBA) {
	b := frame.Bounds()
	row := 4 * b.Dx()
	for y := 0; y < b.Dy(); y++ {
		src := frame.PixOffset(b.Min.X, b.Min.Y+y)
		copy(buf[y*row:(y+1)*row], frame.Pix[src:src+row])
	}
}

// fillRGBA sets every pixel of buf to c.
func fillRGBA(buf []byte, c color.Color) {
	r, g, b, a := c.RGBA()
	for i := 0; i+3 < len(buf); i += 4 {
		buf[i+0] = uint8(r >> 8)
		buf[i+1] = uint8(g >> 8)
		buf[i+2] = uint8(b >> 8)
		buf[i+3] = uint8(a >> 8)
	}
}
