package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// Upscale returns src enlarged by an integer factor with nearest-neighbour
// sampling, so cell edges stay sharp.
func Upscale(src *image.RGBA, scale int) *image.RGBA {
	if scale <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}

// SnapshotWriter stores frames as numbered PNG files.
type SnapshotWriter struct {
	Dir   string
	Scale int
}

// Path returns the file name used for a tick.
func (s SnapshotWriter) Path(tick uint64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("frame-%06d.png", tick))
}

// Write upscales frame and stores it under Path(tick).
func (s SnapshotWriter) Write(tick uint64, frame *image.RGBA) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := s.Path(tick)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := EncodePNG(f, Upscale(frame, s.Scale)); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	return path, f.Close()
}
