//go:build ebiten

package ui

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Overlay draws cell boundaries on top of the simulation view.
type Overlay struct {
	cols, rows int
	show       bool
	pixel      *ebiten.Image
}

// NewOverlay constructs an overlay for a grid of cols x rows cells.
func NewOverlay(cols, rows int) *Overlay {
	o := &Overlay{cols: cols, rows: rows}
	o.pixel = ebiten.NewImage(1, 1)
	o.pixel.Fill(color.White)
	return o
}

// Update toggles the grid lines with G.
func (o *Overlay) Update() {
	if o == nil {
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		o.show = !o.show
	}
}

// Draw paints one line per cell boundary inside area.
func (o *Overlay) Draw(screen *ebiten.Image, area image.Rectangle) {
	if o == nil || !o.show || o.cols <= 0 || o.rows <= 0 || area.Empty() {
		return
	}
	x0, y0 := float64(area.Min.X), float64(area.Min.Y)
	w, h := float64(area.Dx()), float64(area.Dy())
	for c := 1; c < o.cols; c++ {
		o.rect(screen, x0+float64(c)*w/float64(o.cols), y0, 1, h)
	}
	for r := 1; r < o.rows; r++ {
		o.rect(screen, x0, y0+float64(r)*h/float64(o.rows), w, 1)
	}
}

func (o *Overlay) rect(screen *ebiten.Image, x, y, w, h float64) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(w, h)
	op.GeoM.Translate(x, y)
	op.ColorScale.Scale(1, 1, 1, 0.15)
	screen.DrawImage(o.pixel, op)
}
