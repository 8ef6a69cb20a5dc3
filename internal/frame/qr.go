package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/dn36772386/qrmatrix/internal/protocol"
)

// ErrRender wraps a symbol rasterization fault. Generation of the current
// file aborts, but frames produced so far stay usable.
var ErrRender = errors.New("render failure")

// SymbolRenderer turns one wire payload into a square symbol image.
// The production implementation rasterizes QR codes; tests substitute a
// stub so they stay independent of the symbology.
type SymbolRenderer interface {
	Render(payload string, sizePx int, fg color.Color) (image.Image, error)
}

// QRRenderer rasterizes payloads as QR symbols at the lowest error
// correction level, matching the density the receiver expects.
type QRRenderer struct{}

func (QRRenderer) Render(payload string, sizePx int, fg color.Color) (image.Image, error) {
	q, err := qrcode.New(payload, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	if fg == nil {
		fg = color.Black
	}
	q.ForegroundColor = fg
	q.BackgroundColor = color.White
	return q.Image(sizePx), nil
}

// ===== Marker styling =====

// Marker colors keyed by corner identity. A declared table rather than
// per-corner literals scattered through the rendering path, so the
// receiver-facing protocol stays separate from presentation.
var markerColors = map[protocol.Position]color.Color{
	protocol.TopLeft:     color.RGBA{R: 0xC6, G: 0x28, B: 0x28, A: 0xFF}, // red
	protocol.TopRight:    color.RGBA{R: 0x15, G: 0x65, B: 0xC0, A: 0xFF}, // blue
	protocol.BottomLeft:  color.RGBA{R: 0x2E, G: 0x7D, B: 0x32, A: 0xFF}, // green
	protocol.BottomRight: color.RGBA{R: 0xEF, G: 0x6C, B: 0x00, A: 0xFF}, // orange
}

// captureMarkerColor distinguishes record-start/stop control frames from
// ordinary data symbols.
var captureMarkerColor = color.Color(color.RGBA{R: 0x6A, G: 0x1B, B: 0x9A, A: 0xFF}) // purple

// MarkerColor returns the symbol color for a corner identity; unknown
// positions render plain black like data cells.
func MarkerColor(pos protocol.Position) color.Color {
	if c, ok := markerColors[pos]; ok {
		return c
	}
	return color.Black
}

// whiteCanvas allocates a white RGBA canvas of the given size.
func whiteCanvas(w, h int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	return canvas
}

// paste draws src onto dst with its top-left corner at (x, y).
func paste(dst *image.RGBA, src image.Image, x, y int) {
	r := src.Bounds().Sub(src.Bounds().Min).Add(image.Pt(x, y))
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
}
