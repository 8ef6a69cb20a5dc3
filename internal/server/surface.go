package server

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"sync"

	"github.com/dn36772386/qrmatrix/internal/frame"
	"github.com/dn36772386/qrmatrix/internal/layout"
	"github.com/dn36772386/qrmatrix/internal/transmit"
)

// Default viewport assumed until a client announces its real size.
const (
	defaultViewportW = 1920
	defaultViewportH = 1080
	viewportMargin   = 40
)

// broadcaster is the part of the Hub the surface needs.
type broadcaster interface {
	Broadcast(event interface{})
}

// WebSurface is the render surface: draw commands become websocket events
// and the browser canvas does the actual painting. Implements
// transmit.Surface.
type WebSurface struct {
	hub broadcaster

	mu     sync.Mutex
	width  int
	height int
}

func NewWebSurface(hub broadcaster) *WebSurface {
	return &WebSurface{hub: hub, width: defaultViewportW, height: defaultViewportH}
}

// SetViewport records the client-announced canvas size. Takes effect on
// the next file load; the grid stays fixed for a running transfer.
func (s *WebSurface) SetViewport(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	s.mu.Lock()
	s.width, s.height = w, h
	s.mu.Unlock()
}

// MatrixSize reports how many symbol cells the current viewport can hold.
// The layout engine applies the per-mode minimum floor on top of this.
func (s *WebSurface) MatrixSize() (cols, rows, cells int) {
	s.mu.Lock()
	w, h := s.width-viewportMargin, s.height-viewportMargin
	s.mu.Unlock()
	cols = w / frame.CellPx
	if cols < 1 {
		cols = 1
	}
	rows = h / frame.CellPx
	if rows < 1 {
		rows = 1
	}
	return cols, rows, cols * rows
}

// Grid computes the effective grid for a display mode from the viewport.
func (s *WebSurface) Grid(mode layout.MarkerMode) layout.Grid {
	cols, rows, _ := s.MatrixSize()
	return layout.NewGrid(cols, rows, mode)
}

func (s *WebSurface) Clear() {
	s.hub.Broadcast(map[string]interface{}{"event": "clear"})
}

func (s *WebSurface) DrawImage(img image.Image, x, y int, anchor transmit.Anchor) {
	a := "top-left"
	if anchor == transmit.AnchorCenter {
		a = "center"
	}
	s.hub.Broadcast(map[string]interface{}{
		"event":  "frame",
		"x":      x,
		"y":      y,
		"anchor": a,
		"png":    encodePNG(img),
	})
}

func (s *WebSurface) DrawText(x, y int, text, color string) {
	s.hub.Broadcast(map[string]interface{}{
		"event": "text",
		"x":     x,
		"y":     y,
		"text":  text,
		"color": color,
	})
}

func (s *WebSurface) Center() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width / 2, s.height / 2
}

func encodePNG(img image.Image) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
