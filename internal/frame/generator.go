// Package frame renders pages into bitmap frames, asynchronously, and
// publishes them through a mutex-guarded store shared with the
// transmission scheduler.
package frame

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dn36772386/qrmatrix/internal/layout"
	"github.com/dn36772386/qrmatrix/internal/protocol"
)

// Rendering geometry. Page cells are CellPx square with a small gutter;
// header and capture-marker symbols are enlarged singles. The surface
// uses CellPx to report how many cells its viewport can hold.
const (
	CellPx   = 250
	cellPad  = 10
	symbolPx = 600
)

// ProgressFunc receives fractional progress (0..100) and a human-readable
// phase description while generation runs.
type ProgressFunc func(percent float64, message string)

// CompleteFunc is invoked exactly once when generation finishes; err is
// nil on success, the rendering fault otherwise. Frames produced before a
// fault remain in the store and stay usable.
type CompleteFunc func(err error)

// Job is one generation request: a header plus the laid-out pages of the
// current file.
type Job struct {
	Header         *protocol.Header
	Chunks         []protocol.Chunk
	Grid           layout.Grid
	Pages          []layout.Page
	CaptureMarkers bool

	OnProgress ProgressFunc
	OnComplete CompleteFunc
}

// Generator renders jobs in a background goroutine, one at a time.
type Generator struct {
	store    *Store
	renderer SymbolRenderer

	busy   atomic.Bool
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewGenerator(store *Store, renderer SymbolRenderer) *Generator {
	return &Generator{store: store, renderer: renderer}
}

// Busy reports whether a generation is in flight.
func (g *Generator) Busy() bool { return g.busy.Load() }

// Start begins generating frames for the job. If a generation is already
// in progress the call is a silent no-op and returns an empty token;
// otherwise it returns the token identifying this generation.
func (g *Generator) Start(job Job) string {
	if job.Header == nil {
		return ""
	}
	if !g.busy.CompareAndSwap(false, true) {
		return ""
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()

	token := uuid.NewString()
	go g.run(ctx, job)
	return token
}

// Cancel aborts any in-flight generation. Frames already published stay
// in the store. Safe to call when idle.
func (g *Generator) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
}

func (g *Generator) run(ctx context.Context, job Job) {
	var genErr error
	defer func() {
		g.busy.Store(false)
		if job.OnComplete != nil {
			job.OnComplete(genErr)
		}
	}()

	total := 1 + len(job.Pages)
	if job.CaptureMarkers {
		total += 2
	}
	done := 0
	progress := func(msg string) {
		if job.OnProgress != nil {
			job.OnProgress(float64(done)/float64(total)*100, msg)
		}
	}

	progress("generating header frame")
	if genErr = g.renderHeader(job.Header); genErr != nil {
		return
	}
	done++
	progress("header frame ready")

	if job.CaptureMarkers {
		for _, action := range []string{protocol.ActionRecordStart, protocol.ActionRecordStop} {
			if genErr = ctx.Err(); genErr != nil {
				return
			}
			if genErr = g.renderCaptureMarker(action); genErr != nil {
				return
			}
			done++
		}
		progress("capture markers ready")
	}

	for _, page := range job.Pages {
		if genErr = ctx.Err(); genErr != nil {
			return
		}
		progress(fmt.Sprintf("generating page %d/%d", page.Number, len(job.Pages)))
		if genErr = g.renderPage(page, job.Grid, job.Chunks); genErr != nil {
			return
		}
		done++
	}
	progress("all frames ready")
}

func (g *Generator) renderHeader(h *protocol.Header) error {
	payload, err := protocol.Encode(h)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	img, err := g.renderer.Render(payload, symbolPx, nil)
	if err != nil {
		return err
	}
	g.store.Put(HeaderKey, &Frame{Kind: KindHeader, Image: img})
	return nil
}

func (g *Generator) renderCaptureMarker(action string) error {
	payload, err := protocol.Encode(protocol.NewCaptureMarker(action))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	img, err := g.renderer.Render(payload, symbolPx, captureMarkerColor)
	if err != nil {
		return err
	}
	g.store.Put(action, &Frame{Kind: KindControl, Image: img})
	return nil
}

func (g *Generator) renderPage(page layout.Page, grid layout.Grid, chunks []protocol.Chunk) error {
	canvas := whiteCanvas(grid.Cols*CellPx, grid.Rows*CellPx)

	for i, cell := range page.Cells {
		var payload string
		var fg color.Color
		var err error

		switch cell.Kind {
		case layout.CellEmpty:
			continue
		case layout.CellMarker:
			payload, err = protocol.Encode(cell.Marker)
			fg = MarkerColor(cell.Marker.Position)
		case layout.CellChunk:
			payload, err = protocol.Encode(chunks[cell.ChunkIndex])
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRender, err)
		}

		img, err := g.renderer.Render(payload, CellPx-2*cellPad, fg)
		if err != nil {
			return err
		}
		row, col := i/grid.Cols, i%grid.Cols
		paste(canvas, img, col*CellPx+cellPad, row*CellPx+cellPad)
	}

	g.store.Put(PageKey(page.Start), &Frame{
		Kind:  KindPage,
		Image: canvas,
		Page:  page.Number,
		Start: page.Start,
		End:   page.End,
	})
	return nil
}
