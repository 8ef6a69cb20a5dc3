// Package layout assigns chunks and corner synchronization markers to
// positions in a rectangular grid, producing one page per displayed frame.
package layout

import (
	"errors"
	"fmt"

	"github.com/dn36772386/qrmatrix/internal/protocol"
)

// ErrGridTooSmall is returned when the grid cannot hold at least one data
// cell even after the minimum-size floor is applied. Fatal configuration
// error, surfaced before any generation starts.
var ErrGridTooSmall = errors.New("grid too small for marker mode")

// MarkerMode selects how many corner markers each page carries.
type MarkerMode int

const (
	// TwoMarkers places a start marker top-left and an end marker
	// bottom-right. Intended for video capture, where consecutive frames
	// give the receiver plenty of orientation context.
	TwoMarkers MarkerMode = 2
	// FourMarkers reserves all four corners, each with a distinct
	// identity, so a partial or rotated still photo can be disambiguated.
	FourMarkers MarkerMode = 4
)

func (m MarkerMode) String() string {
	if m == FourMarkers {
		return "photo"
	}
	return "video"
}

// Minimum grid dimensions per mode. The floor is applied before marker
// cells are subtracted from capacity.
const (
	minColsVideo = 2
	minRowsVideo = 2
	minColsPhoto = 5
	minRowsPhoto = 4
)

// Grid is the fixed geometry for one transfer, computed once from the
// render surface's reported capacity.
type Grid struct {
	Cols int
	Rows int
	Mode MarkerMode
}

// NewGrid applies the minimum-size floor for the mode and returns the
// effective grid. Requested dimensions below the floor are raised, never
// rejected.
func NewGrid(cols, rows int, mode MarkerMode) Grid {
	minCols, minRows := minColsVideo, minRowsVideo
	if mode == FourMarkers {
		minCols, minRows = minColsPhoto, minRowsPhoto
	}
	if cols < minCols {
		cols = minCols
	}
	if rows < minRows {
		rows = minRows
	}
	return Grid{Cols: cols, Rows: rows, Mode: mode}
}

// CellCount returns the total number of grid cells.
func (g Grid) CellCount() int { return g.Cols * g.Rows }

// DataCapacity returns the number of chunk-bearing cells per page:
// cells minus reserved marker corners. The floor has already been applied
// by NewGrid, so a failure here means the mode itself cannot fit.
func (g Grid) DataCapacity() (int, error) {
	capacity := g.CellCount() - int(g.Mode)
	if capacity < 1 {
		return 0, fmt.Errorf("%w: %dx%d in %s mode", ErrGridTooSmall, g.Cols, g.Rows, g.Mode)
	}
	return capacity, nil
}

// markerAt returns the marker position reserved at (row, col), if any.
func (g Grid) markerAt(row, col int) (protocol.Position, bool) {
	lastRow, lastCol := g.Rows-1, g.Cols-1
	switch {
	case row == 0 && col == 0:
		return protocol.TopLeft, true
	case row == lastRow && col == lastCol:
		return protocol.BottomRight, true
	case g.Mode == FourMarkers && row == 0 && col == lastCol:
		return protocol.TopRight, true
	case g.Mode == FourMarkers && row == lastRow && col == 0:
		return protocol.BottomLeft, true
	}
	return "", false
}

// ===== Pages =====

// CellKind tags what a grid cell carries.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellChunk
	CellMarker
)

// Cell is one grid position on a page, in row-major order. Marker cells
// carry a per-page synchronization payload; chunk cells reference a chunk
// by index; empty cells are explicit and carry no data.
type Cell struct {
	Kind       CellKind
	ChunkIndex int
	Marker     *protocol.PageMarker
}

// Page is one unit of transmission: a 1-based page number, the half-open
// chunk index range [Start, End) it carries, and its cells.
type Page struct {
	Number int
	Start  int
	End    int
	Cells  []Cell
}

// TotalPages returns ceil(chunkCount / capacity); zero chunks is a valid
// header-only transfer with zero pages.
func TotalPages(g Grid, chunkCount int) (int, error) {
	capacity, err := g.DataCapacity()
	if err != nil {
		return 0, err
	}
	return (chunkCount + capacity - 1) / capacity, nil
}

// BuildPages lays out chunkCount chunks across pages. Grid cells are
// iterated in row-major order; reserved corners get freshly built marker
// payloads carrying this page's number/total pair, every other cell takes
// the next unconsumed chunk, and cells past the final chunk are marked
// empty.
func BuildPages(g Grid, chunkCount int) ([]Page, error) {
	capacity, err := g.DataCapacity()
	if err != nil {
		return nil, err
	}
	total := (chunkCount + capacity - 1) / capacity

	pages := make([]Page, 0, total)
	next := 0
	for num := 1; num <= total; num++ {
		page := Page{
			Number: num,
			Start:  next,
			Cells:  make([]Cell, 0, g.CellCount()),
		}
		for row := 0; row < g.Rows; row++ {
			for col := 0; col < g.Cols; col++ {
				if pos, ok := g.markerAt(row, col); ok {
					m := protocol.NewPageMarker(pos, num, total)
					page.Cells = append(page.Cells, Cell{Kind: CellMarker, Marker: &m})
					continue
				}
				if next < chunkCount {
					page.Cells = append(page.Cells, Cell{Kind: CellChunk, ChunkIndex: next})
					next++
				} else {
					page.Cells = append(page.Cells, Cell{Kind: CellEmpty})
				}
			}
		}
		page.End = next
		pages = append(pages, page)
	}
	return pages, nil
}
