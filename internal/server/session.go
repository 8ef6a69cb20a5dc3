package server

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dn36772386/qrmatrix/internal/codec"
	"github.com/dn36772386/qrmatrix/internal/config"
	"github.com/dn36772386/qrmatrix/internal/frame"
	"github.com/dn36772386/qrmatrix/internal/layout"
	"github.com/dn36772386/qrmatrix/internal/protocol"
	"github.com/dn36772386/qrmatrix/internal/segment"
	"github.com/dn36772386/qrmatrix/internal/transmit"
	"github.com/dn36772386/qrmatrix/internal/utils"
)

// ErrNotReady is returned when transmission is requested before frame
// generation for the current file has finished.
var ErrNotReady = errors.New("no transfer ready")

// Session owns one transfer at a time: segmentation, layout, generation
// and scheduling. Loading a new file invalidates everything belonging to
// the previous one before the new generation begins.
type Session struct {
	cfg       config.Config
	log       *utils.Logger
	hub       *Hub
	surface   *WebSurface
	segmenter *segment.Segmenter
	renderer  frame.SymbolRenderer

	mu         sync.Mutex
	transferID string
	result     *segment.Result
	grid       layout.Grid
	pages      []layout.Page
	store      *frame.Store
	gen        *frame.Generator
	sched      *transmit.Scheduler
	ready      atomic.Bool
}

func NewSession(cfg config.Config, log *utils.Logger, hub *Hub) *Session {
	surface := NewWebSurface(hub)
	hub.OnViewport = surface.SetViewport
	return &Session{
		cfg:       cfg,
		log:       log,
		hub:       hub,
		surface:   surface,
		segmenter: segment.New(codec.New(cfg.PreferZstd)),
		renderer:  frame.QRRenderer{},
	}
}

func (s *Session) markerMode() layout.MarkerMode {
	if s.cfg.DisplayMode == config.DisplayModePhoto {
		return layout.FourMarkers
	}
	return layout.TwoMarkers
}

func (s *Session) schedulerOptions() transmit.Options {
	mode := transmit.Continuous
	if s.cfg.CycleMode == config.CycleModeSingle {
		mode = transmit.SingleCycle
	}
	return transmit.Options{
		FPS:            s.cfg.FPS,
		HeaderSeconds:  s.cfg.HeaderSeconds,
		PageSeconds:    s.cfg.PageSeconds,
		MarkerSeconds:  s.cfg.MarkerSeconds,
		CycleMode:      mode,
		CaptureMarkers: s.cfg.CaptureMarkers,
	}
}

// Load processes the file and kicks off background frame generation.
// Any running scheduler is stopped and any in-flight generation cancelled
// first, so a stale loop can never display frames keyed against the
// previous file's chunk layout.
func (s *Session) Load(path string, chunkSize int) (*protocol.Header, error) {
	if chunkSize == 0 {
		chunkSize = s.cfg.ChunkSize
	}
	if !segment.ValidChunkSize(chunkSize) {
		return nil, errors.New("chunk size not in allowed set")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sched != nil {
		s.sched.Stop()
		s.sched.Wait()
	}
	if s.gen != nil {
		s.gen.Cancel()
	}
	if s.store != nil {
		s.store.Clear()
	}
	s.ready.Store(false)

	result, err := s.segmenter.Process(path, chunkSize)
	if err != nil {
		s.log.Error("load %s: %v", path, err)
		return nil, err
	}

	grid := s.surface.Grid(s.markerMode())
	pages, err := layout.BuildPages(grid, len(result.Chunks))
	if err != nil {
		s.log.Error("layout %s: %v", path, err)
		return nil, err
	}
	result.Header.TotalPages = len(pages)

	id := uuid.NewString()
	store := frame.NewStore()
	gen := frame.NewGenerator(store, s.renderer)

	s.transferID = id
	s.result = result
	s.grid = grid
	s.pages = pages
	s.store = store
	s.gen = gen
	s.sched = transmit.NewScheduler(store, s.surface, s.schedulerOptions())

	s.log.Info("loaded %s: %s -> %s, %d chunks, %d pages on %dx%d (%s)",
		result.Header.FileName,
		utils.FormatSize(result.Header.OriginalSize),
		utils.FormatSize(result.Header.CompressedSize),
		result.Header.TotalChunks, result.Header.TotalPages,
		grid.Cols, grid.Rows, grid.Mode)

	gen.Start(frame.Job{
		Header:         result.Header,
		Chunks:         result.Chunks,
		Grid:           grid,
		Pages:          pages,
		CaptureMarkers: s.cfg.CaptureMarkers,
		OnProgress: func(percent float64, message string) {
			s.hub.Broadcast(map[string]interface{}{
				"event":   "generation",
				"percent": percent,
				"message": message,
			})
		},
		OnComplete: func(err error) {
			s.completeGeneration(id, err)
		},
	})
	return result.Header, nil
}

func (s *Session) completeGeneration(id string, err error) {
	s.mu.Lock()
	current := s.transferID == id
	s.mu.Unlock()
	if !current {
		// A newer load superseded this generation.
		return
	}
	if err != nil {
		s.log.Error("generation: %v", err)
		s.hub.Broadcast(map[string]interface{}{"event": "generation-failed", "error": err.Error()})
		return
	}
	s.ready.Store(true)
	s.log.Info("generation complete")
	s.hub.Broadcast(map[string]interface{}{"event": "ready"})
}

// StartTransmission begins cycling frames. ErrNotReady until generation
// for the current file has completed; a no-op if already transmitting.
func (s *Session) StartTransmission() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched == nil || !s.ready.Load() {
		return ErrNotReady
	}
	s.sched.Start(s.pages, func(percent float64, status string) {
		s.hub.Broadcast(map[string]interface{}{
			"event":   "progress",
			"percent": percent,
			"status":  status,
		})
	})
	return nil
}

// StopTransmission signals the scheduler to stop. The last frame stays on
// the surface until something replaces it.
func (s *Session) StopTransmission() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched != nil {
		s.sched.Stop()
	}
}

// Status is the state snapshot served to the UI.
type Status struct {
	TransferID     string `json:"transferId,omitempty"`
	FileName       string `json:"fileName,omitempty"`
	OriginalSize   string `json:"originalSize,omitempty"`
	CompressedSize string `json:"compressedSize,omitempty"`
	TotalChunks    int    `json:"totalChunks"`
	TotalPages     int    `json:"totalPages"`
	GridCols       int    `json:"gridCols"`
	GridRows       int    `json:"gridRows"`
	DisplayMode    string `json:"displayMode"`
	Generating     bool   `json:"generating"`
	Ready          bool   `json:"ready"`
	Transmitting   bool   `json:"transmitting"`
	Cycles         int    `json:"cycles"`
	Displays       int    `json:"displays"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		TransferID:  s.transferID,
		DisplayMode: s.cfg.DisplayMode,
		Ready:       s.ready.Load(),
		Displays:    s.hub.ClientCount(),
	}
	if s.result != nil {
		h := s.result.Header
		st.FileName = h.FileName
		st.OriginalSize = utils.FormatSize(h.OriginalSize)
		st.CompressedSize = utils.FormatSize(h.CompressedSize)
		st.TotalChunks = h.TotalChunks
		st.TotalPages = h.TotalPages
		st.GridCols = s.grid.Cols
		st.GridRows = s.grid.Rows
	}
	if s.gen != nil {
		st.Generating = s.gen.Busy()
	}
	if s.sched != nil {
		st.Transmitting = s.sched.Running()
		st.Cycles = s.sched.Cycles()
	}
	return st
}

// Shutdown stops all background work for process exit.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != nil {
		s.gen.Cancel()
	}
	if s.sched != nil {
		s.sched.Stop()
		s.sched.Wait()
	}
}
