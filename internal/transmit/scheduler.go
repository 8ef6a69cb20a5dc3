// Package transmit drives the display of generated frames: a timer loop
// that shows the header, cycles page frames at a fixed rate and brackets
// the pass with capture markers when configured.
package transmit

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dn36772386/qrmatrix/internal/frame"
	"github.com/dn36772386/qrmatrix/internal/layout"
)

// Anchor tells the surface how to place an image relative to (x, y).
type Anchor int

const (
	AnchorCenter Anchor = iota
	AnchorTopLeft
)

// Surface is the render target consumed by the scheduler. Implementations
// must be safe to call from the scheduler goroutine.
type Surface interface {
	Clear()
	DrawImage(img image.Image, x, y int, anchor Anchor)
	DrawText(x, y int, text, color string)
	Center() (x, y int)
}

// CycleMode selects whether transmission stops after one pass over the
// pages or loops until cancelled.
type CycleMode int

const (
	SingleCycle CycleMode = iota
	Continuous
)

// ProgressFunc receives transmission progress (0..100) and a status line.
type ProgressFunc func(percent float64, status string)

// Options fixes the timing discipline for one session. Dwells are wall
// clock seconds converted to ticks at the configured frame rate.
type Options struct {
	FPS            int
	HeaderSeconds  int
	PageSeconds    int
	MarkerSeconds  int
	CycleMode      CycleMode
	CaptureMarkers bool
}

// DefaultOptions mirror the timing the capture side is tuned for.
func DefaultOptions() Options {
	return Options{
		FPS:           5,
		HeaderSeconds: 3,
		PageSeconds:   1,
		MarkerSeconds: 2,
		CycleMode:     Continuous,
	}
}

type state int

const (
	stateStartMarker state = iota
	stateHeader
	statePage
	stateEndMarker
	stateStopped
)

// Scheduler cycles frames from the store onto the surface. One active
// session per instance; Start while running is a no-op.
type Scheduler struct {
	store   *frame.Store
	surface Surface
	opts    Options

	running atomic.Bool
	cycles  atomic.Int32
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Replaceable in tests for deterministic timing.
	now   func() time.Time
	sleep func(time.Duration)
}

func NewScheduler(store *frame.Store, surface Surface, opts Options) *Scheduler {
	return &Scheduler{
		store:   store,
		surface: surface,
		opts:    opts,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Running reports whether a transmission loop is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Cycles returns how many complete passes over the pages have finished.
func (s *Scheduler) Cycles() int { return int(s.cycles.Load()) }

// Start begins transmitting the given pages. No-op if already running.
// All counters reset on each start.
func (s *Scheduler) Start(pages []layout.Page, onProgress ProgressFunc) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.cycles.Store(0)
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.run(ctx, pages, onProgress)
	}()
}

// Stop signals the loop to exit. Observed at the top of the next tick;
// when capture markers are configured the stop-recording frame is still
// shown before the loop terminates.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until the transmission loop has exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) run(ctx context.Context, pages []layout.Page, onProgress ProgressFunc) {
	interval := time.Second / time.Duration(s.opts.FPS)
	headerTicks := s.opts.FPS * s.opts.HeaderSeconds
	pageTicks := s.opts.FPS * s.opts.PageSeconds
	markerTicks := s.opts.FPS * s.opts.MarkerSeconds

	totalPages := len(pages)
	st := stateHeader
	if s.opts.CaptureMarkers {
		st = stateStartMarker
	}
	pageNum := 1
	ticks := 0
	displayed := false
	cancelled := false

	enter := func(next state) {
		st = next
		ticks = 0
		displayed = false
	}

	for st != stateStopped {
		tickStart := s.now()

		if ctx.Err() != nil && !cancelled {
			cancelled = true
			if s.opts.CaptureMarkers && st != stateEndMarker {
				enter(stateEndMarker)
			} else {
				break
			}
		}

		switch st {
		case stateStartMarker:
			if !displayed {
				displayed = s.showControl(frame.RecordStartKey)
			}
			ticks++
			if ticks >= markerTicks {
				enter(stateHeader)
			}

		case stateHeader:
			if !displayed {
				displayed = s.showHeader()
			}
			ticks++
			if ticks >= headerTicks {
				if totalPages == 0 {
					// Header-only transfer: nothing to cycle.
					if s.opts.CaptureMarkers {
						enter(stateEndMarker)
					} else {
						enter(stateStopped)
					}
				} else {
					pageNum = 1
					enter(statePage)
				}
			}

		case statePage:
			if !displayed {
				displayed = s.showPage(pages[pageNum-1])
			}
			ticks++
			if ticks >= pageTicks {
				if onProgress != nil {
					page := pages[pageNum-1]
					onProgress(float64(pageNum)/float64(totalPages)*100,
						fmt.Sprintf("page %d/%d, chunks %d-%d (cycle %d)",
							pageNum, totalPages, page.Start+1, page.End, s.Cycles()+1))
				}
				switch {
				case pageNum < totalPages:
					pageNum++
					enter(statePage)
				case s.opts.CycleMode == Continuous:
					s.cycles.Add(1)
					enter(stateHeader)
				default:
					s.cycles.Add(1)
					if s.opts.CaptureMarkers {
						enter(stateEndMarker)
					} else {
						enter(stateStopped)
					}
				}
			}

		case stateEndMarker:
			if !displayed {
				displayed = s.showControl(frame.RecordStopKey)
			}
			ticks++
			if ticks >= markerTicks {
				enter(stateStopped)
			}
		}

		if st == stateStopped {
			break
		}

		// Never sleep a negative duration and never try to catch up
		// missed ticks; under overload the rate degrades smoothly.
		elapsed := s.now().Sub(tickStart)
		if d := interval - elapsed; d > 0 {
			s.sleep(d)
		}
	}
}

// showHeader displays the enlarged header symbol centered, with the
// operator cue below it. A store miss means nothing to display this tick.
func (s *Scheduler) showHeader() bool {
	f, ok := s.store.Get(frame.HeaderKey)
	if !ok {
		return false
	}
	s.surface.Clear()
	x, y := s.surface.Center()
	s.surface.DrawImage(f.Image, x, y, AnchorCenter)
	s.surface.DrawText(x, y+320, "header frame - start recording on the capture device", "red")
	return true
}

func (s *Scheduler) showPage(page layout.Page) bool {
	f, ok := s.store.Get(frame.PageKey(page.Start))
	if !ok {
		return false
	}
	s.surface.Clear()
	s.surface.DrawImage(f.Image, 50, 50, AnchorTopLeft)
	return true
}

func (s *Scheduler) showControl(key string) bool {
	f, ok := s.store.Get(key)
	if !ok {
		return false
	}
	s.surface.Clear()
	x, y := s.surface.Center()
	s.surface.DrawImage(f.Image, x, y, AnchorCenter)
	return true
}
