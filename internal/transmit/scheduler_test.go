package transmit

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/dn36772386/qrmatrix/internal/frame"
	"github.com/dn36772386/qrmatrix/internal/layout"
)

// fakeSurface records draw events together with the tick counter value at
// the time of the draw, so dwell lengths can be checked exactly.
type drawEvent struct {
	img  image.Image
	tick int
}

type fakeSurface struct {
	mu     sync.Mutex
	clears int
	draws  []drawEvent
	tick   *int
}

func (f *fakeSurface) Clear() {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
}

func (f *fakeSurface) DrawImage(img image.Image, x, y int, anchor Anchor) {
	f.mu.Lock()
	f.draws = append(f.draws, drawEvent{img: img, tick: *f.tick})
	f.mu.Unlock()
}

func (f *fakeSurface) DrawText(x, y int, text, color string) {}
func (f *fakeSurface) Center() (int, int)                    { return 400, 300 }

func (f *fakeSurface) drawn() []drawEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]drawEvent(nil), f.draws...)
}

// testFixture builds a store with distinct images for the header, each
// page and both capture markers, plus a scheduler with a fake clock whose
// sleep hook advances the shared tick counter.
type testFixture struct {
	store   *frame.Store
	surface *fakeSurface
	sched   *Scheduler
	tick    int

	header image.Image
	pages  []layout.Page
	pageIm []image.Image
	start  image.Image
	stop   image.Image

	onTick func()
}

func newFixture(t *testing.T, pageCount int, opts Options) *testFixture {
	t.Helper()
	fx := &testFixture{store: frame.NewStore()}
	fx.surface = &fakeSurface{tick: &fx.tick}

	fx.header = image.NewRGBA(image.Rect(0, 0, 1, 1))
	fx.store.Put(frame.HeaderKey, &frame.Frame{Kind: frame.KindHeader, Image: fx.header})
	fx.start = image.NewRGBA(image.Rect(0, 0, 2, 2))
	fx.store.Put(frame.RecordStartKey, &frame.Frame{Kind: frame.KindControl, Image: fx.start})
	fx.stop = image.NewRGBA(image.Rect(0, 0, 3, 3))
	fx.store.Put(frame.RecordStopKey, &frame.Frame{Kind: frame.KindControl, Image: fx.stop})

	grid := layout.NewGrid(5, 4, layout.FourMarkers) // capacity 16
	pages, err := layout.BuildPages(grid, pageCount*16)
	if err != nil {
		t.Fatalf("BuildPages() failed: %v", err)
	}
	fx.pages = pages
	for _, p := range pages {
		img := image.NewRGBA(image.Rect(0, 0, 10+p.Number, 10))
		fx.pageIm = append(fx.pageIm, img)
		fx.store.Put(frame.PageKey(p.Start), &frame.Frame{
			Kind: frame.KindPage, Image: img, Page: p.Number, Start: p.Start, End: p.End,
		})
	}

	fx.sched = NewScheduler(fx.store, fx.surface, opts)
	fx.sched.now = func() time.Time { return time.Time{} }
	fx.sched.sleep = func(time.Duration) {
		fx.tick++
		if fx.onTick != nil {
			fx.onTick()
		}
	}
	return fx
}

func TestSingleCycleSequenceAndDwell(t *testing.T) {
	opts := Options{
		FPS:            5,
		HeaderSeconds:  3, // 15 ticks
		PageSeconds:    2, // 10 ticks
		MarkerSeconds:  1, // 5 ticks
		CycleMode:      SingleCycle,
		CaptureMarkers: true,
	}
	fx := newFixture(t, 3, opts)

	var progress []float64
	var status []string
	fx.sched.Start(fx.pages, func(p float64, s string) {
		progress = append(progress, p)
		status = append(status, s)
	})
	fx.sched.Wait()

	draws := fx.surface.drawn()
	want := []image.Image{fx.start, fx.header, fx.pageIm[0], fx.pageIm[1], fx.pageIm[2], fx.stop}
	if len(draws) != len(want) {
		t.Fatalf("got %d draws, want %d", len(draws), len(want))
	}
	for i, d := range draws {
		if d.img != want[i] {
			t.Fatalf("draw %d shows the wrong frame", i)
		}
	}

	// Page dwell: fps=5, page_seconds=2 means exactly 10 ticks between
	// consecutive page draws.
	if d := draws[3].tick - draws[2].tick; d != 10 {
		t.Errorf("page 1 dwell = %d ticks, want 10", d)
	}
	if d := draws[4].tick - draws[3].tick; d != 10 {
		t.Errorf("page 2 dwell = %d ticks, want 10", d)
	}
	// Header dwell: 15 ticks between header draw and first page draw.
	if d := draws[2].tick - draws[1].tick; d != 15 {
		t.Errorf("header dwell = %d ticks, want 15", d)
	}

	if len(progress) != 3 {
		t.Fatalf("got %d progress reports, want 3", len(progress))
	}
	if progress[len(progress)-1] != 100 {
		t.Errorf("final progress = %.1f, want 100", progress[len(progress)-1])
	}
	if status[0] != "page 1/3, chunks 1-16 (cycle 1)" {
		t.Errorf("unexpected status line: %q", status[0])
	}
	if fx.sched.Cycles() != 1 {
		t.Errorf("cycle count = %d, want 1", fx.sched.Cycles())
	}
	if fx.sched.Running() {
		t.Error("scheduler still running after single cycle")
	}
}

func TestContinuousModeLoopsUntilStopped(t *testing.T) {
	opts := Options{
		FPS:            2,
		HeaderSeconds:  1,
		PageSeconds:    1,
		MarkerSeconds:  1,
		CycleMode:      Continuous,
		CaptureMarkers: true,
	}
	fx := newFixture(t, 2, opts)

	fx.onTick = func() {
		if fx.sched.Cycles() >= 2 {
			fx.sched.Stop()
		}
	}
	fx.sched.Start(fx.pages, nil)
	fx.sched.Wait()

	if fx.sched.Cycles() != 2 {
		t.Fatalf("cycle count = %d, want 2", fx.sched.Cycles())
	}
	// The graceful-shutdown exception: the stop-recording marker is still
	// shown after cancellation.
	draws := fx.surface.drawn()
	if len(draws) == 0 || draws[len(draws)-1].img != fx.stop {
		t.Fatal("expected the stop-capture marker as the final frame")
	}
	if fx.sched.Running() {
		t.Error("scheduler still running after stop")
	}
}

func TestStopWithoutMarkersExitsPromptly(t *testing.T) {
	opts := Options{
		FPS:           5,
		HeaderSeconds: 1,
		PageSeconds:   1,
		CycleMode:     Continuous,
	}
	fx := newFixture(t, 1, opts)
	fx.onTick = func() {
		if fx.tick >= 3 {
			fx.sched.Stop()
		}
	}
	fx.sched.Start(fx.pages, nil)
	fx.sched.Wait()

	if fx.tick > 5 {
		t.Errorf("loop ran %d ticks after stop at tick 3", fx.tick)
	}
}

func TestStartWhileRunningIsNoOp(t *testing.T) {
	opts := DefaultOptions()
	fx := newFixture(t, 1, opts)

	release := make(chan struct{})
	fx.sched.sleep = func(time.Duration) {
		fx.tick++
		<-release
	}
	fx.sched.Start(fx.pages, nil)
	if !fx.sched.Running() {
		t.Fatal("scheduler should be running")
	}
	// A second Start must not spawn a second loop.
	fx.sched.Start(fx.pages, nil)

	fx.sched.Stop()
	close(release)
	fx.sched.Wait()
	if fx.sched.Running() {
		t.Error("scheduler still running after stop")
	}
}

func TestRestartResetsCounters(t *testing.T) {
	opts := Options{
		FPS:           2,
		HeaderSeconds: 1,
		PageSeconds:   1,
		CycleMode:     SingleCycle,
	}
	fx := newFixture(t, 1, opts)
	fx.sched.Start(fx.pages, nil)
	fx.sched.Wait()
	if fx.sched.Cycles() != 1 {
		t.Fatalf("cycle count = %d after first run, want 1", fx.sched.Cycles())
	}

	fx.sched.Start(fx.pages, nil)
	if fx.sched.Cycles() != 0 && fx.sched.Cycles() != 1 {
		t.Fatalf("counters not reset on restart: cycles = %d", fx.sched.Cycles())
	}
	fx.sched.Wait()
	if fx.sched.Cycles() != 1 {
		t.Fatalf("cycle count = %d after second run, want 1", fx.sched.Cycles())
	}
}

func TestMissingFramesAreSkippedNotFatal(t *testing.T) {
	opts := Options{
		FPS:           2,
		HeaderSeconds: 1,
		PageSeconds:   1,
		CycleMode:     SingleCycle,
	}
	fx := newFixture(t, 2, opts)
	// Simulate generation lagging behind playback.
	fx.store.Clear()

	fx.sched.Start(fx.pages, nil)
	fx.sched.Wait()

	if len(fx.surface.drawn()) != 0 {
		t.Error("nothing should be drawn when every frame is missing")
	}
	if fx.sched.Running() {
		t.Error("scheduler should have stopped cleanly")
	}
}

func TestHeaderOnlyTransferStopsAfterHeader(t *testing.T) {
	opts := Options{
		FPS:           2,
		HeaderSeconds: 1,
		PageSeconds:   1,
		CycleMode:     Continuous,
	}
	fx := newFixture(t, 0, opts)

	fx.sched.Start(nil, nil)
	fx.sched.Wait()

	draws := fx.surface.drawn()
	if len(draws) != 1 || draws[0].img != fx.header {
		t.Fatalf("expected exactly the header frame, got %d draws", len(draws))
	}
}
