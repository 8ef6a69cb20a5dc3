package frame

import (
	"image"
	"strconv"
	"sync"
)

// Reserved store keys. Page frames are keyed by the page's first chunk
// index (see PageKey).
const (
	HeaderKey      = "header"
	RecordStartKey = "record-start"
	RecordStopKey  = "record-stop"
)

// PageKey returns the store key for the page starting at chunk index start.
func PageKey(start int) string { return strconv.Itoa(start) }

// Kind tags what a rendered frame shows.
type Kind int

const (
	KindHeader Kind = iota
	KindPage
	KindControl
)

// Frame is one rendered bitmap ready for the display surface.
type Frame struct {
	Kind  Kind
	Image image.Image

	// Page frames only.
	Page  int
	Start int
	End   int
}

// Store is the shared frame mapping between the generator and the
// scheduler. The lock is held only for the duration of each get/set;
// readers asking for a not-yet-generated key get a miss, never a block.
type Store struct {
	mu     sync.RWMutex
	frames map[string]*Frame
}

func NewStore() *Store {
	return &Store{frames: make(map[string]*Frame)}
}

// Get returns the frame under key, or (nil, false) if not yet generated.
func (s *Store) Get(key string) (*Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.frames[key]
	return f, ok
}

// Put publishes a frame under key, replacing any previous one.
func (s *Store) Put(key string, f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[key] = f
}

// Len returns the number of stored frames.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.frames)
}

// Clear discards all frames. Called when a new file is loaded.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = make(map[string]*Frame)
}
