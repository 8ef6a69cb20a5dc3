package server

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dn36772386/qrmatrix/internal/config"
	"github.com/dn36772386/qrmatrix/internal/segment"
	"github.com/dn36772386/qrmatrix/internal/utils"
)

// fastRenderer avoids QR rasterization cost in session tests.
type fastRenderer struct{}

func (fastRenderer) Render(payload string, sizePx int, fg color.Color) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, sizePx, sizePx)), nil
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	logger, err := utils.NewLogger("")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := config.Default()
	cfg.CycleMode = config.CycleModeSingle
	s := NewSession(cfg, logger, NewHub())
	s.renderer = fastRenderer{}
	return s
}

func writeTestFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x7f3"), size/4), 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status().Ready {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("generation never became ready")
}

func TestSessionLoadAndStatus(t *testing.T) {
	s := newTestSession(t)
	path := writeTestFile(t, 20000)

	header, err := s.Load(path, 500)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if header.ChunkSize != 500 {
		t.Errorf("header chunk size = %d, want 500", header.ChunkSize)
	}
	if header.TotalPages == 0 {
		t.Error("header total pages not filled in")
	}
	waitReady(t, s)

	st := s.Status()
	if st.FileName != "payload.bin" {
		t.Errorf("status file name = %q", st.FileName)
	}
	if st.TotalPages != header.TotalPages {
		t.Errorf("status pages = %d, want %d", st.TotalPages, header.TotalPages)
	}
	if st.TransferID == "" {
		t.Error("no transfer id assigned")
	}
	if st.Transmitting {
		t.Error("should not transmit before start")
	}
}

func TestSessionRejectsInvalidChunkSize(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Load(writeTestFile(t, 100), 12345); err == nil {
		t.Fatal("expected error for chunk size outside the allowed set")
	}
}

func TestSessionLoadMissingFile(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Load(filepath.Join(t.TempDir(), "missing.bin"), 800)
	if !errors.Is(err, segment.ErrFileRead) {
		t.Fatalf("expected ErrFileRead, got %v", err)
	}
}

func TestStartBeforeReadyFails(t *testing.T) {
	s := newTestSession(t)
	if err := s.StartTransmission(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestReloadInvalidatesPreviousTransfer(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.Load(writeTestFile(t, 20000), 500); err != nil {
		t.Fatalf("first Load() failed: %v", err)
	}
	waitReady(t, s)
	first := s.Status().TransferID

	if _, err := s.Load(writeTestFile(t, 4000), 300); err != nil {
		t.Fatalf("second Load() failed: %v", err)
	}
	st := s.Status()
	if st.TransferID == first {
		t.Error("transfer id not refreshed on reload")
	}
	waitReady(t, s)
	if got := s.Status().FileName; got != "payload.bin" {
		t.Errorf("status file = %q", got)
	}
}

func TestTransmissionLifecycle(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Load(writeTestFile(t, 2000), 300); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	waitReady(t, s)

	if err := s.StartTransmission(); err != nil {
		t.Fatalf("StartTransmission() failed: %v", err)
	}
	if !s.Status().Transmitting {
		t.Error("status should report transmitting")
	}
	s.StopTransmission()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && s.Status().Transmitting {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Status().Transmitting {
		t.Fatal("scheduler did not stop")
	}
}
