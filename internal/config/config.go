// Package config loads the sender settings from an optional JSON file,
// falling back to defaults that match what the capture side expects.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dn36772386/qrmatrix/internal/segment"
)

const (
	DisplayModeVideo = "video"
	DisplayModePhoto = "photo"

	CycleModeSingle     = "single"
	CycleModeContinuous = "continuous"

	MinFPS = 3
	MaxFPS = 10
)

// Config holds every externally tunable knob. Validated before anything
// reaches the core pipeline.
type Config struct {
	Port           int    `json:"port"`
	ChunkSize      int    `json:"chunkSize"`
	FPS            int    `json:"fps"`
	HeaderSeconds  int    `json:"headerSeconds"`
	PageSeconds    int    `json:"pageSeconds"`
	MarkerSeconds  int    `json:"markerSeconds"`
	DisplayMode    string `json:"displayMode"`
	CycleMode      string `json:"cycleMode"`
	CaptureMarkers bool   `json:"captureMarkers"`
	PreferZstd     bool   `json:"preferZstd"`
	LogFile        string `json:"logFile"`
}

func Default() Config {
	return Config{
		Port:           8080,
		ChunkSize:      segment.DefaultChunkSize,
		FPS:            5,
		HeaderSeconds:  3,
		PageSeconds:    1,
		MarkerSeconds:  2,
		DisplayMode:    DisplayModeVideo,
		CycleMode:      CycleModeContinuous,
		CaptureMarkers: false,
		PreferZstd:     true,
	}
}

var (
	loaded   Config
	loadOnce sync.Once
)

// Load reads the config file at path once per process. A missing file
// yields the defaults; a malformed file is an error the first time and
// defaults afterwards.
func Load(path string) (Config, error) {
	var loadErr error
	loadOnce.Do(func() {
		loaded = Default()
		f, err := os.Open(path)
		if err != nil {
			return // defaults
		}
		defer f.Close()
		cfg := Default()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			loadErr = fmt.Errorf("parse config %s: %w", path, err)
			return
		}
		loaded = cfg
	})
	if loadErr != nil {
		return loaded, loadErr
	}
	return loaded, loaded.Validate()
}

// Validate rejects values outside the enumerated/bounded sets the UI
// layer offers.
func (c Config) Validate() error {
	if !segment.ValidChunkSize(c.ChunkSize) {
		return fmt.Errorf("chunk size %d not in allowed set %v", c.ChunkSize, segment.AllowedChunkSizes)
	}
	if c.FPS < MinFPS || c.FPS > MaxFPS {
		return fmt.Errorf("fps %d out of range %d-%d", c.FPS, MinFPS, MaxFPS)
	}
	if c.HeaderSeconds < 1 || c.PageSeconds < 1 || c.MarkerSeconds < 1 {
		return fmt.Errorf("dwell seconds must be at least 1")
	}
	if c.DisplayMode != DisplayModeVideo && c.DisplayMode != DisplayModePhoto {
		return fmt.Errorf("unknown display mode %q", c.DisplayMode)
	}
	if c.CycleMode != CycleModeSingle && c.CycleMode != CycleModeContinuous {
		return fmt.Errorf("unknown cycle mode %q", c.CycleMode)
	}
	return nil
}
