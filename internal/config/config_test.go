package config

import (
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"chunk size", func(c *Config) { c.ChunkSize = 2500 }, "chunk size"},
		{"fps low", func(c *Config) { c.FPS = 2 }, "fps"},
		{"fps high", func(c *Config) { c.FPS = 11 }, "fps"},
		{"display mode", func(c *Config) { c.DisplayMode = "hologram" }, "display mode"},
		{"cycle mode", func(c *Config) { c.CycleMode = "twice" }, "cycle mode"},
		{"dwell", func(c *Config) { c.PageSeconds = 0 }, "dwell"},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}
