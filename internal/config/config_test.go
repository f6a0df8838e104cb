package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	envVars := []string{
		"SCOPE_HOST", "SCOPE_PORT", "SCOPE_CONNECT_TIMEOUT", "SCOPE_COMMAND_TIMEOUT",
		"SCOPE_WIRE_FORMAT", "SCOPE_SAVE_PATH", "SCOPE_SCREEN_WIDTH", "SCOPE_SCREEN_HEIGHT",
		"SCOPE_FONT_PATH", "SCOPE_DEDUP_DISTANCE", "SCOPE_THUMB_WIDTH",
		"SCOPE_HISTORY_PATH", "HTTP_ADDR", "SCOPE_CAPTURE_RATE",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.Port != 5555 {
		t.Errorf("Port = %d, want 5555", cfg.Port)
	}
	if cfg.WireFormat != "PNG" {
		t.Errorf("WireFormat = %q, want PNG", cfg.WireFormat)
	}
	if cfg.ScreenW != 800 || cfg.ScreenH != 480 {
		t.Errorf("resolution = %dx%d, want 800x480", cfg.ScreenW, cfg.ScreenH)
	}
	if cfg.CommandTimeout != time.Second {
		t.Errorf("CommandTimeout = %v, want 1s", cfg.CommandTimeout)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want :8000", cfg.HTTPAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCOPE_PORT", "5025")
	t.Setenv("SCOPE_WIRE_FORMAT", "bmp24")
	t.Setenv("SCOPE_CONNECT_TIMEOUT", "250ms")
	t.Setenv("SCOPE_CAPTURE_RATE", "2.5")

	cfg := Load()

	if cfg.Port != 5025 {
		t.Errorf("Port = %d, want 5025", cfg.Port)
	}
	if cfg.WireFormat != "BMP24" {
		t.Errorf("WireFormat = %q, want BMP24 (upper-cased)", cfg.WireFormat)
	}
	if cfg.ConnectTimeout != 250*time.Millisecond {
		t.Errorf("ConnectTimeout = %v, want 250ms", cfg.ConnectTimeout)
	}
	if cfg.CaptureRate != 2.5 {
		t.Errorf("CaptureRate = %v, want 2.5", cfg.CaptureRate)
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("SCOPE_PORT", "not-a-number")
	t.Setenv("SCOPE_CAPTURE_RATE", "fast")

	cfg := Load()

	if cfg.Port != 5555 {
		t.Errorf("Port = %d, want default on parse failure", cfg.Port)
	}
	if cfg.CaptureRate != 1.0 {
		t.Errorf("CaptureRate = %v, want default on parse failure", cfg.CaptureRate)
	}
}

func TestResolveSavePath(t *testing.T) {
	cfg := &Config{SavePath: "/tmp/shots"}
	if got := cfg.ResolveSavePath(); got != "/tmp/shots" {
		t.Errorf("ResolveSavePath = %q, want /tmp/shots", got)
	}

	cfg.SavePath = "$cwd"
	wd, _ := os.Getwd()
	if got := cfg.ResolveSavePath(); got != wd {
		t.Errorf("ResolveSavePath = %q, want cwd %q", got, wd)
	}
}
