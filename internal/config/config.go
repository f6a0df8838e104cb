// Package config handles scopegrab configuration
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Instrument connection
	Hostname       string // default instrument, used when no hostname argument is given
	Port           int    // SCPI-over-TCP port (5555 on DS1000Z)
	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	// Capture
	WireFormat string // on-wire display format requested from the scope: PNG or BMP24
	SavePath   string // directory for output files; "$cwd" means current directory
	ScreenW    int    // expected screen resolution, must match the region catalog
	ScreenH    int
	FontPath   string // optional TTF override for annotations

	// Duplicate suppression
	DedupDistance int // max perceptual hash distance still considered "same capture"

	// Thumbnails
	ThumbWidth int

	// Capture history
	HistoryPath string // sqlite file; empty disables history

	// Live view server
	HTTPAddr    string
	CaptureRate float64 // Hz
}

func Load() *Config {
	// Populate the environment from a .env file when present; real env wins.
	_ = godotenv.Load()

	return &Config{
		Hostname:       getEnv("SCOPE_HOST", ""),
		Port:           getEnvInt("SCOPE_PORT", 5555),
		ConnectTimeout: getEnvDuration("SCOPE_CONNECT_TIMEOUT", 5*time.Second),
		CommandTimeout: getEnvDuration("SCOPE_COMMAND_TIMEOUT", time.Second),
		WireFormat:     strings.ToUpper(getEnv("SCOPE_WIRE_FORMAT", "PNG")),
		SavePath:       getEnv("SCOPE_SAVE_PATH", "$cwd"),
		ScreenW:        getEnvInt("SCOPE_SCREEN_WIDTH", 800),
		ScreenH:        getEnvInt("SCOPE_SCREEN_HEIGHT", 480),
		FontPath:       getEnv("SCOPE_FONT_PATH", ""),
		DedupDistance:  getEnvInt("SCOPE_DEDUP_DISTANCE", 0),
		ThumbWidth:     getEnvInt("SCOPE_THUMB_WIDTH", 320),
		HistoryPath:    getEnv("SCOPE_HISTORY_PATH", ""),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
		CaptureRate:    getEnvFloat("SCOPE_CAPTURE_RATE", 1.0),
	}
}

// ResolveSavePath expands the "$cwd" placeholder.
func (c *Config) ResolveSavePath() string {
	if c.SavePath == "$cwd" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	return c.SavePath
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
