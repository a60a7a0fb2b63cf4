package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/celldiag/eiscore"
)

// Config holds the settings of the analyzer shell. The core itself takes
// only rb_max per analysis; everything else drives the surrounding
// tooling (artifacts, batch workers, webhook delivery, profiling).
type Config struct {
	Files      []string
	RbMax      float64
	Method     string
	Unity      bool
	JSONPath   string
	ImgSave    bool
	ImgPath    string
	PDFPath    string
	WebhookURL string
	Workers    int
	Quiet      bool
	CPUProfile string
	MemProfile string
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		RbMax:   eiscore.DefaultRbMax,
		Method:  string(eiscore.MethodLM),
		ImgPath: "bode.png",
		Workers: 5,
	}
}

// LoadEnv overlays defaults from the environment. A .env file in the
// working directory is read first when present; variables already set in
// the process environment win.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("EISFIT_RB_MAX"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.RbMax = f
		}
	}
	if v := os.Getenv("EISFIT_METHOD"); v != "" {
		c.Method = v
	}
	if v := os.Getenv("EISFIT_WEBHOOK_URL"); v != "" {
		c.WebhookURL = v
	}
	if v := os.Getenv("EISFIT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
}
