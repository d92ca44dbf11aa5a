// Package logging configures the process-wide zerolog setup and hands out
// component-tagged loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // JSON lines vs console writer
}

var root zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	root = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Setup applies the configuration globally. Safe to call once at startup.
func Setup(cfg Config) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		out = f
	}

	if !cfg.JSONFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	root = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// Component returns a logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}
