// Package cli provides Cargo/rustc-style terminal output for strata:
// colored diagnostics for coded errors, tables and state badges.
// Colors are used only on an interactive terminal.
package cli

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// OutputMode determines how output is formatted.
type OutputMode int

const (
	// ModeTTY enables rich colored output for interactive terminals.
	ModeTTY OutputMode = iota
	// ModePlain outputs plain text without colors (for pipes/CI).
	ModePlain
	// ModeJSON outputs structured JSON for programmatic consumption.
	ModeJSON
)

// String returns the mode name.
func (m OutputMode) String() string {
	switch m {
	case ModeTTY:
		return "tty"
	case ModeJSON:
		return "json"
	default:
		return "plain"
	}
}

// Config holds CLI output configuration.
type Config struct {
	Mode   OutputMode
	Writer io.Writer
}

// DetectConfig picks the output mode for f.
// Rules:
//   - f is a TTY and neither NO_COLOR nor TERM=dumb is set -> ModeTTY
//   - otherwise -> ModePlain
func DetectConfig(f *os.File) *Config {
	mode := ModePlain
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		mode = ModeTTY
	}
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		mode = ModePlain
	}
	return &Config{Mode: mode, Writer: f}
}

// IsTTY returns true if running in interactive terminal mode.
func (c *Config) IsTTY() bool {
	return c.Mode == ModeTTY
}

// IsJSON returns true if running in JSON output mode.
func (c *Config) IsJSON() bool {
	return c.Mode == ModeJSON
}

// Global default config, initialized lazily.
var defaultCfg *Config

// Default returns the global configuration, detected from stdout on first use.
func Default() *Config {
	if defaultCfg == nil {
		defaultCfg = DetectConfig(os.Stdout)
	}
	return defaultCfg
}

// SetDefault sets the global configuration.
// Used for --json, --no-color and tests.
func SetDefault(cfg *Config) {
	defaultCfg = cfg
}

// EnableColors returns true if colors should be used.
func EnableColors() bool {
	return Default().IsTTY()
}
