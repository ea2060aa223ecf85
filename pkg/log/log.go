package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger every component derives from
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Level is a log level as written in config files and flags
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

var levels = map[Level]zerolog.Level{
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	// Output defaults to stderr so command output on stdout stays clean
	Output io.Writer
	// Role is added to every entry when set, e.g. "barrel" or "gateway"
	Role string
}

// ParseLevel maps a flag value to a Level. Unknown values become info.
func ParseLevel(s string) Level {
	if _, ok := levels[Level(s)]; ok {
		return Level(s)
	}
	return InfoLevel
}

// Init replaces Logger. Loggers derived before Init keep the old settings.
func Init(cfg Config) {
	level, ok := levels[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSONOutput {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Role != "" {
		ctx = ctx.Str("role", cfg.Role)
	}
	Logger = ctx.Logger()
}

// WithComponent returns a child logger tagged with component
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNodeName tags a named node, such as a barrel registered as Barrel-2
func WithNodeName(component, name string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("node", name).Logger()
}

// WithDownloader tags a downloader worker by its id
func WithDownloader(id string) zerolog.Logger {
	return Logger.With().Str("component", "downloader").Str("downloader_id", id).Logger()
}
