package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// Level types
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	// Format types
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

// Opts holds logging configuration options.
type Opts struct {
	Fields   []string `long:"log-field" env:"LOG_FIELD" env-delim:"," description:"Inject fields at the topline level, using k:v"`
	Level    string   `long:"log-level" env:"LOG_LEVEL" description:"Log level: debug, info, warn, error" default:"info"`
	Format   string   `long:"log-format" env:"LOG_FORMAT" description:"Log format: json, text, console" default:"console"`
	FilePath string   `long:"log-file" env:"LOG_FILE" description:"Log to file instead of stderr"`
}

// Init initializes the default slog logger based on the provided options.
func Init(opts *Opts) error {
	logger, err := NewLogger(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// NewLogger returns a logger writing to stderr, or to opts.FilePath when set.
func NewLogger(opts *Opts) (*slog.Logger, error) {
	writer := io.Writer(os.Stderr)
	if opts.FilePath != "" {
		file, err := os.OpenFile(opts.FilePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		writer = file
	}
	return NewLoggerWithWriter(opts, writer)
}

// NewLoggerWithWriter returns a logger writing to w.
func NewLoggerWithWriter(opts *Opts, w io.Writer) (*slog.Logger, error) {
	handler, err := getHandler(opts, w)
	if err != nil {
		return nil, err
	}
	logger := slog.New(handler)
	for _, field := range opts.Fields {
		key, value, ok := strings.Cut(field, ":")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field format: %s", field)
		}
		logger = logger.With(key, value)
	}
	return logger, nil
}

func getHandler(opts *Opts, w io.Writer) (slog.Handler, error) {
	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}
	switch opts.Format {
	case FormatJSON:
		return slog.NewJSONHandler(w, handlerOpts), nil
	case FormatText:
		return slog.NewTextHandler(w, handlerOpts), nil
	case FormatConsole, "":
		return NewConsoleHandler(w, handlerOpts), nil
	default:
		return nil, fmt.Errorf("unrecognized format: %s", opts.Format)
	}
}

var levelToSlogLevel = map[string]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

func parseLevel(level string) slog.Level {
	if l, ok := levelToSlogLevel[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}
