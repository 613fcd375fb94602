package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pixelqc/internal/config"
)

var (
	globalLogger     *slog.Logger
	globalLoggerOnce sync.Once

	// logFile is the open log file, if logging.output includes "file"
	logFile   *os.File
	logFileMu sync.Mutex
)

// InitializeLogger builds the process logger from configuration and installs
// it as the slog default. Only the first call has any effect.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	globalLoggerOnce.Do(func() {
		var w io.Writer
		w, err = logOutput(cfg)
		if err != nil {
			return
		}
		globalLogger = newRunLogger(w, &slog.HandlerOptions{
			AddSource: cfg.Development,
			Level:     parseLogLevel(cfg.Level),
		})
		slog.SetDefault(globalLogger)
	})
	return globalLogger, err
}

// GetLogger returns the process logger, or the slog default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// NewLogger builds a JSON logger on w without touching the process logger.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return newRunLogger(w, &slog.HandlerOptions{Level: parseLogLevel(level)})
}

func newRunLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(&runContextHandler{Handler: slog.NewJSONHandler(w, opts)})
}

// logOutput resolves logging.output. stdout is never used: it carries the
// run summary.
func logOutput(cfg config.LoggingConfig) (io.Writer, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return os.Stderr, nil
	}

	file, err := openLogFile(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logFileMu.Lock()
	logFile = file
	logFileMu.Unlock()

	if output == "both" {
		return io.MultiWriter(os.Stderr, file), nil
	}
	return file, nil
}

// runContextHandler stamps every record with the trace and run ids carried
// by the context it was logged with.
type runContextHandler struct {
	slog.Handler
}

func (h *runContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	if runID := GetRunID(ctx); runID != "" {
		r.AddAttrs(slog.String("run_id", runID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *runContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *runContextHandler) WithGroup(name string) slog.Handler {
	return &runContextHandler{Handler: h.Handler.WithGroup(name)}
}

// parseLogLevel maps logging.level to a slog level; unknown names mean info
func parseLogLevel(level string) slog.Level {
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// CloseLogFile closes the log file opened by InitializeLogger, if any
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ResetLoggerForTesting lets the next InitializeLogger call take effect
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	globalLogger = nil
	globalLoggerOnce = sync.Once{}
}

func openLogFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, nil
}
