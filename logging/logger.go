// Package logging provides a rotating file logger that satisfies the mono
// logger interface, so services can log to disk instead of the app logger.
package logging

import (
	"fmt"
	"io"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the log file and its rotation.
type Config struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      string
	System     string
}

// DefaultConfig returns the default rotation settings.
func DefaultConfig(filename string) Config {
	return Config{
		Filename:   filename,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
		Level:      "info",
		System:     "task-lifecycle",
	}
}

// Logger adapts a logrus entry to types.Logger.
type Logger struct {
	entry *logrus.Entry
}

var _ types.Logger = (*Logger)(nil)

// New builds a logger writing JSON lines to a lumberjack-rotated file.
// The returned closer closes the file.
func New(cfg Config) (*Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	out := &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return NewWithWriter(out, level, cfg.System), out, nil
}

// NewWithWriter builds a logger writing JSON lines to w.
func NewWithWriter(w io.Writer, level logrus.Level, system string) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{entry: logrus.NewEntry(l).WithField("system", system)}
}

func (l *Logger) Debug(msg string, args ...any) { l.with(args).Debug(msg) }
func (l *Logger) Info(msg string, args ...any)  { l.with(args).Info(msg) }
func (l *Logger) Warn(msg string, args ...any)  { l.with(args).Warn(msg) }
func (l *Logger) Error(msg string, args ...any) { l.with(args).Error(msg) }

// With returns a logger that adds the key/value pairs in args to every entry.
func (l *Logger) With(args ...any) types.Logger {
	return &Logger{entry: l.with(args)}
}

// WithError returns a logger that records err on every entry.
func (l *Logger) WithError(err error) types.Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// WithModule returns a logger tagged with the module name.
func (l *Logger) WithModule(module string) types.Logger {
	return &Logger{entry: l.entry.WithField("module", module)}
}

// with attaches an event id plus the key/value pairs in args. A trailing key
// without a value is kept under "extra".
func (l *Logger) with(args []any) *logrus.Entry {
	fields := logrus.Fields{"event_id": uuid.NewString()}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["extra"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return l.entry.WithFields(fields)
}
