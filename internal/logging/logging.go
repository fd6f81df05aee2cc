// Package logging provides the engine's named sub-loggers: System, Store,
// Rollup, and Reader. Each is independently leveled and each writes to its
// own file when a log directory is configured (stderr otherwise), following
// the same shape as the teacher's logging.NewLogger("system"|"carbon"|"api",
// ...) trio, just backed by zerolog instead of a hand-rolled writer.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with the teacher's LogDebug/LogInfo/LogWarn/
// LogError/LogFatal call shape, so call sites read the same as the original
// even though the implementation changed.
type Logger struct {
	mu   sync.Mutex
	name string
	dir  string
	file *os.File
	zl   zerolog.Logger
}

// NewLogger opens (or reopens) the named logger. If dir is empty, output
// goes to stderr.
func NewLogger(name string, dir string, level zerolog.Level) *Logger {
	l := &Logger{name: name, dir: dir}
	l.open(level)
	return l
}

func (l *Logger) open(level zerolog.Level) {
	var w *os.File = os.Stderr
	if l.dir != "" {
		path := filepath.Join(l.dir, fmt.Sprintf("aggrollup.%s.log", l.name))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			w = f
			l.file = f
		}
	}
	l.zl = zerolog.New(w).Level(level).With().Timestamp().Str("logger", l.name).Logger()
}

// Reopen closes and reopens the underlying file, for log rotation on SIGHUP.
func (l *Logger) Reopen() {
	l.mu.Lock()
	defer l.mu.Unlock()
	level := l.zl.GetLevel()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.open(level)
}

// Close releases the underlying file handle, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) LogDebug(format string, args ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) LogInfo(format string, args ...interface{}) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) LogWarn(format string, args ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) LogError(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

// LogFatal logs at fatal level but, unlike the stdlib/zerolog default, does
// not call os.Exit: callers in a library have no business terminating the
// host process. It returns normally after logging.
func (l *Logger) LogFatal(format string, args ...interface{}) {
	l.zl.Error().Str("severity", "fatal").Msg(fmt.Sprintf(format, args...))
}

// TextToLevel maps the teacher's debug|info|warn|error|fatal strings onto
// zerolog levels.
func TextToLevel(text string) (zerolog.Level, error) {
	switch text {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "fatal":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unrecognized log level %q", text)
	}
}

// Loggers groups the engine's named sub-loggers, mirroring the teacher's
// config.G.Log struct.
type Loggers struct {
	System *Logger
	Store  *Logger
	Rollup *Logger
	Reader *Logger
}

// New builds the full set of named loggers at the given directory/level.
func New(dir string, level zerolog.Level) *Loggers {
	return &Loggers{
		System: NewLogger("system", dir, level),
		Store:  NewLogger("store", dir, level),
		Rollup: NewLogger("rollup", dir, level),
		Reader: NewLogger("reader", dir, level),
	}
}

// Reopen rotates every named logger's file, for SIGHUP handling.
func (l *Loggers) Reopen() {
	l.System.Reopen()
	l.Store.Reopen()
	l.Rollup.Reopen()
	l.Reader.Reopen()
}

// Close closes every named logger's file.
func (l *Loggers) Close() {
	l.System.Close()
	l.Store.Close()
	l.Rollup.Close()
	l.Reader.Close()
}
