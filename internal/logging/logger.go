// Package logging provides structured logging for the sync core.
package logging

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// ParseLevel maps a config string to a LogLevel, defaulting to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger provides structured JSON logging.
type Logger struct {
	out      io.Writer
	minLevel LogLevel
	base     *logrus.Logger
}

var (
	// global logger instance
	global *Logger
	once   sync.Once
)

// New creates a logger writing JSON lines to out.
func New(out io.Writer, minLevel LogLevel) *Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(minLevel.logrus())
	base.SetFormatter(entryFormatter{})
	return &Logger{out: out, minLevel: minLevel, base: base}
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Error     string                 `json:"error,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// entryFormatter renders logrus entries as one LogEntry JSON line.
type entryFormatter struct{}

func (entryFormatter) Format(e *logrus.Entry) ([]byte, error) {
	entry := LogEntry{
		Timestamp: e.Time.UTC().Format(time.RFC3339),
		Level:     levelName(e.Level),
		Message:   e.Message,
	}
	if v, ok := e.Data["error"].(string); ok {
		entry.Error = v
	}
	if v, ok := e.Data["context"].(map[string]interface{}); ok {
		entry.Context = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func levelName(l logrus.Level) string {
	switch l {
	case logrus.DebugLevel, logrus.TraceLevel:
		return string(LevelDebug)
	case logrus.WarnLevel:
		return string(LevelWarn)
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return string(LevelError)
	default:
		return string(LevelInfo)
	}
}

// shouldLog checks if a level should be logged.
func (l *Logger) shouldLog(level LogLevel) bool {
	return l.base.IsLevelEnabled(level.logrus())
}

// Init initializes the global logger. Later calls are ignored.
func Init(out io.Writer, minLevel LogLevel) {
	once.Do(func() {
		global = New(out, minLevel)
	})
}

// FileOptions configures rotating file output.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// InitFile initializes the global logger with a rotating file sink. When
// alsoStdout is set, entries are mirrored to stdout.
func InitFile(opts FileOptions, minLevel LogLevel, alsoStdout bool) {
	var out io.Writer = &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	if alsoStdout {
		out = io.MultiWriter(os.Stdout, out)
	}
	Init(out, minLevel)
}

// Get returns the global logger instance.
func Get() *Logger {
	if global == nil {
		Init(os.Stdout, LevelInfo)
	}
	return global
}

func (l *Logger) fields(err error, context map[string]interface{}) *logrus.Entry {
	entry := logrus.NewEntry(l.base)
	if len(context) > 0 {
		entry = entry.WithField("context", context)
	}
	if err != nil {
		entry = entry.WithField("error", err.Error())
	}
	return entry
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.fields(nil, mergeContext(context...)).Debug(message)
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.fields(nil, mergeContext(context...)).Info(message)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.fields(nil, mergeContext(context...)).Warn(message)
}

// Error logs an error message.
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	l.fields(err, mergeContext(context...)).Error(message)
}

// ErrorWithCode logs an error message tagged with an error code.
func (l *Logger) ErrorWithCode(message, code string, err error, context ...map[string]interface{}) {
	ctx := mergeContext(context...)
	if ctx == nil {
		ctx = make(map[string]interface{}, 1)
	}
	ctx["error_code"] = code
	l.fields(err, ctx).Error(message)
}

// mergeContext merges multiple context maps into a fresh map.
func mergeContext(context ...map[string]interface{}) map[string]interface{} {
	if len(context) == 0 {
		return nil
	}
	merged := make(map[string]interface{})
	for _, c := range context {
		for k, v := range c {
			merged[k] = v
		}
	}
	return merged
}

// Convenience functions using global logger

func Debug(message string, context ...map[string]interface{}) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]interface{}) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]interface{}) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]interface{}) {
	Get().Error(message, err, context...)
}

func ErrorWithCode(message, code string, err error, context ...map[string]interface{}) {
	Get().ErrorWithCode(message, code, err, context...)
}
