// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) LogEntry {
	t.Helper()
	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func resetGlobal() {
	global = nil
	once = *new(sync.Once)
}

// =====================================================
// Logger Creation and Initialization Tests
// =====================================================

// TestInit verifies logger initialization.
func TestInit(t *testing.T) {
	resetGlobal()
	var buf bytes.Buffer
	Init(&buf, LevelInfo)

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil after Init()")
	}
	if logger.out != &buf {
		t.Error("Init() did not set output writer correctly")
	}
	if logger.minLevel != LevelInfo {
		t.Errorf("minLevel = %v, want LevelInfo", logger.minLevel)
	}
}

// TestInit_idempotent verifies Init is idempotent.
func TestInit_idempotent(t *testing.T) {
	resetGlobal()

	var buf1 bytes.Buffer
	Init(&buf1, LevelInfo)
	first := Get()

	var buf2 bytes.Buffer
	Init(&buf2, LevelDebug)

	if Get() != first {
		t.Error("Second Init() should be ignored, different logger returned")
	}
	if Get().out != &buf1 {
		t.Error("Second Init() should be ignored, output writer changed")
	}
}

// TestGet_default verifies default logger creation.
func TestGet_default(t *testing.T) {
	resetGlobal()

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil without Init()")
	}
	if logger.out != os.Stdout {
		t.Error("Get() should default to os.Stdout")
	}
}

// TestInitFile verifies the rotating file sink receives entries.
func TestInitFile(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	path := filepath.Join(t.TempDir(), "sync.log")
	InitFile(FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}, LevelInfo, false)
	Info("written to file", map[string]interface{}{"k": 1})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file = %q", data)
	}
}

// =====================================================
// Log Level Tests
// =====================================================

// TestParseLevel verifies config strings map to levels.
func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestLogLevel_shouldLog verifies log level filtering.
func TestLogLevel_shouldLog(t *testing.T) {
	tests := []struct {
		name     string
		minLevel LogLevel
		logLevel LogLevel
		expected bool
	}{
		{"debug logs at debug", LevelDebug, LevelDebug, true},
		{"debug logs at info", LevelInfo, LevelDebug, false},
		{"info logs at info", LevelInfo, LevelInfo, true},
		{"info logs at warn", LevelWarn, LevelInfo, false},
		{"warn logs at error", LevelError, LevelWarn, false},
		{"error logs at error", LevelError, LevelError, true},
		{"error logs at debug", LevelDebug, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(io.Discard, tt.minLevel)
			if got := logger.shouldLog(tt.logLevel); got != tt.expected {
				t.Errorf("shouldLog(%v) at minLevel %v = %v, want %v",
					tt.logLevel, tt.minLevel, got, tt.expected)
			}
		})
	}
}

// =====================================================
// Logging Tests
// =====================================================

// TestLogger_Debug verifies debug logging with context.
func TestLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelDebug)

	logger.Debug("test message", map[string]interface{}{"key": "value"})

	entry := decodeLine(t, &buf)
	if entry.Level != "DEBUG" {
		t.Errorf("Level = %q, want 'DEBUG'", entry.Level)
	}
	if entry.Message != "test message" {
		t.Errorf("Message = %q, want 'test message'", entry.Message)
	}
	if entry.Context["key"] != "value" {
		t.Errorf("Context['key'] = %v, want 'value'", entry.Context["key"])
	}
	if entry.Timestamp == "" {
		t.Error("Timestamp should be set")
	}
}

// TestLogger_Warn verifies warn logging.
func TestLogger_Warn(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelInfo).Warn("warning message")

	if entry := decodeLine(t, &buf); entry.Level != "WARN" {
		t.Errorf("Level = %q, want 'WARN'", entry.Level)
	}
}

// TestLogger_Error verifies error logging.
func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelInfo).Error("error occurred", io.ErrUnexpectedEOF)

	entry := decodeLine(t, &buf)
	if entry.Level != "ERROR" {
		t.Errorf("Level = %q, want 'ERROR'", entry.Level)
	}
	if !strings.Contains(entry.Error, io.ErrUnexpectedEOF.Error()) {
		t.Errorf("Error field = %q", entry.Error)
	}
}

// TestLogger_ErrorWithCode verifies error logging with code.
func TestLogger_ErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	ctx := map[string]interface{}{"field": "email"}
	New(&buf, LevelInfo).ErrorWithCode("validation failed", "VAL001", io.ErrUnexpectedEOF, ctx)

	entry := decodeLine(t, &buf)
	if entry.Context["error_code"] != "VAL001" {
		t.Errorf("error_code = %v, want 'VAL001'", entry.Context["error_code"])
	}
	if entry.Context["field"] != "email" {
		t.Errorf("field = %v, want 'email'", entry.Context["field"])
	}
	if _, leaked := ctx["error_code"]; leaked {
		t.Error("ErrorWithCode() must not mutate the caller's context")
	}
}

// TestLogger_mergedContext verifies multiple context maps are merged.
func TestLogger_mergedContext(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, LevelInfo).Info("merge", map[string]interface{}{"a": 1}, map[string]interface{}{"b": "two"})

	entry := decodeLine(t, &buf)
	if entry.Context["a"] != float64(1) || entry.Context["b"] != "two" {
		t.Errorf("Context = %v", entry.Context)
	}
}

// TestLogger_filtering verifies minimum level filtering.
func TestLogger_filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Errorf("Expected 2 log lines, got %d", len(lines))
	}
}

// TestLogger_concurrent verifies concurrent writes produce whole lines.
func TestLogger_concurrent(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	logger := New(&lockedWriter{mu: &mu, w: &buf}, LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("concurrent", map[string]interface{}{"n": n})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for _, line := range lines {
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
	}
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
