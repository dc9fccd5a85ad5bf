// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls where and how log lines are written.
type Config struct {
	LogsDirectory string
	LogFileFormat string // fmt pattern with one %s for the date
	TimeZone      string
}

var (
	initialized int32
	logger      *log.Logger
	timeZone    *time.Location
	logFilePath string
	mu          sync.Mutex
)

// Setup initializes the logger with file and console output. Until it is
// called, all Log* helpers fall back to the stdlib logger.
func Setup(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if atomic.LoadInt32(&initialized) == 1 {
		return fmt.Errorf("logger already initialized")
	}

	if cfg.TimeZone == "" {
		cfg.TimeZone = "Local"
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return fmt.Errorf("loading time zone %q: %w", cfg.TimeZone, err)
	}
	timeZone = loc

	if err := os.MkdirAll(cfg.LogsDirectory, 0o775); err != nil {
		return fmt.Errorf("creating logs directory %q: %w", cfg.LogsDirectory, err)
	}

	name := fmt.Sprintf(cfg.LogFileFormat, time.Now().In(loc).Format("2006-01-02"))
	if filepath.IsAbs(name) {
		logFilePath = name
	} else {
		logFilePath = filepath.Join(cfg.LogsDirectory, name)
	}

	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return fmt.Errorf("opening log file %q: %w", logFilePath, err)
	}

	logger = log.New(io.MultiWriter(os.Stdout, logFile), "", 0)
	atomic.StoreInt32(&initialized, 1)
	LogInfo("Logger initialized, writing to %s", logFilePath)
	return nil
}

// IsInitialized reports whether Setup has completed.
func IsInitialized() bool {
	return atomic.LoadInt32(&initialized) == 1
}

// LogMessage writes one leveled line, prefixed with the caller's file:line.
func LogMessage(level string, message string, v ...interface{}) {
	if !IsInitialized() {
		log.Printf("[%s] %s", level, fmt.Sprintf(message, v...))
		return
	}

	_, file, line, _ := runtime.Caller(2)
	timestamp := time.Now().In(timeZone).Format("2006-01-02 15:04:05 MST")
	logger.Printf("[%s] %s %s:%d - %s", level, timestamp, filepath.Base(file), line, fmt.Sprintf(message, v...))
}

func LogInfo(message string, v ...interface{})  { LogMessage("INFO", message, v...) }
func LogWarn(message string, v ...interface{})  { LogMessage("WARN", message, v...) }
func LogError(message string, v ...interface{}) { LogMessage("ERROR", message, v...) }
func LogFatal(message string, v ...interface{}) {
	LogMessage("FATAL", message, v...)
	os.Exit(1)
}

// LogHTTPRequest records an inbound request with its client address.
func LogHTTPRequest(r *http.Request) {
	LogInfo("HTTP %s %s from %s", r.Method, r.URL.Path, GetClientIP(r))
}

// LogHTTPError records a request that ended with an error status.
func LogHTTPError(r *http.Request, status int, err error) {
	LogError("HTTP %d for %s %s from %s: %v", status, r.Method, r.URL.Path, GetClientIP(r), err)
}

// GetClientIP resolves the client address, preferring proxy headers.
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
