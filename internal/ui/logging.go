package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogFileName is the log file created next to the download directory.
const LogFileName = "mangapark_dl.log"

const timeLayout = "2006-01-02 15:04:05,000"

// Logger is the sink every component logs through. It is passed in at
// construction time; nothing in this module logs through a global.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// WriterLogger writes "timestamp - LEVEL - message" lines to an io.Writer.
type WriterLogger struct {
	mu    sync.Mutex
	out   io.Writer
	Debug bool
	now   func() time.Time
}

func NewLogger(out io.Writer, debug bool) *WriterLogger {
	return &WriterLogger{out: out, Debug: debug, now: time.Now}
}

// LogFilePath returns where the log for downloadPath lives: in the parent
// directory of the download path.
func LogFilePath(downloadPath string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(downloadPath)), LogFileName)
}

// NewFileLogger builds the default logger: stdout mirrored into an
// append-only log file next to downloadPath. The returned closer closes the
// file.
func NewFileLogger(downloadPath string, debug bool) (*WriterLogger, io.Closer, error) {
	path := LogFilePath(downloadPath)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	return NewLogger(io.MultiWriter(os.Stdout, f), debug), f, nil
}

func (l *WriterLogger) Debugf(format string, args ...any) {
	if l.Debug {
		l.write("DEBUG", format, args...)
	}
}

func (l *WriterLogger) Infof(format string, args ...any) {
	l.write("INFO", format, args...)
}

func (l *WriterLogger) Warnf(format string, args ...any) {
	l.write("WARNING", format, args...)
}

func (l *WriterLogger) Errorf(format string, args ...any) {
	l.write("ERROR", format, args...)
}

func (l *WriterLogger) write(level, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.out, "%s - %s - %s\n", l.now().Format(timeLayout), level, msg)
}

// Entry is one message recorded by a CaptureLogger.
type Entry struct {
	Level   string
	Message string
}

// CaptureLogger keeps every message in memory. Tests use it in place of the
// console/file logger.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (c *CaptureLogger) Debugf(format string, args ...any) { c.add("DEBUG", format, args...) }
func (c *CaptureLogger) Infof(format string, args ...any)  { c.add("INFO", format, args...) }
func (c *CaptureLogger) Warnf(format string, args ...any)  { c.add("WARNING", format, args...) }
func (c *CaptureLogger) Errorf(format string, args ...any) { c.add("ERROR", format, args...) }

func (c *CaptureLogger) add(level, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (c *CaptureLogger) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Messages returns the messages logged at level, in order.
func (c *CaptureLogger) Messages(level string) []string {
	var out []string
	for _, e := range c.Entries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}
