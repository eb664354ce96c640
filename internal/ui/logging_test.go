package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, false)
	l.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 123_000_000, time.UTC) }

	l.Infof("Downloaded: %s", "page_001.jpg")
	l.Warnf("Attempt %d failed\n", 1)
	l.Debugf("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-03-09 14:05:07,123 - INFO - Downloaded: page_001.jpg", lines[0])
	assert.Equal(t, "2024-03-09 14:05:07,123 - WARNING - Attempt 1 failed", lines[1])
}

func TestWriterLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, true)

	l.Debugf("state %s", "Scraping")
	l.Errorf("boom")

	out := buf.String()
	assert.Contains(t, out, " - DEBUG - state Scraping")
	assert.Contains(t, out, " - ERROR - boom")
}

func TestLogFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("/data", LogFileName), LogFilePath("/data/downloads"))
	assert.Equal(t, filepath.Join("/data", LogFileName), LogFilePath("/data/downloads/"))
	assert.Equal(t, LogFileName, LogFilePath("downloads"))
}

func TestNewFileLoggerAppends(t *testing.T) {
	root := t.TempDir()
	dl := filepath.Join(root, "downloads")

	for i := 0; i < 2; i++ {
		l, closer, err := NewFileLogger(dl, false)
		require.NoError(t, err)
		l.Infof("run %d", i)
		require.NoError(t, closer.Close())
	}

	raw, err := os.ReadFile(filepath.Join(root, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), " - INFO - run 0\n")
	assert.Contains(t, string(raw), " - INFO - run 1\n")
}

func TestCaptureLogger(t *testing.T) {
	c := NewCaptureLogger()
	c.Infof("a %d", 1)
	c.Errorf("b")
	c.Infof("c")

	assert.Equal(t, []string{"a 1", "c"}, c.Messages("INFO"))
	assert.Equal(t, []string{"b"}, c.Messages("ERROR"))
	assert.Len(t, c.Entries(), 3)
}
