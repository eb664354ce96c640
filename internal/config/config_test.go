package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(EnvChromePath, "")

	return filepath.Join(dir, "mangapark-dl")
}

func TestLoadMergedWithoutProfile(t *testing.T) {
	isolate(t)

	cfg, used, err := LoadMerged(Options{})
	require.NoError(t, err)

	assert.Contains(t, used, "default config in memory")
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.TimeoutDuration())
	assert.Equal(t, time.Second, cfg.PageDelay())
	assert.Equal(t, 5*time.Second, cfg.ChapterDelay())
}

func TestLoadMergedLayers(t *testing.T) {
	root := isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "configs", "Default.yaml"), path)

	// older profile: only a few keys, the rest keep defaults
	require.NoError(t, os.WriteFile(path, []byte("output: /srv/manga\nheadless: false\nchrome_path: /opt/chrome\nmarker: mpark\n"), 0644))

	cfg, used, err := LoadMerged(Options{})
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "/srv/manga", cfg.Output)
	assert.False(t, cfg.Headless)
	assert.Equal(t, "/opt/chrome", cfg.ChromePath)
	assert.Equal(t, "mpark", cfg.Marker)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, ".reader-main img", cfg.ReaderSelector)

	t.Setenv(EnvChromePath, "/usr/bin/chromium")
	cfg, _, err = LoadMerged(Options{})
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/chromium", cfg.ChromePath)

	cfg, _, err = LoadMerged(Options{ChromePath: "/flag/chrome", Output: "out", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, "/flag/chrome", cfg.ChromePath)
	assert.Equal(t, "out", cfg.Output)
	assert.True(t, cfg.Debug)
}

func TestLoadMergedIgnoreConfig(t *testing.T) {
	isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("output: elsewhere\n"), 0644))

	cfg, used, err := LoadMerged(Options{IgnoreConfig: true})
	require.NoError(t, err)
	assert.Equal(t, "(ignored config)", used)
	assert.Equal(t, "downloads", cfg.Output)
}

func TestLoadMergedBrokenProfile(t *testing.T) {
	isolate(t)

	path, err := InitDefaultConfig()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("timeout: [nope"), 0644))

	_, _, err = LoadMerged(Options{})
	assert.Error(t, err)
}

func TestNormalizeDefaults(t *testing.T) {
	c := &Config{Timeout: -1, BackoffMS: 0}
	normalizeDefaults(c)

	assert.Equal(t, "downloads", c.Output)
	assert.Equal(t, 30, c.Timeout)
	assert.Equal(t, "chrome", c.Engine)
	assert.Equal(t, 3, c.MaxRetries)
	assert.Equal(t, time.Second, c.Backoff())
}

func TestProfiles(t *testing.T) {
	isolate(t)

	_, err := ActiveConfigPath()
	assert.ErrorIs(t, err, ErrNoConfig)

	_, err = InitDefaultConfig()
	require.NoError(t, err)
	_, err = InitDefaultConfig()
	assert.ErrorIs(t, err, os.ErrExist)

	fast := DefaultConfig()
	fast.Engine = "static"
	fastPath, err := PathForLabel("fast")
	require.NoError(t, err)
	require.NoError(t, SaveYAML(fast, fastPath))

	list, err := ListConfigs()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Default", list[0].Label)
	assert.True(t, list[0].Active)
	assert.False(t, list[1].Active)

	require.NoError(t, SwitchConfig("fast"))
	cfg, used, err := LoadMerged(Options{})
	require.NoError(t, err)
	assert.Equal(t, fastPath, used)
	assert.Equal(t, "static", cfg.Engine)

	assert.Error(t, SwitchConfig("missing"))
	assert.Error(t, SwitchConfig("../etc"))
	assert.Error(t, SwitchConfig(" "))
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	c := DefaultConfig()
	c.CBZ = true
	c.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, " -output: downloads\n")
	assert.Contains(t, out, " -cbz: true\n")
	assert.NotContains(t, out, "chrome_path")
}
