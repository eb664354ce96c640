package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvChromePath overrides chrome_path from the active profile.
const EnvChromePath = "MANGAPARK_DL_CHROME"

type Config struct {
	Output   string `yaml:"output"`
	Headless bool   `yaml:"headless"`
	Timeout  int    `yaml:"timeout"`
	Debug    bool   `yaml:"debug"`
	Progress bool   `yaml:"progress"`
	CBZ      bool   `yaml:"cbz"`

	Engine       string `yaml:"engine"`
	ChromePath   string `yaml:"chrome_path"`
	ImplicitWait int    `yaml:"implicit_wait"`

	MaxRetries     int `yaml:"max_retries"`
	BackoffMS      int `yaml:"backoff_ms"`
	SettleDelayMS  int `yaml:"settle_delay_ms"`
	PageDelayMS    int `yaml:"page_delay_ms"`
	ChapterDelayMS int `yaml:"chapter_delay_ms"`

	UserAgent      string `yaml:"user_agent"`
	Referer        string `yaml:"referer"`
	Marker         string `yaml:"marker"`
	ReaderSelector string `yaml:"reader_selector"`
}

// Options carries CLI values; non-zero fields win over the profile.
type Options struct {
	IgnoreConfig   bool
	Debug          bool
	Output         string
	Engine         string
	ChromePath     string
	UserAgent      string
	Referer        string
	Marker         string
	ReaderSelector string
}

func DefaultConfig() *Config {
	return &Config{
		Output:         "downloads",
		Headless:       true,
		Timeout:        30,
		Engine:         "chrome",
		ImplicitWait:   10,
		MaxRetries:     3,
		BackoffMS:      1000,
		SettleDelayMS:  3000,
		PageDelayMS:    1000,
		ChapterDelayMS: 5000,
		Referer:        "https://mangapark.io/",
		Marker:         "mangapark",
		ReaderSelector: ".reader-main img",
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Load reads path over the defaults so keys missing from an older profile
// keep their default value.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	return c, nil
}

// LoadMerged resolves defaults, then the active profile, then the
// environment, then opts. The second value describes where the profile came
// from.
func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		applyEnv(cfg)
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		applyEnv(cfg)
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `mangapark-dl config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := Load(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	applyEnv(cfg)
	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func applyEnv(c *Config) {
	if p := os.Getenv(EnvChromePath); p != "" {
		c.ChromePath = p
	}
}

func mergeConfig(c *Config, o Options) {
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Debug {
		c.Debug = true
	}
	if o.Engine != "" {
		c.Engine = o.Engine
	}
	if o.ChromePath != "" {
		c.ChromePath = o.ChromePath
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.Referer != "" {
		c.Referer = o.Referer
	}
	if o.Marker != "" {
		c.Marker = o.Marker
	}
	if o.ReaderSelector != "" {
		c.ReaderSelector = o.ReaderSelector
	}
}

func normalizeDefaults(c *Config) {
	def := DefaultConfig()

	if c.Output == "" {
		c.Output = def.Output
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Engine == "" {
		c.Engine = def.Engine
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = def.BackoffMS
	}
	if c.Marker == "" {
		c.Marker = def.Marker
	}
	if c.ReaderSelector == "" {
		c.ReaderSelector = def.ReaderSelector
	}
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) ImplicitWaitDuration() time.Duration {
	return time.Duration(c.ImplicitWait) * time.Second
}

func (c *Config) Backoff() time.Duration      { return ms(c.BackoffMS) }
func (c *Config) SettleDelay() time.Duration  { return ms(c.SettleDelayMS) }
func (c *Config) PageDelay() time.Duration    { return ms(c.PageDelayMS) }
func (c *Config) ChapterDelay() time.Duration { return ms(c.ChapterDelayMS) }

func ms(n int) time.Duration {
	if n < 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

func (c *Config) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, " -output: %s\n", c.Output)
	_, _ = fmt.Fprintf(w, " -engine: %s\n", c.Engine)
	_, _ = fmt.Fprintf(w, " -headless: %t\n", c.Headless)
	_, _ = fmt.Fprintf(w, " -timeout: %ds\n", c.Timeout)
	_, _ = fmt.Fprintf(w, " -implicit_wait: %ds\n", c.ImplicitWait)
	_, _ = fmt.Fprintf(w, " -max_retries: %d\n", c.MaxRetries)
	_, _ = fmt.Fprintf(w, " -delays: settle=%s page=%s chapter=%s backoff=%s\n",
		c.SettleDelay(), c.PageDelay(), c.ChapterDelay(), c.Backoff())
	if c.ChromePath != "" {
		_, _ = fmt.Fprintf(w, " -chrome_path: %s\n", c.ChromePath)
	}
	if c.UserAgent != "" {
		_, _ = fmt.Fprintf(w, " -user_agent: %s\n", c.UserAgent)
	}
	_, _ = fmt.Fprintf(w, " -referer: %s\n", c.Referer)
	_, _ = fmt.Fprintf(w, " -marker: %s\n", c.Marker)
	_, _ = fmt.Fprintf(w, " -reader_selector: %s\n", c.ReaderSelector)
	if c.Debug {
		_, _ = fmt.Fprintf(w, " -debug: %t\n", c.Debug)
	}
	if c.Progress {
		_, _ = fmt.Fprintf(w, " -progress: %t\n", c.Progress)
	}
	if c.CBZ {
		_, _ = fmt.Fprintf(w, " -cbz: %t\n", c.CBZ)
	}
}
