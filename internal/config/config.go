package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/stoplist/internal/ebus"
)

// Config is everything the binaries read from the environment.
type Config struct {
	// e-bus fetcher
	BaseURL       string
	WaitTimeout   time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	Settle        time.Duration
	SelectorsFile string
	DebugHTMLDir  string

	// Chrome
	ChromePath string
	Headless   bool

	// Output and batch
	OutputDir    string
	BatchWorkers int

	// Server
	Port     string
	CacheTTL time.Duration

	DB DBConfig
}

// DBConfig locates the MariaDB snapshot archive.
type DBConfig struct {
	Host       string
	Port       string
	User       string
	Pass       string
	Name       string
	SkipSchema bool
}

// Enabled reports whether an archive database was configured.
func (d DBConfig) Enabled() bool {
	return strings.TrimSpace(d.Name) != ""
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:       getenvDefault("EBUS_BASE_URL", ebus.DefaultBaseURL),
		SelectorsFile: os.Getenv("EBUS_SELECTORS_FILE"),
		DebugHTMLDir:  os.Getenv("EBUS_DEBUG_HTML_DIR"),
		ChromePath:    os.Getenv("EBUS_CHROME_PATH"),
		OutputDir:     getenvDefault("EBUS_OUTPUT_DIR", "data/BUS_INFO"),
		Port:          getenvDefault("PORT", "8080"),
		DB: DBConfig{
			Host:       getenvDefault("DB_HOST", "127.0.0.1"),
			Port:       getenvDefault("DB_PORT", "3306"),
			User:       os.Getenv("DB_USER"),
			Pass:       os.Getenv("DB_PASS"),
			Name:       os.Getenv("DB_NAME"),
			SkipSchema: parseBool(os.Getenv("DB_SKIP_SCHEMA"), false),
		},
	}

	var err error
	if cfg.WaitTimeout, err = millis("EBUS_WAIT_TIMEOUT_MS", 10000, 1); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = millis("EBUS_RETRY_DELAY_MS", 5000, 0); err != nil {
		return nil, err
	}
	if cfg.Settle, err = millis("EBUS_SETTLE_MS", 5000, 0); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = positiveInt("EBUS_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.BatchWorkers, err = positiveInt("BATCH_WORKERS", 1); err != nil {
		return nil, err
	}

	ttl, err := positiveInt("CACHE_TTL_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = time.Duration(ttl) * time.Second

	cfg.Headless = parseBool(os.Getenv("EBUS_HEADLESS"), true)

	return cfg, nil
}

// FetcherOptions turns the fetcher settings into ebus.Options, loading the
// selector override file when one is configured.
func (c *Config) FetcherOptions() (ebus.Options, error) {
	sel, err := ebus.LoadSelectors(c.SelectorsFile)
	if err != nil {
		return ebus.Options{}, err
	}
	return ebus.Options{
		BaseURL:      c.BaseURL,
		Timeout:      c.WaitTimeout,
		MaxRetries:   c.MaxRetries,
		RetryDelay:   c.RetryDelay,
		Settle:       c.Settle,
		Selectors:    sel,
		DebugHTMLDir: c.DebugHTMLDir,
	}, nil
}

func (c *Config) BrowserOptions() ebus.BrowserOptions {
	return ebus.BrowserOptions{
		ExecPath: c.ChromePath,
		Headless: c.Headless,
	}
}

func millis(key string, def, minimum int) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(def) * time.Millisecond, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < minimum {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func positiveInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	}
	return def
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
