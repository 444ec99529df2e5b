package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"pricewatch-backend/internal/scrapers/catalog"
	"pricewatch-backend/pkg/configutil"
	"time"

	"github.com/robfig/cron/v3"
)

// Duration is a time.Duration written as a string ("1s", "30m") in config files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type CatalogConfig struct {
	BaseUrl           string   `json:"base_url"`
	PageSize          int      `json:"page_size"`
	PageDelay         Duration `json:"page_delay"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	Workers           int      `json:"workers"`
	RequestTimeout    Duration `json:"request_timeout"`
	RetryCount        int      `json:"retry_count"`
	// SkipMalformedItems drops items with unparsable detail pages instead of failing the run.
	SkipMalformedItems bool              `json:"skip_malformed_items"`
	CloudflareBypass   bool              `json:"cloudflare_bypass"`
	UserAgent          string            `json:"user_agent"`
	Selectors          catalog.Selectors `json:"selectors"`
	// DumpDir, when set, receives a text file per catalog response.
	DumpDir string `json:"dump_dir"`
}

type PipelineConfig struct {
	// Schedule is a cron spec ("@every 6h", "0 3 * * *"), empty disables scheduled runs.
	Schedule   string   `json:"schedule"`
	RunTimeout Duration `json:"run_timeout"`
}

type NotifyConfig struct {
	// AllowedOrigins are the websocket origin patterns accepted on /ws.
	AllowedOrigins []string `json:"allowed_origins"`
	SendTimeout    Duration `json:"send_timeout"`
}

type NatsConfig struct {
	// Url enables the NATS relay when set.
	Url     string `json:"url"`
	Subject string `json:"subject"`
}

type Config struct {
	ListenPort int `json:"listen_port"`
	// Timezone is the IANA location cron schedules are interpreted in.
	Timezone string `json:"timezone"`
	// Database is a sqlite path, ":memory:" or a libsql:// url.
	Database string         `json:"database"`
	Catalog  CatalogConfig  `json:"catalog"`
	Pipeline PipelineConfig `json:"pipeline"`
	Notify   NotifyConfig   `json:"notify"`
	Nats     NatsConfig     `json:"nats"`
}

const DefaultBaseUrl = "https://www.maxidom.ru/catalog/smesiteli-dlya-dusha/"

func Default() Config {
	return Config{
		ListenPort: 8000,
		Timezone:   "UTC",
		Database:   "pricewatch.db",
		Catalog: CatalogConfig{
			BaseUrl:           DefaultBaseUrl,
			PageSize:          30,
			PageDelay:         Duration{time.Second},
			RequestsPerSecond: 4,
			Workers:           4,
			RequestTimeout:    Duration{30 * time.Second},
			RetryCount:        2,
			Selectors:         catalog.DefaultSelectors(),
		},
		Pipeline: PipelineConfig{
			RunTimeout: Duration{30 * time.Minute},
		},
		Notify: NotifyConfig{
			AllowedOrigins: []string{"*"},
			SendTimeout:    Duration{10 * time.Second},
		},
		Nats: NatsConfig{
			Subject: "pricewatch.changes",
		},
	}
}

// Read decodes the config file at path (plus its .local override) on top of Default.
// Keys set in a file win even when they hold a zero value, such as retry_count: 0.
// A missing file is not an error, the defaults are used as is.
func Read(path string) (Config, error) {
	cfg := Default()

	err := configutil.ReadConfigInto(path, &cfg)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", path)
		return cfg, cfg.Validate()
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configs the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("config: database must be set")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("config: invalid listen_port %d", c.ListenPort)
	}
	if c.Catalog.BaseUrl == "" {
		return fmt.Errorf("config: catalog.base_url must be set")
	}
	if c.Catalog.Workers <= 0 {
		return fmt.Errorf("config: catalog.workers must be positive")
	}
	if c.Catalog.RetryCount < 0 {
		return fmt.Errorf("config: catalog.retry_count must not be negative")
	}
	if c.Catalog.RequestsPerSecond < 0 {
		return fmt.Errorf("config: catalog.requests_per_second must not be negative")
	}
	if c.Catalog.PageDelay.Duration < 0 {
		return fmt.Errorf("config: catalog.page_delay must not be negative")
	}
	_, err := c.Location()
	if err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	if c.Pipeline.Schedule != "" {
		_, err = cron.ParseStandard(c.Pipeline.Schedule)
		if err != nil {
			return fmt.Errorf("config: pipeline.schedule: %w", err)
		}
	}
	return nil
}

// Location resolves Timezone, an empty Timezone is UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
