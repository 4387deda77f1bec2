// Package config provides YAML-based configuration loading for huebot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultReportKeywords are the phrases that turn a chat message into a
// report request instead of a normal analyze turn.
var DefaultReportKeywords = []string{
	"리포트",
	"보고서",
	"진단서",
	"진단 결과 보여",
	"결과 정리",
	"report",
}

// Config is the top-level huebot configuration, loaded from huebot.yaml.
type Config struct {
	API   APIConfig   `yaml:"api"`
	Store StoreConfig `yaml:"store"`
	Cache CacheConfig `yaml:"cache"`
	Chat  ChatConfig  `yaml:"chat"`
	Log   LogConfig   `yaml:"log"`
	Share ShareConfig `yaml:"share"`

	// Token is a bearer token supplied through the environment. It takes
	// precedence over the token saved by `hue auth login`.
	Token string `yaml:"-"`
}

// APIConfig describes the remote diagnosis service.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	FeedbackTimeout time.Duration `yaml:"feedback_timeout"`
}

// StoreConfig selects the local database used for credentials and transcripts.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or mysql
	Path   string `yaml:"path"`   // sqlite file
	DSN    string `yaml:"dsn"`    // mysql dsn
}

// CacheConfig holds freshness windows for the diagnosis-history cache.
type CacheConfig struct {
	StaleNormal     time.Duration `yaml:"stale_normal"`
	StaleLive       time.Duration `yaml:"stale_live"`
	GC              time.Duration `yaml:"gc"`
	RefreshSchedule string        `yaml:"refresh_schedule"`
	Retry           int           `yaml:"retry"`
}

// ChatConfig tunes the conversational session controller.
type ChatConfig struct {
	ReportKeywords     []string `yaml:"report_keywords"`
	AutoDiagnosisTurns int      `yaml:"auto_diagnosis_turns"`
}

// LogConfig selects the zap preset.
type LogConfig struct {
	Mode string `yaml:"mode"` // development or production
}

// ShareConfig holds webhook targets for `hue share`.
type ShareConfig struct {
	SlackWebhook   string `yaml:"slack_webhook"`
	DiscordWebhook string `yaml:"discord_webhook"`
}

// Load reads a YAML config file from path, applies .env and environment
// overrides, and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	// A missing .env is normal.
	_ = godotenv.Load()
	return parse(data, os.LookupEnv)
}

// Parse unmarshals YAML bytes into a validated Config. Environment
// variables are not consulted.
func Parse(data []byte) (*Config, error) {
	return parse(data, func(string) (string, bool) { return "", false })
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv(lookup)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays HUE_* environment variables onto file values.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("HUE_BASE_URL"); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup("HUE_TOKEN"); ok {
		c.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup("HUE_LOG_MODE"); ok && v != "" {
		c.Log.Mode = v
	}
	if v, ok := lookup("HUE_SLACK_WEBHOOK"); ok && v != "" {
		c.Share.SlackWebhook = v
	}
	if v, ok := lookup("HUE_DISCORD_WEBHOOK"); ok && v != "" {
		c.Share.DiscordWebhook = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.FeedbackTimeout == 0 {
		c.API.FeedbackTimeout = 10 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = defaultStorePath()
	}
	if strings.HasPrefix(c.Store.Path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.Store.Path = filepath.Join(home, c.Store.Path[2:])
		}
	}
	if c.Cache.StaleNormal == 0 {
		c.Cache.StaleNormal = 30 * time.Minute
	}
	if c.Cache.StaleLive == 0 {
		c.Cache.StaleLive = time.Minute
	}
	if c.Cache.GC == 0 {
		c.Cache.GC = time.Hour
	}
	if c.Cache.RefreshSchedule == "" {
		c.Cache.RefreshSchedule = "@every 10m"
	}
	if c.Cache.Retry == 0 {
		c.Cache.Retry = 2
	}
	if len(c.Chat.ReportKeywords) == 0 {
		c.Chat.ReportKeywords = append([]string(nil), DefaultReportKeywords...)
	}
	if c.Chat.AutoDiagnosisTurns == 0 {
		c.Chat.AutoDiagnosisTurns = 3
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "development"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	} else if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("api.base_url %q must start with http:// or https://", c.API.BaseURL))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, "api.timeout must be positive")
	}
	switch c.Store.Driver {
	case "sqlite":
	case "mysql":
		if c.Store.DSN == "" {
			errs = append(errs, "store.dsn is required for the mysql driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (sqlite, mysql)", c.Store.Driver))
	}
	if c.Cache.Retry < 0 {
		errs = append(errs, "cache.retry must not be negative")
	}
	if c.Chat.AutoDiagnosisTurns < 1 {
		errs = append(errs, "chat.auto_diagnosis_turns must be at least 1")
	}
	for i, kw := range c.Chat.ReportKeywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, fmt.Sprintf("chat.report_keywords[%d] is empty", i))
		}
	}
	switch strings.ToLower(c.Log.Mode) {
	case "development", "dev", "production", "prod":
	default:
		errs = append(errs, fmt.Sprintf("log.mode %q is not supported", c.Log.Mode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "huebot.db"
	}
	return filepath.Join(home, ".huebot", "huebot.db")
}
