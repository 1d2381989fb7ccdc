package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings for both the feed server and the subscriber.
type Config struct {
	ServerAddr     string          `yaml:"server_addr"`     // e.g. ":8080"
	WSPath         string          `yaml:"ws_path"`         // e.g. "/ws"
	DBPath         string          `yaml:"db_path"`         // e.g. "events.db"
	LogLevel       string          `yaml:"log_level"`       // debug | info | warn | error
	LogConsole     bool            `yaml:"log_console"`     // human-readable logs
	WebhookSecret  string          `yaml:"webhook_secret"`  // optional GitHub HMAC secret
	AllowedOrigins []string        `yaml:"allowed_origins"` // CORS origins for browser widgets
	Retention      RetentionConfig `yaml:"retention"`

	SubscriberBuffer int `yaml:"subscriber_buffer"` // per-subscriber queue before it is dropped

	ClientServerURL string       `yaml:"client_server_url"` // e.g. "ws://localhost:8080/ws"
	Widget          WidgetConfig `yaml:"widget"`
}

// RetentionConfig bounds the size of the feed store.
type RetentionConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 1h"; empty disables
	Keep     int    `yaml:"keep"`     // newest rows to keep
}

// WidgetConfig configures the subscriber's rendering.
type WidgetConfig struct {
	Limit        int           `yaml:"limit"`         // replay the last N records, 0 = all
	TimeMode     string        `yaml:"time_mode"`     // relative | absolute
	Layout       string        `yaml:"layout"`        // split | single
	Icons        bool          `yaml:"icons"`         // map event tags to icons
	TemplatesDir string        `yaml:"templates_dir"` // optional *.tmpl overrides
	Output       string        `yaml:"output"`        // page file; empty = fragments to stdout
	Listen       string        `yaml:"listen"`        // optional address serving the page
	Title        string        `yaml:"title"`
	Buffer       int           `yaml:"buffer"`        // subscriber channel capacity
	MaxBackoff   time.Duration `yaml:"max_backoff"`   // reconnect backoff cap
}

// Default returns the configuration used when a key is absent.
func Default() *Config {
	return &Config{
		ServerAddr:     ":8080",
		WSPath:         "/ws",
		DBPath:         "events.db",
		LogLevel:       "info",
		AllowedOrigins: []string{"*"},
		Retention: RetentionConfig{
			Schedule: "@every 1h",
			Keep:     1000,
		},
		SubscriberBuffer: 256,
		ClientServerURL:  "ws://localhost:8080/ws",
		Widget: WidgetConfig{
			Limit:      50,
			TimeMode:   "relative",
			Layout:     "split",
			Icons:      true,
			Title:      "Pyblish Universe",
			Buffer:     256,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if port, ok := os.LookupEnv("PORT"); ok {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.ServerAddr = ":" + port
	}
	c.DBPath = getEnv("EVENTFEED_DB", c.DBPath)
	c.ClientServerURL = getEnv("EVENTFEED_URL", c.ClientServerURL)
	c.WebhookSecret = getEnv("GITHUB_WEBHOOK_SECRET", c.WebhookSecret)
	c.LogLevel = getEnv("EVENTFEED_LOG_LEVEL", c.LogLevel)
	return nil
}

// Validate rejects settings the binaries cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("server_addr is required"))
	}
	if c.WSPath == "" || c.WSPath[0] != '/' {
		errs = append(errs, fmt.Errorf("ws_path %q must start with /", c.WSPath))
	}
	if c.Retention.Keep < 0 {
		errs = append(errs, errors.New("retention.keep must not be negative"))
	} else if c.Retention.Schedule != "" && c.Retention.Keep == 0 {
		errs = append(errs, errors.New("retention.keep must be positive when retention.schedule is set"))
	}
	if c.SubscriberBuffer <= 0 {
		errs = append(errs, errors.New("subscriber_buffer must be positive"))
	}
	if c.Widget.Limit < 0 {
		errs = append(errs, errors.New("widget.limit must not be negative"))
	}
	if c.Widget.Buffer <= 0 {
		errs = append(errs, errors.New("widget.buffer must be positive"))
	}
	switch c.Widget.TimeMode {
	case "relative", "absolute":
	default:
		errs = append(errs, fmt.Errorf("widget.time_mode %q must be relative or absolute", c.Widget.TimeMode))
	}
	switch c.Widget.Layout {
	case "split", "single":
	default:
		errs = append(errs, fmt.Errorf("widget.layout %q must be split or single", c.Widget.Layout))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
