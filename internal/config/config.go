package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"menucal/internal/composite"
)

// Header sources for the dates band stamped onto each template.
const (
	HeaderSourceAsset  = "asset"
	HeaderSourceRender = "render"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the dashboard and API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// CaptureConfig controls the headless Chromium capture of the /header page.
type CaptureConfig struct {
	Width      int `yaml:"width" json:"width"`
	Height     int `yaml:"height" json:"height"`
	TimeoutSec int `yaml:"timeout_sec" json:"timeout_sec"`
}

// SMTPConfig is the outgoing mail server.
type SMTPConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	From     string `yaml:"from" json:"from"`
}

// Enabled reports whether enough is configured to dial.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

// SlackConfig posts activity to a channel.
type SlackConfig struct {
	Token   string `yaml:"token" json:"-"`
	Channel string `yaml:"channel" json:"channel"`
}

// TwilioConfig sends SMS alerts for failures.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid" json:"account_sid"`
	AuthToken  string `yaml:"auth_token" json:"-"`
	From       string `yaml:"from" json:"from"`
	To         string `yaml:"to" json:"to"`
}

// NotifyConfig lists the optional alert channels.
type NotifyConfig struct {
	AdminEmail string       `yaml:"admin_email" json:"admin_email"`
	Slack      SlackConfig  `yaml:"slack" json:"slack"`
	Twilio     TwilioConfig `yaml:"twilio" json:"twilio"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard and API.
	Listen string `yaml:"listen" json:"listen"`

	// PublicURL is how headless Chromium reaches this server (render mode).
	PublicURL string `yaml:"public_url" json:"public_url"`

	// Timezone decides what "today" means for the scheduler and cron.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// DatabasePath is the SQLite file holding settings, templates and activity.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// DataDir stores uploaded templates, merged artifacts and the fetch cache.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// CheckCron is the robfig/cron schedule for the send check (e.g. "0 9 * * *").
	CheckCron string `yaml:"check_cron" json:"check_cron"`

	// HeaderProportion is the share of template height replaced by the header band.
	HeaderProportion float64 `yaml:"header_proportion" json:"header_proportion"`

	// HeaderSource is "asset" (stored dates image) or "render" (Chromium capture).
	HeaderSource string `yaml:"header_source" json:"header_source"`

	Capture CaptureConfig `yaml:"capture" json:"capture"`
	SMTP    SMTPConfig    `yaml:"smtp" json:"smtp"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`

	// BasicAuth, if set, protects all endpoints except /health and /header.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.PublicURL == "" {
		c.PublicURL = "http://" + c.Listen
	}
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "./var/menucal.db"
	}
	if c.DataDir == "" {
		c.DataDir = "./var/data"
	}
	if c.CheckCron == "" {
		c.CheckCron = "0 9 * * *"
	}
	if c.HeaderProportion == 0 {
		c.HeaderProportion = composite.DefaultProportion
	}
	switch c.HeaderSource {
	case HeaderSourceAsset, HeaderSourceRender:
	default:
		c.HeaderSource = HeaderSourceAsset
	}
	if c.Capture.Width <= 0 {
		c.Capture.Width = 1200
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 240
	}
	if c.Capture.TimeoutSec <= 0 {
		c.Capture.TimeoutSec = 30
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if err := composite.ValidateProportion(c.HeaderProportion); err != nil {
		return fmt.Errorf("config: header_proportion %v: %w", c.HeaderProportion, err)
	}
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("config: smtp.port %d out of range", c.SMTP.Port)
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return errors.New("config: basic_auth needs both username and password")
	}
	return nil
}

// envOverrides maps MENUCAL_* variables onto secret and deployment fields.
var envOverrides = map[string]func(c *Config, v string){
	"MENUCAL_LISTEN":        func(c *Config, v string) { c.Listen = v },
	"MENUCAL_PUBLIC_URL":    func(c *Config, v string) { c.PublicURL = v },
	"MENUCAL_DATABASE_PATH": func(c *Config, v string) { c.DatabasePath = v },
	"MENUCAL_DATA_DIR":      func(c *Config, v string) { c.DataDir = v },
	"MENUCAL_SMTP_HOST":     func(c *Config, v string) { c.SMTP.Host = v },
	"MENUCAL_SMTP_PORT": func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = n
		}
	},
	"MENUCAL_SMTP_USERNAME":      func(c *Config, v string) { c.SMTP.Username = v },
	"MENUCAL_SMTP_PASSWORD":      func(c *Config, v string) { c.SMTP.Password = v },
	"MENUCAL_SMTP_FROM":          func(c *Config, v string) { c.SMTP.From = v },
	"MENUCAL_ADMIN_EMAIL":        func(c *Config, v string) { c.Notify.AdminEmail = v },
	"MENUCAL_SLACK_TOKEN":        func(c *Config, v string) { c.Notify.Slack.Token = v },
	"MENUCAL_SLACK_CHANNEL":      func(c *Config, v string) { c.Notify.Slack.Channel = v },
	"MENUCAL_TWILIO_ACCOUNT_SID": func(c *Config, v string) { c.Notify.Twilio.AccountSID = v },
	"MENUCAL_TWILIO_AUTH_TOKEN":  func(c *Config, v string) { c.Notify.Twilio.AuthToken = v },
	"MENUCAL_TWILIO_FROM":        func(c *Config, v string) { c.Notify.Twilio.From = v },
	"MENUCAL_TWILIO_TO":          func(c *Config, v string) { c.Notify.Twilio.To = v },
	"MENUCAL_BASIC_AUTH_USERNAME": func(c *Config, v string) {
		c.ensureBasicAuth().Username = v
	},
	"MENUCAL_BASIC_AUTH_PASSWORD": func(c *Config, v string) {
		c.ensureBasicAuth().Password = v
	},
}

func (c *Config) ensureBasicAuth() *BasicAuthConfig {
	if c.BasicAuth == nil {
		c.BasicAuth = &BasicAuthConfig{}
	}
	return c.BasicAuth
}

// ApplyEnv overrides fields from the given lookup (usually os.LookupEnv).
// Secrets are expected to come from the environment or a .env file rather
// than the YAML file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for key, apply := range envOverrides {
		if v, ok := lookup(key); ok && v != "" {
			apply(c, v)
		}
	}
	c.Normalize()
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, creating the parent directory (0700) if needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".menucal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
