package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwlsn/augmentor/internal/media"
)

// Backend endpoints used when BackendURL is not set.
const (
	DevelopmentBackendURL = "http://127.0.0.1:8080"
	ProductionBackendURL  = "https://resim-isleme-api.onrender.com"
)

// DefaultPath is where the config file is looked up when none is given.
const DefaultPath = "config/augmentor.yaml"

type Config struct {
	// BackendURL is the base URL of the processing service. When empty it is
	// chosen from Environment.
	BackendURL string `yaml:"backend_url"`

	// Environment is "development" (local backend) or anything else (hosted backend)
	Environment string `yaml:"environment"`

	// LogLevel is one of debug, info, warn, error (default info)
	LogLevel string `yaml:"log_level"`

	// LogFormat is "console" or "json" (default console)
	LogFormat string `yaml:"log_format"`

	// LogFile, when set, also writes JSON logs to a rotated file
	LogFile string `yaml:"log_file"`

	// Locale selects the message language: "en" or "tr"
	Locale string `yaml:"locale"`

	// Port is the console listen port
	Port int `yaml:"port"`

	// AllowedOrigins may call the console API from other pages (CORS)
	AllowedOrigins []string `yaml:"allowed_origins"`

	// RequestTimeout bounds each backend request. Zero means no timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// FFprobePath is the path to ffprobe binary (default: "ffprobe")
	FFprobePath string `yaml:"ffprobe_path"`

	// MediaPath is the root directory the console lets you browse
	MediaPath string `yaml:"media_path"`

	// Output folder names sent to the backend when the user leaves them blank
	ImageOutputFolder string `yaml:"image_output_folder"`
	VideoOutputFolder string `yaml:"video_output_folder"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Environment:       "development",
		LogLevel:          "info",
		LogFormat:         "console",
		Locale:            "en",
		Port:              8090,
		FFprobePath:       "ffprobe",
		MediaPath:         ".",
		ImageOutputFolder: media.DefaultImageFolder,
		VideoOutputFolder: media.DefaultVideoFolder,
	}
}

// Load reads config from a YAML file, applying defaults for missing values.
// A missing file is not an error. Environment overrides are not applied; see
// ApplyEnv.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file - use defaults
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Environment == "" {
		c.Environment = def.Environment
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.Locale == "" {
		c.Locale = def.Locale
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.FFprobePath == "" {
		c.FFprobePath = def.FFprobePath
	}
	if c.MediaPath == "" {
		c.MediaPath = def.MediaPath
	}
	if strings.TrimSpace(c.ImageOutputFolder) == "" {
		c.ImageOutputFolder = def.ImageOutputFolder
	}
	if strings.TrimSpace(c.VideoOutputFolder) == "" {
		c.VideoOutputFolder = def.VideoOutputFolder
	}
}

// ApplyEnv overrides fields from environment variables. getenv is usually
// os.Getenv; unparsable numbers are reported and leave the field unchanged.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("BACKEND_URL", &c.BackendURL)
	str("APP_ENV", &c.Environment)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("LOG_FILE", &c.LogFile)
	str("LOCALE", &c.Locale)
	str("FFPROBE_PATH", &c.FFprobePath)
	str("MEDIA_PATH", &c.MediaPath)

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			c.Port = port
		}
	}
	if v := strings.TrimSpace(getenv("REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT: %w", err))
		} else {
			c.RequestTimeout = d
		}
	}
	return errors.Join(errs...)
}

// ResolvedBackendURL returns BackendURL, or the URL implied by Environment.
func (c *Config) ResolvedBackendURL() string {
	if u := strings.TrimSpace(c.BackendURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	if c.IsDevelopment() {
		return DevelopmentBackendURL
	}
	return ProductionBackendURL
}

// IsDevelopment reports whether the local backend is the default.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Environment) {
	case "development", "dev", "local":
		return true
	}
	return false
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.ResolvedBackendURL())
	if err != nil {
		errs = append(errs, fmt.Errorf("backend_url: %w", err))
	} else if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url: %q is not an http(s) URL", c.ResolvedBackendURL()))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port: %d out of range", c.Port))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout: negative"))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: %q is not console or json", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Save writes the config to a YAML file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
