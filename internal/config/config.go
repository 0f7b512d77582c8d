package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/excelytics/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "EXCELYTICS"
	dirName   = ".excelytics"
)

// Global configuration structure.
type Global struct {
	// AI provider
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Server
	ListenAddr       string `mapstructure:"listen_addr" yaml:"listen_addr"`
	DataDir          string `mapstructure:"data_dir" yaml:"data_dir"`
	UploadDir        string `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadMB      int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	UploadTTLMin     int    `mapstructure:"upload_ttl_min" yaml:"upload_ttl_min"`
	UploadMaxPending int    `mapstructure:"upload_max_pending" yaml:"upload_max_pending"`

	// Storage
	StoreDriver   string `mapstructure:"store_driver" yaml:"store_driver"`
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Keys lists every configuration key, in file order.
var Keys = []string{
	"api_key", "provider", "model", "max_tokens", "temperature",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"ollama_host",
	"listen_addr", "data_dir", "upload_dir", "max_upload_mb", "upload_ttl_min", "upload_max_pending",
	"store_driver", "sqlite_path", "mongo_uri", "mongo_database",
	"log_level", "log_format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("provider", "openrouter")
	v.SetDefault("model", "openai/gpt-4o-mini")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.2)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	// server
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", "")
	v.SetDefault("upload_dir", "")
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("upload_ttl_min", 30)
	v.SetDefault("upload_max_pending", 128)
	// storage
	v.SetDefault("store_driver", "jsonfs")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("mongo_database", "excelytics")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// DefaultDir returns ~/.excelytics.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.excelytics/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := DefaultDir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.resolvePaths(dir); err != nil {
		return nil, err
	}
	return &c, nil
}

// resolvePaths fills storage locations under base when unset and expands a
// leading ~ in the ones that are set.
func (c *Global) resolvePaths(base string) error {
	paths := []struct {
		p   *string
		def string
	}{
		{&c.DataDir, "data"},
		{&c.UploadDir, "uploads"},
		{&c.SQLitePath, "excelytics.db"},
	}
	for _, e := range paths {
		if *e.p == "" {
			*e.p = filepath.Join(base, e.def)
			continue
		}
		expanded, err := utils.ExpandHome(*e.p)
		if err != nil {
			return err
		}
		*e.p = expanded
	}
	return nil
}

// HTTPTimeout returns the configured provider timeout.
func (c *Global) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// RetryBaseDelay returns the first backoff step.
func (c *Global) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c *Global) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// UploadTTL returns how long unconfirmed uploads are kept.
func (c *Global) UploadTTL() time.Duration {
	return time.Duration(c.UploadTTLMin) * time.Minute
}

// MaxUploadBytes returns the request body cap for uploads.
func (c *Global) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// MaskedAPIKey renders the api key for display.
func (c *Global) MaskedAPIKey() string {
	k := c.APIKey
	if k == "" {
		return "(not set)"
	}
	if len(k) <= 8 {
		return "****"
	}
	return k[:4] + "…" + k[len(k)-4:]
}

var choices = map[string][]string{
	"provider":     {"openrouter", "ollama"},
	"store_driver": {"memory", "jsonfs", "sqlite", "mongo"},
	"log_level":    {"debug", "info", "warn", "error"},
	"log_format":   {"text", "json"},
}

// Set parses val for key and assigns it. Enumerated keys are validated.
func (c *Global) Set(key, val string) error {
	strs := map[string]*string{
		"api_key": &c.APIKey, "provider": &c.Provider, "model": &c.Model,
		"ollama_host": &c.OllamaHost, "listen_addr": &c.ListenAddr,
		"data_dir": &c.DataDir, "upload_dir": &c.UploadDir,
		"store_driver": &c.StoreDriver, "sqlite_path": &c.SQLitePath,
		"mongo_uri": &c.MongoURI, "mongo_database": &c.MongoDatabase,
		"log_level": &c.LogLevel, "log_format": &c.LogFormat,
	}
	ints := map[string]*int{
		"max_tokens": &c.MaxTokens, "http_timeout_sec": &c.HTTPTimeoutSec,
		"retry_max_attempts": &c.RetryMaxAttempts, "retry_base_delay_ms": &c.RetryBaseDelayMs,
		"retry_max_delay_ms": &c.RetryMaxDelayMs, "max_upload_mb": &c.MaxUploadMB,
		"upload_ttl_min": &c.UploadTTLMin, "upload_max_pending": &c.UploadMaxPending,
	}
	if p, ok := strs[key]; ok {
		if allowed, ok := choices[key]; ok {
			val = strings.ToLower(strings.TrimSpace(val))
			if key == "provider" && val == "local" {
				val = "ollama"
			}
			if !slices.Contains(allowed, val) {
				return fmt.Errorf("invalid %s: %q (use one of %s)", key, val, strings.Join(allowed, ", "))
			}
		}
		*p = val
		return nil
	}
	if p, ok := ints[key]; ok {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %q", key, val)
		}
		*p = i
		return nil
	}
	if key == "temperature" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for temperature: %q", val)
		}
		c.Temperature = f
		return nil
	}
	return fmt.Errorf("unknown key: %s", key)
}
