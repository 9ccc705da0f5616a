package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/log"
)

// Supported credential store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TENDERDESK_"

// Config is the root configuration structure.
type Config struct {
	API      APIConfig     `yaml:"api" json:"api"`
	Store    StoreConfig   `yaml:"store" json:"store"`
	Logging  LoggingConfig `yaml:"logging" json:"logging"`
	StateDir string        `yaml:"state_dir" json:"state_dir"`
}

// APIConfig points the client at the tender backend.
type APIConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Timeout in seconds for a single HTTP exchange.
	Timeout int `yaml:"timeout" json:"timeout"`
}

// StoreConfig selects and parameterises the credential store backend.
type StoreConfig struct {
	Backend       string `yaml:"backend" json:"backend"`
	Path          string `yaml:"path" json:"path"`
	Passphrase    string `yaml:"passphrase,omitempty" json:"passphrase,omitempty"`
	SQLitePath    string `yaml:"sqlite_path" json:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"redis_password,omitempty"`
	KeyPrefix     string `yaml:"key_prefix" json:"key_prefix"`
}

// LoggingConfig mirrors log.Config in file form.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// DefaultDir returns ~/.tenderdesk, or .tenderdesk when no home is known.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tenderdesk"
	}
	return filepath.Join(home, ".tenderdesk")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Default returns a Config with sensible defaults rooted at dir.
func Default(dir string) *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30,
		},
		Store: StoreConfig{
			Backend:    BackendFile,
			Path:       filepath.Join(dir, "credentials.enc"),
			SQLitePath: filepath.Join(dir, "credentials.db"),
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "tenderdesk:",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
		StateDir: dir,
	}
}

// Load reads the YAML file at path on top of the defaults. A missing
// file is not an error: the defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the YAML file at path on top of the defaults without
// environment overrides or validation. It is the starting point for
// editing the file in place.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default(filepath.Dir(path))

	data, err := os.ReadFile(path)
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeConfigRead, "reading config file", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigParse, "parsing config file", err)
		}
	}
	return cfg, nil
}

// Save writes cfg as YAML with owner-only permissions.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// applyEnvOverrides applies TENDERDESK_SECTION_KEY environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "API_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.Timeout = n
		}
	}

	if v := os.Getenv(EnvPrefix + "STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv(EnvPrefix + "STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv(EnvPrefix + "STORE_PASSPHRASE"); v != "" {
		cfg.Store.Passphrase = v
	}
	if v := os.Getenv(EnvPrefix + "STORE_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv(EnvPrefix + "STORE_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv(EnvPrefix + "STORE_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.RedisDB = n
		}
	}
	if v := os.Getenv(EnvPrefix + "STORE_REDIS_PASSWORD"); v != "" {
		cfg.Store.RedisPassword = v
	}

	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv(EnvPrefix + "STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	} else if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, "api.base_url must start with http:// or https://")
	}
	if c.API.Timeout < 1 {
		errs = append(errs, "api.timeout must be at least 1 second")
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the file backend")
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, "store.redis_addr is required for the redis backend")
		}
		if c.Store.RedisDB < 0 || c.Store.RedisDB > 15 {
			errs = append(errs, "store.redis_db must be between 0 and 15")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of file, sqlite, redis, memory", c.Store.Backend))
	}

	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, "logging.level: "+err.Error())
	}

	if c.StateDir == "" {
		errs = append(errs, "state_dir is required")
	}

	if len(errs) > 0 {
		return errors.NewConfigInvalidError(strings.Join(errs, "; "))
	}
	return nil
}

// RequestTimeout returns the API timeout as a Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// LogConfig converts the logging section into a log.Config.
func (c *Config) LogConfig() log.Config {
	level, _ := log.ParseLevel(c.Logging.Level)
	return log.Config{
		Level:       level,
		Format:      log.ParseFormat(c.Logging.Format),
		Output:      log.ParseOutput(c.Logging.Output),
		ServiceName: "tenderdesk",
	}
}
