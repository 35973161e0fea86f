package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid indicates a configuration value outside its allowed set.
var ErrInvalid = errors.New("invalid configuration")

const envPrefix = "OPSDASH_"

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Render    RenderConfig    `yaml:"render"`
	Auth      AuthConfig      `yaml:"auth"`
	MCP       MCPConfig       `yaml:"mcp"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// StorageConfig locates the two source reports.
type StorageConfig struct {
	Backend          string        `yaml:"backend"`
	BaseURL          string        `yaml:"base_url"`
	Root             string        `yaml:"root"`
	Token            string        `yaml:"token"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
}

type CacheConfig struct {
	Backend          string        `yaml:"backend"`
	TTL              time.Duration `yaml:"ttl"`
	Slot             string        `yaml:"slot"`
	RedisURL         string        `yaml:"redis_url"`
	PostgresURL      string        `yaml:"postgres_url"`
	PostgresMaxConns int32         `yaml:"postgres_max_conns"`
}

type DashboardConfig struct {
	ProjectKey       string        `yaml:"project_key"`
	IssueKey         string        `yaml:"issue_key"`
	Granularity      string        `yaml:"granularity"`
	StrictValidation bool          `yaml:"strict_validation"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
}

// RenderConfig enables series publication to a message broker. An empty
// AMQPURL keeps series in memory only.
type RenderConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Storage and cache backends.
const (
	StorageHTTP = "http"
	StorageFile = "file"

	CacheSQLite   = "sqlite"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CacheMemory   = "memory"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "opsdash.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Backend:          StorageFile,
			Root:             "data",
			Timeout:          30 * time.Second,
			FailureThreshold: 3,
			OpenTimeout:      time.Minute,
		},
		Cache: CacheConfig{
			Backend:          CacheSQLite,
			TTL:              time.Hour,
			PostgresMaxConns: 4,
		},
		Dashboard: DashboardConfig{
			ProjectKey:      "reports/projects.xlsx",
			IssueKey:        "reports/issues.xlsx",
			Granularity:     "monthly",
			RefreshInterval: 15 * time.Minute,
		},
		Render: RenderConfig{
			Exchange: "opsdash.series",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and
// environment variables, in that order. A .env file in the working
// directory is loaded into the environment first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(envPrefix + "CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated and range-bound settings.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case StorageHTTP:
		if c.Storage.BaseURL == "" {
			return fmt.Errorf("%w: storage.base_url is required for the http backend", ErrInvalid)
		}
	case StorageFile:
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalid, c.Storage.Backend)
	}
	switch c.Cache.Backend {
	case CacheSQLite, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("%w: cache.redis_url is required for the redis backend", ErrInvalid)
		}
	case CachePostgres:
		if c.Cache.PostgresURL == "" {
			return fmt.Errorf("%w: cache.postgres_url is required for the postgres backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: cache.backend %q", ErrInvalid, c.Cache.Backend)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalid, c.Server.Port)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalid)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString("SERVER_HOST", &cfg.Server.Host)
	setString("DB_PATH", &cfg.DB.Path)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("LOG_PATH", &cfg.Log.Path)
	setString("STORAGE_BACKEND", &cfg.Storage.Backend)
	setString("STORAGE_BASE_URL", &cfg.Storage.BaseURL)
	setString("STORAGE_ROOT", &cfg.Storage.Root)
	setString("STORAGE_TOKEN", &cfg.Storage.Token)
	setString("CACHE_BACKEND", &cfg.Cache.Backend)
	setString("CACHE_SLOT", &cfg.Cache.Slot)
	setString("REDIS_URL", &cfg.Cache.RedisURL)
	setString("POSTGRES_URL", &cfg.Cache.PostgresURL)
	setString("PROJECT_KEY", &cfg.Dashboard.ProjectKey)
	setString("ISSUE_KEY", &cfg.Dashboard.IssueKey)
	setString("GRANULARITY", &cfg.Dashboard.Granularity)
	setString("AMQP_URL", &cfg.Render.AMQPURL)
	setString("AMQP_EXCHANGE", &cfg.Render.Exchange)
	setString("MCP_PATH", &cfg.MCP.Path)

	var errs []error
	errs = append(errs,
		setInt("SERVER_PORT", &cfg.Server.Port),
		setUint32("STORAGE_FAILURE_THRESHOLD", &cfg.Storage.FailureThreshold),
		setInt32("POSTGRES_MAX_CONNS", &cfg.Cache.PostgresMaxConns),
		setDuration("STORAGE_TIMEOUT", &cfg.Storage.Timeout),
		setDuration("STORAGE_OPEN_TIMEOUT", &cfg.Storage.OpenTimeout),
		setDuration("CACHE_TTL", &cfg.Cache.TTL),
		setDuration("REFRESH_INTERVAL", &cfg.Dashboard.RefreshInterval),
		setBool("STRICT_VALIDATION", &cfg.Dashboard.StrictValidation),
		setBool("AUTH_ENABLED", &cfg.Auth.Enabled),
		setBool("MCP_ENABLED", &cfg.MCP.Enabled),
	)
	return errors.Join(errs...)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(name string, dst *string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(name string, dst *int) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = n
	return nil
}

func setInt32(name string, dst *int32) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = int32(n)
	return nil
}

func setUint32(name string, dst *uint32) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = uint32(n)
	return nil
}

func setDuration(name string, dst *time.Duration) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = d
	return nil
}

func setBool(name string, dst *bool) error {
	v, ok := lookup(name)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s%s: %w", envPrefix, name, err)
	}
	*dst = b
	return nil
}
