package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "tablescope.yaml"

const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig  `yaml:"server"`
	Cache       CacheConfig   `yaml:"cache"`
	Log         LogConfig     `yaml:"log"`
	Adapters    AdapterConfig `yaml:"adapters"`
	Connections []Profile     `yaml:"connections" validate:"dive"`

	// Path is the file the config was read from, empty when defaults only.
	Path string `yaml:"-"`
}

type ServerConfig struct {
	Port         string        `yaml:"port" validate:"required,numeric"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	RateLimit    int           `yaml:"rate_limit" validate:"gte=0"`
	RateWindow   time.Duration `yaml:"rate_window" validate:"gte=0"`
	ReapInterval time.Duration `yaml:"reap_interval" validate:"gte=0"`
	CookieMaxAge int           `yaml:"cookie_max_age" validate:"gte=0"`
}

type CacheConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=redis memory"`
	Redis   RedisConfig `yaml:"redis"`
	TTL     TTLConfig   `yaml:"ttl"`
}

type RedisConfig struct {
	URL       string `yaml:"url"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"gte=0,lte=65535"`
	DB        int    `yaml:"db" validate:"gte=0"`
	Password  string `yaml:"password"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Addr is host:port for the discrete Redis settings.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// TTLConfig overrides individual cache lifetimes. Zero keeps the default.
type TTLConfig struct {
	Connection time.Duration `yaml:"connection" validate:"gte=0"`
	Tables     time.Duration `yaml:"tables" validate:"gte=0"`
	Schema     time.Duration `yaml:"schema" validate:"gte=0"`
	Count      time.Duration `yaml:"count" validate:"gte=0"`
	Records    time.Duration `yaml:"records" validate:"gte=0"`
	Record     time.Duration `yaml:"record" validate:"gte=0"`
	Preview    time.Duration `yaml:"preview" validate:"gte=0"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Tags  string `yaml:"tags"`
	File  bool   `yaml:"file"`
}

// LevelValue resolves the configured level, falling back to INFO.
func (l LogConfig) LevelValue() int {
	if n, ok := logging.ParseLogLevel(l.Level); ok {
		return n
	}
	return logging.LogLevelInfo
}

type AdapterConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gte=0"`
	QueryLogging   bool          `yaml:"query_logging"`
}

// Profile is a saved connection used by the admin commands.
type Profile struct {
	Name     string `yaml:"name" validate:"required"`
	Type     string `yaml:"type" validate:"required"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	Database string `yaml:"database" validate:"required"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Descriptor converts the profile into a connection descriptor.
func (p Profile) Descriptor() domain.ConnectionDescriptor {
	return domain.ConnectionDescriptor{
		Server:   p.Server,
		Database: p.Database,
		User:     p.User,
		Password: p.Password,
		Port:     p.Port,
		Kind:     domain.BackendKind(p.Type),
	}.Normalize()
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			CORSOrigins:  []string{"*"},
			RateWindow:   time.Minute,
			ReapInterval: 5 * time.Minute,
			CookieMaxAge: 3600,
		},
		Cache: CacheConfig{
			Backend: CacheBackendRedis,
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Log: LogConfig{Level: "info"},
		Adapters: AdapterConfig{
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Load reads path (or DefaultFile when empty), applies placeholder
// substitution and environment overrides, and validates the result. A missing
// default file is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := substituteEnvVarsInConfig(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML content on top of the defaults without touching the
// environment overrides. It is used for reloads and tests.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	if err := substituteEnvVarsInConfig(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// ValidationErrors collects every problem found in a config.
type ValidationErrors struct {
	Errors []string
}

func (ve *ValidationErrors) Error() string {
	return fmt.Sprintf("config validation failed: %s", strings.Join(ve.Errors, "; "))
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
		}
	}

	if cfg.Log.Level != "" {
		if _, ok := logging.ParseLogLevel(cfg.Log.Level); !ok {
			problems = append(problems, fmt.Sprintf("log.level '%s' is invalid (use 1-4 or error|warn|info|debug)", cfg.Log.Level))
		}
	}

	seen := make(map[string]bool, len(cfg.Connections))
	for _, p := range cfg.Connections {
		if p.Name != "" && seen[p.Name] {
			problems = append(problems, fmt.Sprintf("connection '%s' is defined more than once", p.Name))
		}
		seen[p.Name] = true
		if p.Name == "" || p.Type == "" || p.Database == "" {
			continue
		}
		if err := p.Descriptor().Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("connection '%s': %v", p.Name, err))
		}
	}

	if len(problems) > 0 {
		return &ValidationErrors{Errors: problems}
	}
	return nil
}

// Profile looks a saved connection up by name.
func (c *Config) Profile(name string) (Profile, bool) {
	for _, p := range c.Connections {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Profiles returns the saved connections keyed by name, optionally narrowed
// to one.
func (c *Config) Profiles(only string) (map[string]domain.ConnectionDescriptor, error) {
	out := make(map[string]domain.ConnectionDescriptor, len(c.Connections))
	for _, p := range c.Connections {
		if only != "" && p.Name != only {
			continue
		}
		out[p.Name] = p.Descriptor()
	}
	if only != "" && len(out) == 0 {
		return nil, fmt.Errorf("connection profile '%s' not found", only)
	}
	return out, nil
}

func overrideString(name string, target *string) {
	if value := os.Getenv(name); value != "" {
		*target = value
	}
}

func overrideInt(name string, target *int) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*target = parsed
	}
}

func overrideBool(name string, target *bool) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseBool(value); err == nil {
		*target = parsed
	}
}

// overrideDuration accepts a Go duration or a bare number of seconds.
func overrideDuration(name string, target *time.Duration) {
	value := os.Getenv(name)
	if value == "" {
		return
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		*target = parsed
		return
	}
	if secs, err := strconv.Atoi(value); err == nil {
		*target = time.Duration(secs) * time.Second
	}
}

func applyEnvOverrides(cfg *Config) {
	overrideString("PORT", &cfg.Server.Port)
	overrideString("TABLESCOPE_PORT", &cfg.Server.Port)
	overrideInt("TABLESCOPE_RATE_LIMIT", &cfg.Server.RateLimit)
	overrideDuration("TABLESCOPE_REAP_INTERVAL", &cfg.Server.ReapInterval)
	if origins := os.Getenv("TABLESCOPE_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}

	overrideString("TABLESCOPE_CACHE_BACKEND", &cfg.Cache.Backend)
	overrideString("REDIS_URL", &cfg.Cache.Redis.URL)
	overrideString("REDIS_HOST", &cfg.Cache.Redis.Host)
	overrideInt("REDIS_PORT", &cfg.Cache.Redis.Port)
	overrideInt("REDIS_DB", &cfg.Cache.Redis.DB)
	overrideString("REDIS_PASSWORD", &cfg.Cache.Redis.Password)

	overrideDuration("TABLESCOPE_CONNECT_TIMEOUT", &cfg.Adapters.ConnectTimeout)
	overrideBool("TABLESCOPE_QUERY_LOGGING", &cfg.Adapters.QueryLogging)

	overrideString("TABLESCOPE_LOG_LEVEL", &cfg.Log.Level)
	overrideString("TABLESCOPE_LOG_TAGS", &cfg.Log.Tags)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
