package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/corpusq/internal/domain/corpus"
	"github.com/kailas-cloud/corpusq/internal/domain/corpus/field"
	"github.com/kailas-cloud/corpusq/internal/domain/search/filter"
)

// Config holds the corpusq configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Sync        SyncConfig        `yaml:"sync"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Corpora     []CorpusConfig    `yaml:"corpora"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// EnsureIndexes creates missing corpus indexes on startup.
	EnsureIndexes bool `yaml:"ensure_indexes"`
}

// SyncConfig holds URL synchronization settings.
type SyncConfig struct {
	CoalesceWindowMS int `yaml:"coalesce_window_ms"`
}

// AggregationConfig holds backend aggregation settings.
type AggregationConfig struct {
	TimeoutMS          int     `yaml:"timeout_ms"`
	MaxRPS             float64 `yaml:"max_rps"`       // 0 = unlimited
	CacheTTLSec        int     `yaml:"cache_ttl_sec"` // 0 = cache disabled
	DefaultOptionCount int     `yaml:"default_option_count"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// CorpusConfig declares a searchable corpus.
type CorpusConfig struct {
	Name   string        `yaml:"name"`
	Title  string        `yaml:"title"`
	Index  string        `yaml:"index"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig declares a corpus field and its filter widget.
type FieldConfig struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Filter      string   `yaml:"filter"` // boolean, range, date, multiple_choice, tag; empty = not filterable
	Lower       *float64 `yaml:"lower"`
	Upper       *float64 `yaml:"upper"`
	MinDate     string   `yaml:"min_date"` // YYYY-MM-DD
	MaxDate     string   `yaml:"max_date"` // YYYY-MM-DD
	OptionCount int      `yaml:"option_count"`
}

// CoalesceWindow returns the sync coalescing window.
func (c SyncConfig) CoalesceWindow() time.Duration {
	return time.Duration(c.CoalesceWindowMS) * time.Millisecond
}

// Timeout returns the per-request aggregation timeout.
func (c AggregationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// CacheTTL returns the aggregation cache TTL; zero disables the cache.
func (c AggregationConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from a YAML file path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Sync.CoalesceWindowMS <= 0 {
		c.Sync.CoalesceWindowMS = 100
	}
	if c.Aggregation.TimeoutMS <= 0 {
		c.Aggregation.TimeoutMS = 5000
	}
	if c.Aggregation.DefaultOptionCount <= 0 {
		c.Aggregation.DefaultOptionCount = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "corpusq:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Aggregation.MaxRPS < 0 {
		return fmt.Errorf("aggregation.max_rps must not be negative, got %g", c.Aggregation.MaxRPS)
	}
	if c.Aggregation.CacheTTLSec < 0 {
		return fmt.Errorf("aggregation.cache_ttl_sec must not be negative, got %d", c.Aggregation.CacheTTLSec)
	}
	if _, err := c.BuildCorpora(); err != nil {
		return err
	}
	return nil
}

// BuildCorpora converts the corpus declarations into domain corpora.
func (c *Config) BuildCorpora() ([]corpus.Corpus, error) {
	out := make([]corpus.Corpus, 0, len(c.Corpora))
	seen := make(map[string]bool, len(c.Corpora))
	for i, cc := range c.Corpora {
		if seen[cc.Name] {
			return nil, fmt.Errorf("corpora[%d]: duplicate corpus name %q", i, cc.Name)
		}
		seen[cc.Name] = true

		fields := make([]field.Field, 0, len(cc.Fields))
		for j, fc := range cc.Fields {
			f, err := fc.build()
			if err != nil {
				return nil, fmt.Errorf("corpora[%d].fields[%d]: %w", i, j, err)
			}
			fields = append(fields, f)
		}
		co, err := corpus.New(cc.Name, cc.Title, cc.Index, fields)
		if err != nil {
			return nil, fmt.Errorf("corpora[%d]: %w", i, err)
		}
		out = append(out, co)
	}
	return out, nil
}

func (fc FieldConfig) build() (field.Field, error) {
	ft := field.FilterType(fc.Filter)
	opts := field.Options{OptionCount: fc.OptionCount}
	if fc.Lower != nil {
		opts.Lower = *fc.Lower
	}
	if fc.Upper != nil {
		opts.Upper = *fc.Upper
	}
	if fc.Lower != nil && fc.Upper == nil || fc.Lower == nil && fc.Upper != nil {
		return field.Field{}, fmt.Errorf("field %q: lower and upper must be set together", fc.Name)
	}
	opts.HasBounds = fc.Lower != nil
	var err error
	if opts.MinDate, err = parseDate(fc.MinDate); err != nil {
		return field.Field{}, fmt.Errorf("field %q: min_date: %w", fc.Name, err)
	}
	if opts.MaxDate, err = parseDate(fc.MaxDate); err != nil {
		return field.Field{}, fmt.Errorf("field %q: max_date: %w", fc.Name, err)
	}
	return field.New(fc.Name, fc.DisplayName, ft, opts)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(filter.DateLayout, s) //nolint:wrapcheck // wrapped by caller
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
