package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/bioportal/internal/domain/cachekey"
)

// Config holds the bioportal API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Cache     CacheConfig     `yaml:"cache"`
	IDCache   IDCacheConfig   `yaml:"idcache"`
	Query     QueryConfig     `yaml:"query"`
	Taxonomy  TaxonomyConfig  `yaml:"taxonomy"`
	Documents DocumentsConfig `yaml:"documents"`
	Images    ImagesConfig    `yaml:"images"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	// RequestTimeoutSec bounds every API request except downloads.
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
}

// MongoConfig holds document store settings.
type MongoConfig struct {
	URI              string      `yaml:"uri"`
	Database         string      `yaml:"database"`
	TimeoutSec       int         `yaml:"timeout_sec"`
	ReadinessTimeout int         `yaml:"readiness_timeout_sec"`
	Collections      Collections `yaml:"collections"`
}

// Collections names the document store collections.
type Collections struct {
	Primary         string `yaml:"primary"`
	Terms           string `yaml:"terms"`
	Summary         string `yaml:"summary"`
	SeqsiteSummary  string `yaml:"seqsite_summary"`
	BinSummary      string `yaml:"bin_summary"`
	DatasetSummary  string `yaml:"dataset_summary"`
	TaxonomySummary string `yaml:"taxonomy_summary"`
}

// CacheConfig holds meta cache (Redis) settings.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	KeyLayout        string   `yaml:"key_layout"` // typed (default) or bare
	DefaultTTLSec    int      `yaml:"default_ttl_sec"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IDCacheConfig holds durable ID cache (bbolt) settings.
type IDCacheConfig struct {
	Path           string `yaml:"path"`
	MaxAgeHours    int    `yaml:"max_age_hours"` // 0 = entries never expire
	OpenTimeoutSec int    `yaml:"open_timeout_sec"`
}

// QueryConfig holds extent caps and summary resolution settings.
type QueryConfig struct {
	Limited      int `yaml:"limited"`
	Large        int `yaml:"large"`
	SummaryBatch int `yaml:"summary_batch"`
}

// TaxonomyConfig holds taxonomy map settings.
type TaxonomyConfig struct {
	CacheAfterMs         int     `yaml:"cache_after_ms"`
	CacheTTLSec          int     `yaml:"cache_ttl_sec"`
	DominantShare        float64 `yaml:"dominant_share"`
	DefaultNodeThreshold int     `yaml:"default_node_threshold"`
}

// DocumentsConfig holds paging and export settings.
type DocumentsConfig struct {
	DownloadBatch int      `yaml:"download_batch"`
	DownloadMax   int      `yaml:"download_max"`
	DefaultFields []string `yaml:"default_fields"`
}

// ImagesConfig holds image-service client settings.
type ImagesConfig struct {
	BaseURL     string  `yaml:"base_url"`
	TimeoutSec  int     `yaml:"timeout_sec"`
	PIDLimit    int     `yaml:"pid_limit"`
	MaxImages   int     `yaml:"max_images"`
	RatePerSec  float64 `yaml:"rate_per_sec"`
	SampleLimit int     `yaml:"sample_limit"`
}

// Load reads configuration from a YAML file by environment name (local, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

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
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 300
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 120
	}

	if c.Mongo.Database == "" {
		c.Mongo.Database = "bioportal"
	}
	if c.Mongo.TimeoutSec <= 0 {
		c.Mongo.TimeoutSec = 60
	}
	if c.Mongo.ReadinessTimeout <= 0 {
		c.Mongo.ReadinessTimeout = 10
	}
	c.Mongo.Collections.applyDefaults()

	if c.Cache.DefaultTTLSec <= 0 {
		c.Cache.DefaultTTLSec = 604800
	}
	if c.Cache.WriteTimeoutSec <= 0 {
		c.Cache.WriteTimeoutSec = 5
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	if c.IDCache.Path == "" {
		c.IDCache.Path = "data/idcache.db"
	}
	if c.IDCache.OpenTimeoutSec <= 0 {
		c.IDCache.OpenTimeoutSec = 1
	}

	if c.Query.Limited <= 0 {
		c.Query.Limited = 1000
	}
	if c.Query.Large <= 0 {
		c.Query.Large = 20000
	}
	if c.Query.SummaryBatch <= 0 {
		c.Query.SummaryBatch = 1000
	}

	if c.Taxonomy.CacheAfterMs <= 0 {
		c.Taxonomy.CacheAfterMs = 2000
	}
	if c.Taxonomy.CacheTTLSec <= 0 {
		c.Taxonomy.CacheTTLSec = 86400
	}
	if c.Taxonomy.DominantShare <= 0 {
		c.Taxonomy.DominantShare = 0.95
	}
	if c.Taxonomy.DefaultNodeThreshold <= 0 {
		c.Taxonomy.DefaultNodeThreshold = 1000
	}

	if c.Documents.DownloadBatch <= 0 {
		c.Documents.DownloadBatch = 10000
	}
	if c.Documents.DownloadMax <= 0 {
		c.Documents.DownloadMax = 1000000
	}

	if c.Images.TimeoutSec <= 0 {
		c.Images.TimeoutSec = 30
	}
	if c.Images.PIDLimit <= 0 {
		c.Images.PIDLimit = 500
	}
	if c.Images.MaxImages <= 0 {
		c.Images.MaxImages = 50
	}
	if c.Images.RatePerSec <= 0 {
		c.Images.RatePerSec = 10
	}
	if c.Images.SampleLimit <= 0 {
		c.Images.SampleLimit = 5000
	}
}

func (c *Collections) applyDefaults() {
	set := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	set(&c.Primary, "primary")
	set(&c.Terms, "accepted_terms")
	set(&c.Summary, "tax_geo_inst_summaries")
	set(&c.SeqsiteSummary, "sequence_run_site_summaries")
	set(&c.BinSummary, "bin_summaries")
	set(&c.DatasetSummary, "dataset_summaries")
	set(&c.TaxonomySummary, "taxonomy_summaries")
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required")
	}
	if _, err := cachekey.ParseLayout(c.Cache.KeyLayout); err != nil {
		return fmt.Errorf("cache.key_layout: %w", err)
	}
	if c.IDCache.MaxAgeHours < 0 {
		return fmt.Errorf("idcache.max_age_hours must not be negative, got %d", c.IDCache.MaxAgeHours)
	}
	if c.Query.Large < c.Query.Limited {
		return fmt.Errorf("query.large (%d) must not be below query.limited (%d)", c.Query.Large, c.Query.Limited)
	}
	if c.Taxonomy.DominantShare >= 1 {
		return fmt.Errorf("taxonomy.dominant_share must be below 1, got %v", c.Taxonomy.DominantShare)
	}
	if c.Images.BaseURL == "" {
		return fmt.Errorf("images.base_url is required")
	}
	return nil
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
