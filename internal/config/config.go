// Package config holds the registry configuration: one YAML file with env
// overrides, shared by the serve, worker and enqueue commands.
package config

import (
	"fmt"
	"time"

	infraconfig "github.com/datacite/lupo-sub003/infrastructure/config"
	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/internal/job"
)

// Config holds all configuration for the registry.
type Config struct {
	Service       ServiceConfig                   `yaml:"service"`
	Server        infraconfig.ServerConfig        `yaml:"server"`
	Elasticsearch infraconfig.ElasticsearchConfig `yaml:"elasticsearch"`
	Database      infraconfig.DatabaseConfig      `yaml:"database"`
	Redis         infraconfig.RedisConfig         `yaml:"redis"`
	Logging       logger.Config                   `yaml:"logging"`
	Jobs          JobsConfig                      `yaml:"jobs"`
	External      ExternalConfig                  `yaml:"external"`
	Storage       infraconfig.S3Config            `yaml:"storage"`
	Query         QueryConfig                     `yaml:"query"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name           string   `yaml:"name"`
	Version        string   `env:"REGISTRY_VERSION" yaml:"version"`
	Debug          bool     `env:"REGISTRY_DEBUG"   yaml:"debug"`
	AllowedOrigins []string `env:"CORS_ORIGINS"     yaml:"allowed_origins"`
	// AutoMigrate applies pending migrations on startup.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" yaml:"auto_migrate"`
}

// JobsConfig configures the runner, the handlers and the scheduler.
type JobsConfig struct {
	Queues       []string      `env:"JOB_QUEUES"      yaml:"queues"`
	Concurrency  int           `env:"JOB_CONCURRENCY" yaml:"concurrency"`
	MaxAttempts  int           `yaml:"max_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
	// RedisPrefix namespaces queue keys.
	RedisPrefix           string `yaml:"redis_prefix"`
	BatchSize             int64  `yaml:"batch_size"`
	EnrichmentConcurrency int    `yaml:"enrichment_concurrency"`

	// Cron specs; an empty spec disables the entry.
	ImportSchedule     string `env:"JOB_IMPORT_SCHEDULE"      yaml:"import_schedule"`
	RORRefreshSchedule string `env:"JOB_ROR_REFRESH_SCHEDULE" yaml:"ror_refresh_schedule"`
	RecoverSchedule    string `yaml:"recover_schedule"`
}

// ExternalConfig configures the reference service clients.
type ExternalConfig struct {
	Mailto    string        `env:"CROSSREF_MAILTO" yaml:"mailto"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	// CachePrefix namespaces lookup cache keys in Redis.
	CachePrefix string         `yaml:"cache_prefix"`
	ORCID       EndpointConfig `yaml:"orcid"`
	Crossref    EndpointConfig `yaml:"crossref"`
	RA          EndpointConfig `yaml:"ra"`
}

// EndpointConfig configures one external service.
type EndpointConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Delay    time.Duration `yaml:"delay"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// QueryConfig bounds the read API.
type QueryConfig struct {
	MaxConnections int `env:"QUERY_MAX_CONNECTIONS" yaml:"max_connections"`
}

// Load loads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults[Config](path, setDefaults)
	if err != nil {
		return nil, err
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	cfg.Server.SetDefaults()
	cfg.Elasticsearch.SetDefaults()
	cfg.Database.SetDefaults()
	cfg.Redis.SetDefaults()
	cfg.Logging.SetDefaults()
	setJobsDefaults(&cfg.Jobs)
	setExternalDefaults(&cfg.External)
	cfg.Storage.SetDefaults()
	if cfg.Query.MaxConnections == 0 {
		cfg.Query.MaxConnections = 20
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = "registry"
	}
	if s.Version == "" {
		s.Version = "1.0.0"
	}
}

func setJobsDefaults(j *JobsConfig) {
	if len(j.Queues) == 0 {
		j.Queues = job.DefaultRunnerConfig().Queues
	}
	if j.Concurrency == 0 {
		j.Concurrency = 4
	}
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.PollInterval == 0 {
		j.PollInterval = time.Second
	}
	if j.StaleAfter == 0 {
		j.StaleAfter = 30 * time.Minute
	}
	if j.RedisPrefix == "" {
		j.RedisPrefix = "registry:jobs"
	}
	if j.BatchSize == 0 {
		j.BatchSize = 500
	}
	if j.EnrichmentConcurrency == 0 {
		j.EnrichmentConcurrency = 10
	}
	if j.ImportSchedule == "" {
		j.ImportSchedule = "0 2 * * *"
	}
	if j.RORRefreshSchedule == "" {
		j.RORRefreshSchedule = "0 3 1 * *"
	}
	if j.RecoverSchedule == "" {
		j.RecoverSchedule = "@every 5m"
	}
}

func setExternalDefaults(e *ExternalConfig) {
	if e.Timeout == 0 {
		e.Timeout = 20 * time.Second
	}
	if e.CachePrefix == "" {
		e.CachePrefix = "registry:cache"
	}
	if e.ORCID.BaseURL == "" {
		e.ORCID.BaseURL = "https://pub.orcid.org/v2.1"
	}
	if e.Crossref.BaseURL == "" {
		e.Crossref.BaseURL = "https://api.crossref.org"
	}
	if e.RA.BaseURL == "" {
		e.RA.BaseURL = "https://doi.org"
	}
}

// Validate checks the sections every command needs.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Elasticsearch.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := infraconfig.ValidateLogLevel("logging.level", c.Logging.Level); err != nil {
		return err
	}
	if c.Jobs.Concurrency < 1 {
		return &infraconfig.ValidationError{Field: "jobs.concurrency", Message: "must be at least 1"}
	}
	if c.Jobs.BatchSize < 1 {
		return &infraconfig.ValidationError{Field: "jobs.batch_size", Message: "must be at least 1"}
	}
	for _, endpoint := range []struct {
		field string
		url   string
	}{
		{"external.orcid.base_url", c.External.ORCID.BaseURL},
		{"external.crossref.base_url", c.External.Crossref.BaseURL},
		{"external.ra.base_url", c.External.RA.BaseURL},
	} {
		if err := infraconfig.ValidateURL(endpoint.field, endpoint.url); err != nil {
			return err
		}
	}
	return nil
}
