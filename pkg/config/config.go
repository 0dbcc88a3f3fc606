package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// Config is the global configuration tree, loaded from YAML then overlaid
// with environment variables (§6).
type Config struct {
	Server           ServerConfig           `yaml:"server"`
	Redis            RedisConfig            `yaml:"redis"`
	MySQL            MySQLConfig            `yaml:"mysql"`
	Logger           LoggerConfig           `yaml:"logger"`
	K8s              K8sConfig              `yaml:"k8s"`
	Novita           NovitaConfig           `yaml:"novita"`
	HealthCheck      HealthCheckConfig      `yaml:"healthCheck"`
	Migration        MigrationConfig        `yaml:"migration"`
	InstanceStartup  InstanceStartupConfig  `yaml:"instanceStartup"`
	Queue            QueueConfig            `yaml:"queue"`
	Cache            CacheConfig            `yaml:"cache"`
}

// ServerConfig is the HTTP/WS transport configuration.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Mode    string `yaml:"mode"` // debug, release
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// RedisConfig configures the Redis-backed job queue and cache.
type RedisConfig struct {
	URL                 string `yaml:"url"`
	Token               string `yaml:"token"`
	Addr                string `yaml:"addr"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	ConnectionTimeoutMs int    `yaml:"connection_timeout_ms"`
	CommandTimeoutMs    int    `yaml:"command_timeout_ms"`
	RetryAttempts       int    `yaml:"retry_attempts"`
	RetryDelayMs        int    `yaml:"retry_delay_ms"`
	KeyPrefix           string `yaml:"key_prefix"`
	EnableFallback      bool   `yaml:"enable_fallback"`
}

// MySQLConfig configures the durability layer underneath C8 (§11).
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	Format string           `yaml:"format"` // json, console
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// K8sConfig configures the thin provenance-stamping helper in pkg/k8sinfo,
// not orchestration (GPU instances are upstream-provider resources).
type K8sConfig struct {
	Enabled          bool   `yaml:"enabled"`
	DownwardAPIPath  string `yaml:"downward_api_path"`
}

// NovitaConfig configures the upstream GPU cloud API client (C2).
type NovitaConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	DefaultRegion     string `yaml:"default_region"`
	PollIntervalSec   int    `yaml:"poll_interval_seconds"`
	MaxRetryAttempts  int    `yaml:"max_retry_attempts"`
	RequestTimeoutMs  int    `yaml:"request_timeout_ms"`
}

// HealthCheckConfig configures C5 probe behavior.
type HealthCheckConfig struct {
	TimeoutMs      int `yaml:"timeout_ms"`
	RetryAttempts  int `yaml:"retry_attempts"`
	RetryDelayMs   int `yaml:"retry_delay_ms"`
	MaxWaitMs      int `yaml:"max_wait_ms"`
}

// MigrationConfig configures C9.
type MigrationConfig struct {
	Enabled             bool `yaml:"enabled"`
	ScheduleIntervalMs  int  `yaml:"schedule_interval_ms"`
	JobTimeoutMs        int  `yaml:"job_timeout_ms"`
	MaxConcurrent       int  `yaml:"max_concurrent"`
	DryRun              bool `yaml:"dry_run"`
	RetryFailed         bool `yaml:"retry_failed"`
}

// InstanceStartupConfig configures Startup Operation tracking (§3, §9).
type InstanceStartupConfig struct {
	DefaultMaxWaitMs    int  `yaml:"default_max_wait_ms"`
	EnableNameLookup    bool `yaml:"enable_name_lookup"`
	OperationTimeoutMs  int  `yaml:"operation_timeout_ms"`
}

// QueueConfig configures C6's processing loop and stale-job recovery, plus
// the auxiliary asynq-driven maintenance jobs (§11).
type QueueConfig struct {
	WorkerCount          int `yaml:"worker_count"`
	JobStaleProcessingMs int `yaml:"job_stale_processing_ms"`
	CleanupOlderThanMs   int `yaml:"cleanup_older_than_ms"`
	MaintenanceIntervalMs int `yaml:"maintenance_interval_ms"`
}

// CacheConfig configures the default Cache Manager caches (C1).
type CacheConfig struct {
	DefaultMaxSize       int `yaml:"default_max_size"`
	DefaultTTLMs         int `yaml:"default_ttl_ms"`
	CleanupIntervalMs    int `yaml:"cleanup_interval_ms"`
}

// Init loads configuration from CONFIG_PATH (default config/config.yaml),
// applies environment overrides, then fills in defaults for anything left
// at its zero value.
func Init() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(configPath)
	if err != nil {
		// A missing config file is not fatal: applyEnvOverrides and
		// validateAndApplyDefaults together still produce a usable config.
		log.Printf("[WARN] could not read config file '%s': %v, falling back to env + defaults", configPath, err)
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}

	applyEnvOverrides(&cfg)
	validateAndApplyDefaults(&cfg)

	GlobalConfig = &cfg
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NOVITA_API_KEY"); v != "" {
		cfg.Novita.APIKey = v
	}
	if v := os.Getenv("NOVITA_BASE_URL"); v != "" {
		cfg.Novita.BaseURL = v
	}
	if v := os.Getenv("DEFAULT_REGION"); v != "" {
		cfg.Novita.DefaultRegion = v
	}
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Novita.PollIntervalSec = n
		} else {
			log.Printf("[WARN] invalid POLL_INTERVAL_SECONDS value '%s', using config file value: %v", v, err)
		}
	}
	if v := os.Getenv("MAX_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Novita.MaxRetryAttempts = n
		} else {
			log.Printf("[WARN] invalid MAX_RETRY_ATTEMPTS value '%s', using config file value: %v", v, err)
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Novita.RequestTimeoutMs = n
		} else {
			log.Printf("[WARN] invalid REQUEST_TIMEOUT_MS value '%s', using config file value: %v", v, err)
		}
	}

	if v := os.Getenv("HEALTH_CHECK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HealthCheck.TimeoutMs = n
		}
	}
	if v := os.Getenv("HEALTH_CHECK_RETRY_ATTEMPTS_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.HealthCheck.RetryAttempts = n
		}
	}
	if v := os.Getenv("HEALTH_CHECK_RETRY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.HealthCheck.RetryDelayMs = n
		}
	}
	if v := os.Getenv("HEALTH_CHECK_MAX_WAIT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HealthCheck.MaxWaitMs = n
		}
	}

	if v := os.Getenv("MIGRATION_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Migration.Enabled = b
		} else {
			log.Printf("[WARN] invalid MIGRATION_ENABLED value '%s': %v", v, err)
		}
	}
	if v := os.Getenv("MIGRATION_SCHEDULE_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Migration.ScheduleIntervalMs = n
		}
	}
	if v := os.Getenv("MIGRATION_JOB_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Migration.JobTimeoutMs = n
		}
	}
	if v := os.Getenv("MIGRATION_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Migration.MaxConcurrent = n
		}
	}
	if v := os.Getenv("MIGRATION_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Migration.DryRun = b
		}
	}
	if v := os.Getenv("MIGRATION_RETRY_FAILED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Migration.RetryFailed = b
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_TOKEN"); v != "" {
		cfg.Redis.Token = v
	}
	if v := os.Getenv("REDIS_CONNECTION_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Redis.ConnectionTimeoutMs = n
		}
	}
	if v := os.Getenv("REDIS_COMMAND_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Redis.CommandTimeoutMs = n
		}
	}
	if v := os.Getenv("REDIS_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Redis.RetryAttempts = n
		}
	}
	if v := os.Getenv("REDIS_RETRY_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Redis.RetryDelayMs = n
		}
	}
	if v := os.Getenv("REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := os.Getenv("REDIS_ENABLE_FALLBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.EnableFallback = b
		}
	}

	if v := os.Getenv("INSTANCE_STARTUP_DEFAULT_MAX_WAIT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.InstanceStartup.DefaultMaxWaitMs = n
		}
	}
	if v := os.Getenv("INSTANCE_STARTUP_ENABLE_NAME_LOOKUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.InstanceStartup.EnableNameLookup = b
		}
	}
	if v := os.Getenv("INSTANCE_STARTUP_OPERATION_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.InstanceStartup.OperationTimeoutMs = n
		}
	}
}

// validateAndApplyDefaults fills zero-value fields with documented
// defaults, following a DefaultConfig-style default-constructor shape.
func validateAndApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}

	if cfg.Redis.Addr == "" && cfg.Redis.URL == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.ConnectionTimeoutMs <= 0 {
		cfg.Redis.ConnectionTimeoutMs = 5000
	}
	if cfg.Redis.CommandTimeoutMs <= 0 {
		cfg.Redis.CommandTimeoutMs = 3000
	}
	if cfg.Redis.RetryAttempts <= 0 {
		cfg.Redis.RetryAttempts = 3
	}
	if cfg.Redis.RetryDelayMs <= 0 {
		cfg.Redis.RetryDelayMs = 200
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "novita_api"
	}

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Output == "" {
		cfg.Logger.Output = "console"
	}
	if cfg.Logger.File.Path == "" {
		cfg.Logger.File.Path = "logs/app.log"
	}

	if cfg.Novita.BaseURL == "" {
		cfg.Novita.BaseURL = "https://api.novita.ai"
	}
	if cfg.Novita.DefaultRegion == "" {
		cfg.Novita.DefaultRegion = "CN-HK-01"
	}
	if cfg.Novita.PollIntervalSec <= 0 {
		cfg.Novita.PollIntervalSec = 10
	}
	if cfg.Novita.MaxRetryAttempts <= 0 {
		cfg.Novita.MaxRetryAttempts = 3
	}
	if cfg.Novita.RequestTimeoutMs <= 0 {
		cfg.Novita.RequestTimeoutMs = 30000
	}

	if cfg.HealthCheck.TimeoutMs <= 0 {
		cfg.HealthCheck.TimeoutMs = 10000
	}
	if cfg.HealthCheck.RetryAttempts <= 0 {
		cfg.HealthCheck.RetryAttempts = 3
	}
	if cfg.HealthCheck.RetryDelayMs <= 0 {
		cfg.HealthCheck.RetryDelayMs = 2000
	}
	if cfg.HealthCheck.MaxWaitMs <= 0 {
		cfg.HealthCheck.MaxWaitMs = 300000
	}

	if cfg.Migration.ScheduleIntervalMs <= 0 {
		cfg.Migration.ScheduleIntervalMs = 15 * 60 * 1000
	}
	if cfg.Migration.JobTimeoutMs <= 0 {
		cfg.Migration.JobTimeoutMs = 5 * 60 * 1000
	}
	if cfg.Migration.MaxConcurrent <= 0 {
		cfg.Migration.MaxConcurrent = 5
	}

	if cfg.InstanceStartup.DefaultMaxWaitMs <= 0 {
		cfg.InstanceStartup.DefaultMaxWaitMs = 10 * 60 * 1000
	}
	if cfg.InstanceStartup.OperationTimeoutMs <= 0 {
		cfg.InstanceStartup.OperationTimeoutMs = 10 * 60 * 1000
	}

	if cfg.Queue.WorkerCount <= 0 {
		cfg.Queue.WorkerCount = 1
	}
	if cfg.Queue.JobStaleProcessingMs <= 0 {
		cfg.Queue.JobStaleProcessingMs = 5 * 60 * 1000
	}
	if cfg.Queue.CleanupOlderThanMs <= 0 {
		cfg.Queue.CleanupOlderThanMs = 24 * 60 * 60 * 1000
	}
	if cfg.Queue.MaintenanceIntervalMs <= 0 {
		cfg.Queue.MaintenanceIntervalMs = 60 * 1000
	}

	if cfg.Cache.DefaultMaxSize <= 0 {
		cfg.Cache.DefaultMaxSize = 1000
	}
	if cfg.Cache.DefaultTTLMs <= 0 {
		cfg.Cache.DefaultTTLMs = int(5 * time.Minute / time.Millisecond)
	}
	if cfg.Cache.CleanupIntervalMs <= 0 {
		cfg.Cache.CleanupIntervalMs = 60 * 1000
	}

	if cfg.K8s.DownwardAPIPath == "" {
		cfg.K8s.DownwardAPIPath = "/etc/podinfo"
	}
}
