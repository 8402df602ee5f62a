package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "URLGUARD"

// fileConfig mirrors the subset of Config that may be set from a file or the
// environment.
type fileConfig struct {
	StoragePath        string        `mapstructure:"storage_path"`
	MetricsPath        string        `mapstructure:"metrics_path"`
	ExpirationWindow   time.Duration `mapstructure:"expiration_window"`
	EstimatedTimeSaved time.Duration `mapstructure:"estimated_time_saved"`
	PurgeInterval      time.Duration `mapstructure:"purge_interval"`
	Serialization      string        `mapstructure:"serialization"`

	Persistence struct {
		Backend        string `mapstructure:"backend"`
		RedisAddr      string `mapstructure:"redis_addr"`
		RedisPassword  string `mapstructure:"redis_password"`
		RedisDB        int    `mapstructure:"redis_db"`
		RedisKeyPrefix string `mapstructure:"redis_key_prefix"`
	} `mapstructure:"persistence"`

	Extraction struct {
		GroupTimeout   time.Duration `mapstructure:"group_timeout"`
		UserAgent      string        `mapstructure:"user_agent"`
		WhoisServer    string        `mapstructure:"whois_server"`
		WhoisRate      float64       `mapstructure:"whois_rate"`
		WhoisBurst     int           `mapstructure:"whois_burst"`
		LookupCacheTTL time.Duration `mapstructure:"lookup_cache_ttl"`
	} `mapstructure:"extraction"`

	Reporting struct {
		CostPerRequest float64 `mapstructure:"cost_per_request"`
		KBPerRequest   int64   `mapstructure:"kb_per_request"`
	} `mapstructure:"reporting"`

	Server struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		AllowedOrigins  []string      `mapstructure:"allowed_origins"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	ModelPath string `mapstructure:"model_path"`

	Logging struct {
		Level      string `mapstructure:"level"`
		Format     string `mapstructure:"format"`
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAgeDays int    `mapstructure:"max_age_days"`
	} `mapstructure:"logging"`
}

// Load reads configuration from path (optional) and URLGUARD_* environment
// variables on top of the defaults from NewConfig. An empty path searches
// ./urlguard.yaml and /etc/urlguard/urlguard.yaml; a missing file is not an
// error.
func Load(path string, options ...Option) (*Config, error) {
	cfg, err := NewConfig()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("urlguard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/urlguard/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	apply(cfg, &fc)
	if err := WithSerialization(fc.Serialization)(cfg); err != nil {
		return nil, err
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage_path", cfg.StoragePath)
	v.SetDefault("metrics_path", cfg.MetricsPath)
	v.SetDefault("expiration_window", cfg.ExpirationWindow)
	v.SetDefault("estimated_time_saved", cfg.EstimatedTimeSaved)
	v.SetDefault("purge_interval", cfg.PurgeInterval)
	v.SetDefault("serialization", cfg.Serialization.Type)

	v.SetDefault("persistence.backend", cfg.Persistence.Backend)
	v.SetDefault("persistence.redis_addr", cfg.Persistence.RedisAddr)
	v.SetDefault("persistence.redis_password", cfg.Persistence.RedisPassword)
	v.SetDefault("persistence.redis_db", cfg.Persistence.RedisDB)
	v.SetDefault("persistence.redis_key_prefix", cfg.Persistence.RedisKeyPrefix)

	v.SetDefault("extraction.group_timeout", cfg.Extraction.GroupTimeout)
	v.SetDefault("extraction.user_agent", cfg.Extraction.UserAgent)
	v.SetDefault("extraction.whois_server", cfg.Extraction.WhoisServer)
	v.SetDefault("extraction.whois_rate", cfg.Extraction.WhoisRate)
	v.SetDefault("extraction.whois_burst", cfg.Extraction.WhoisBurst)
	v.SetDefault("extraction.lookup_cache_ttl", cfg.Extraction.LookupCacheTTL)

	v.SetDefault("reporting.cost_per_request", cfg.Reporting.CostPerRequest)
	v.SetDefault("reporting.kb_per_request", cfg.Reporting.KBPerRequest)

	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)

	v.SetDefault("model_path", cfg.Model.Path)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)
}

func apply(cfg *Config, fc *fileConfig) {
	cfg.StoragePath = fc.StoragePath
	cfg.MetricsPath = fc.MetricsPath
	cfg.ExpirationWindow = fc.ExpirationWindow
	cfg.EstimatedTimeSaved = fc.EstimatedTimeSaved
	cfg.PurgeInterval = fc.PurgeInterval

	cfg.Persistence.Backend = fc.Persistence.Backend
	cfg.Persistence.RedisAddr = fc.Persistence.RedisAddr
	cfg.Persistence.RedisPassword = fc.Persistence.RedisPassword
	cfg.Persistence.RedisDB = fc.Persistence.RedisDB
	cfg.Persistence.RedisKeyPrefix = fc.Persistence.RedisKeyPrefix

	cfg.Extraction.GroupTimeout = fc.Extraction.GroupTimeout
	cfg.Extraction.UserAgent = fc.Extraction.UserAgent
	cfg.Extraction.WhoisServer = fc.Extraction.WhoisServer
	cfg.Extraction.WhoisRate = fc.Extraction.WhoisRate
	cfg.Extraction.WhoisBurst = fc.Extraction.WhoisBurst
	cfg.Extraction.LookupCacheTTL = fc.Extraction.LookupCacheTTL

	cfg.Reporting.CostPerRequest = fc.Reporting.CostPerRequest
	cfg.Reporting.KBPerRequest = fc.Reporting.KBPerRequest

	cfg.Server.Host = fc.Server.Host
	cfg.Server.Port = fc.Server.Port
	cfg.Server.AllowedOrigins = fc.Server.AllowedOrigins
	cfg.Server.ReadTimeout = fc.Server.ReadTimeout
	cfg.Server.WriteTimeout = fc.Server.WriteTimeout
	cfg.Server.ShutdownTimeout = fc.Server.ShutdownTimeout

	cfg.Model.Path = fc.ModelPath

	cfg.Logging.Level = fc.Logging.Level
	cfg.Logging.Format = fc.Logging.Format
	cfg.Logging.File = fc.Logging.File
	cfg.Logging.MaxSizeMB = fc.Logging.MaxSizeMB
	cfg.Logging.MaxBackups = fc.Logging.MaxBackups
	cfg.Logging.MaxAgeDays = fc.Logging.MaxAgeDays
}
