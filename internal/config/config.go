package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/urlguard/pkg/serialization"
)

const (
	DefaultStoragePath = "url_cache.json"
	DefaultMetricsPath = "cache_stats.json"

	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config 用於 urlguard 的配置
type Config struct {
	StoragePath        string
	MetricsPath        string
	ExpirationWindow   time.Duration
	EstimatedTimeSaved time.Duration
	PurgeInterval      time.Duration

	Persistence      PersistenceConfig
	BloomFilter      BloomFilterConfig
	ResilienceConfig ResilienceConfig
	Extraction       ExtractionConfig
	Reporting        ReportingConfig
	Server           ServerConfig
	Model            ModelConfig
	Logging          LoggingConfig
	Serialization    serialization.Codec

	Logger *zap.Logger
	Clock  func() time.Time
}

// PersistenceConfig 選擇快照的存放後端
type PersistenceConfig struct {
	Backend        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string
}

// BloomFilterConfig 用於布隆過濾器的配置
type BloomFilterConfig struct {
	ExpectedItems     uint
	FalsePositiveRate float64
}

// ResilienceConfig 用於設置重試和熔斷器
type ResilienceConfig struct {
	CircuitBreaker      gobreaker.Settings
	MaxRetries          int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// ExtractionConfig 特徵擷取相關配置
type ExtractionConfig struct {
	GroupTimeout    time.Duration
	UserAgent       string
	WhoisServer     string
	WhoisRate       float64
	WhoisBurst      int
	LookupCacheSize uint64
	LookupCacheTTL  time.Duration
	Breaker         gobreaker.Settings
}

// ReportingConfig 商業指標的估算常數
type ReportingConfig struct {
	CostPerRequest float64
	KBPerRequest   int64
}

// ServerConfig HTTP 服務配置
type ServerConfig struct {
	Host            string
	Port            int
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ModelConfig 分類模型配置; empty Path uses the bundled model.
type ModelConfig struct {
	Path string
}

// LoggingConfig 日誌相關配置
type LoggingConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrInvalidExpiration = errors.New("expiration window must be positive")
	ErrEmptyStoragePath  = errors.New("storage path must not be empty")
	ErrUnknownBackend    = errors.New("unknown persistence backend")
)

// NewConfig 創建一個默認的 Config，允許覆蓋特定參數
func NewConfig(options ...Option) (*Config, error) {
	codec, err := serialization.ByType(serialization.JSONType)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		StoragePath:        DefaultStoragePath,
		MetricsPath:        DefaultMetricsPath,
		ExpirationWindow:   24 * time.Hour,
		EstimatedTimeSaved: 2500 * time.Millisecond,
		PurgeInterval:      time.Hour,
		Persistence: PersistenceConfig{
			Backend:        BackendFile,
			RedisAddr:      "localhost:6379",
			RedisKeyPrefix: "urlguard:",
		},
		BloomFilter: BloomFilterConfig{
			ExpectedItems:     10000,
			FalsePositiveRate: 0.01,
		},
		ResilienceConfig: ResilienceConfig{
			CircuitBreaker: gobreaker.Settings{
				Name:        "PersistenceCircuitBreaker",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
			MaxRetries:          3,
			InitialInterval:     100 * time.Millisecond,
			MaxInterval:         time.Second,
			Multiplier:          2,
			RandomizationFactor: 0.1,
		},
		Extraction: ExtractionConfig{
			GroupTimeout:    5 * time.Second,
			UserAgent:       "urlguard/1.0",
			WhoisServer:     "whois.iana.org:43",
			WhoisRate:       2,
			WhoisBurst:      4,
			LookupCacheSize: 10000,
			LookupCacheTTL:  10 * time.Minute,
			Breaker: gobreaker.Settings{
				MaxRequests: 1,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 10
				},
			},
		},
		Reporting: ReportingConfig{
			CostPerRequest: 0.002,
			KBPerRequest:   1,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Serialization: codec,
		Logger:        zap.NewNop(),
		Clock:         time.Now,
	}

	// 應用所有選項
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

// Validate 最終檢查
func (c *Config) Validate() error {
	if c.ExpirationWindow <= 0 {
		return ErrInvalidExpiration
	}
	if c.StoragePath == "" || c.MetricsPath == "" {
		return ErrEmptyStoragePath
	}
	switch c.Persistence.Backend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Persistence.Backend)
	}
	if c.EstimatedTimeSaved < 0 {
		return errors.New("estimated time saved must not be negative")
	}
	return nil
}

// Now returns the configured clock reading.
func (c *Config) Now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithStoragePath 設置快取快照路徑
func WithStoragePath(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return ErrEmptyStoragePath
		}
		c.StoragePath = path
		return nil
	}
}

// WithMetricsPath 設置指標快照路徑
func WithMetricsPath(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return ErrEmptyStoragePath
		}
		c.MetricsPath = path
		return nil
	}
}

// WithExpirationWindow 設置快取有效期
func WithExpirationWindow(window time.Duration) Option {
	return func(c *Config) error {
		if window <= 0 {
			return ErrInvalidExpiration
		}
		c.ExpirationWindow = window
		return nil
	}
}

// WithEstimatedTimeSaved 設置每次命中估算節省的時間
func WithEstimatedTimeSaved(d time.Duration) Option {
	return func(c *Config) error {
		c.EstimatedTimeSaved = d
		return nil
	}
}

// WithPurgeInterval 設置定期清理間隔, 0 表示停用
func WithPurgeInterval(d time.Duration) Option {
	return func(c *Config) error {
		c.PurgeInterval = d
		return nil
	}
}

// WithSerialization 設置序列化方式
func WithSerialization(name string) Option {
	return func(c *Config) error {
		codec, err := serialization.ByType(name)
		if err != nil {
			return err
		}
		c.Serialization = codec
		return nil
	}
}

// WithRedis 使用 Redis 作為快照後端
func WithRedis(addr, password string, db int) Option {
	return func(c *Config) error {
		if addr == "" {
			return errors.New("redis address must not be empty")
		}
		c.Persistence.Backend = BackendRedis
		c.Persistence.RedisAddr = addr
		c.Persistence.RedisPassword = password
		c.Persistence.RedisDB = db
		return nil
	}
}

// WithClock 替換時間來源
func WithClock(clock func() time.Time) Option {
	return func(c *Config) error {
		if clock == nil {
			return errors.New("clock must not be nil")
		}
		c.Clock = clock
		return nil
	}
}
