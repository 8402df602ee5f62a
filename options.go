package urlguard

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"goflare.io/urlguard/internal/classify"
	"goflare.io/urlguard/internal/config"
)

// builder 收集 New 的設定與可替換元件
type builder struct {
	cfg        *config.Config
	extractor  Extractor
	classifier classify.Classifier
}

// Option 定義初始化 Guard 的選項
type Option func(*builder) error

func configOption(o config.Option) Option {
	return func(b *builder) error {
		return o(b.cfg)
	}
}

// WithConfig 使用已載入的配置, 例如 config.Load 的結果; 應放在其他選項之前
func WithConfig(cfg *config.Config) Option {
	return func(b *builder) error {
		if cfg == nil {
			return errors.New("config must not be nil")
		}
		b.cfg = cfg
		return nil
	}
}

// WithLogger 設置自定義的日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return configOption(config.WithLogger(logger))
}

// WithStoragePath 設置快取快照路徑
func WithStoragePath(path string) Option {
	return configOption(config.WithStoragePath(path))
}

// WithMetricsPath 設置指標快照路徑
func WithMetricsPath(path string) Option {
	return configOption(config.WithMetricsPath(path))
}

// WithExpirationWindow 設置快取有效期
func WithExpirationWindow(window time.Duration) Option {
	return configOption(config.WithExpirationWindow(window))
}

// WithPurgeInterval 設置定期清理間隔, 0 表示停用
func WithPurgeInterval(d time.Duration) Option {
	return configOption(config.WithPurgeInterval(d))
}

// WithSerialization 設置序列化方式 ("json" 或 "gob")
func WithSerialization(name string) Option {
	return configOption(config.WithSerialization(name))
}

// WithRedis 使用 Redis 保存快照
func WithRedis(addr, password string, db int) Option {
	return configOption(config.WithRedis(addr, password, db))
}

// WithClock 替換時間來源
func WithClock(clock func() time.Time) Option {
	return configOption(config.WithClock(clock))
}

// WithExtractor 替換特徵擷取流程
func WithExtractor(e Extractor) Option {
	return func(b *builder) error {
		b.extractor = e
		return nil
	}
}

// WithClassifier 替換分類模型
func WithClassifier(c classify.Classifier) Option {
	return func(b *builder) error {
		b.classifier = c
		return nil
	}
}
