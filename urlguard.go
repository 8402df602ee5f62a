// Package urlguard checks URLs for phishing. Extracted features are cached
// per URL for a configurable window and persisted across restarts, so repeat
// checks skip the slow network lookups.
package urlguard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/urlguard/internal/cache/limited"
	"goflare.io/urlguard/internal/cache/result"
	"goflare.io/urlguard/internal/classify"
	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/extract"
	"goflare.io/urlguard/internal/metrics"
	"goflare.io/urlguard/internal/models"
	"goflare.io/urlguard/internal/persist"
)

// Extractor computes the feature vector of a URL.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (models.FeatureVector, error)
}

// Guard 定義 urlguard 的主要結構體
type Guard struct {
	cfg        *config.Config
	backend    *persist.Backend
	cache      *result.Cache
	metrics    *metrics.Accumulator
	lookups    *limited.Cache
	extractor  Extractor
	classifier classify.Classifier
	registry   *prometheus.Registry

	inflight singleflight.Group

	stopJanitor context.CancelFunc
	janitorDone chan struct{}
	logger      *zap.Logger
}

// New 初始化 Guard, 接受多個配置選項
func New(ctx context.Context, opts ...Option) (*Guard, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	b := &builder{cfg: cfg}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	cfg = b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 初始化持久化後端
	backend, err := persist.NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	g := &Guard{
		cfg:        cfg,
		backend:    backend,
		metrics:    metrics.NewAccumulator(cfg, backend.MetricsBlob()),
		extractor:  b.extractor,
		classifier: b.classifier,
		registry:   prometheus.NewRegistry(),
		logger:     cfg.Logger,
	}

	g.cache, err = result.New(ctx, cfg, backend.CacheBlob(), g.metrics)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize result cache: %w", err)
	}

	if err := g.initComponents(); err != nil {
		_ = g.closeResources(ctx)
		return nil, err
	}

	// 啟動定期清理
	janitorCtx, cancel := context.WithCancel(context.Background())
	g.stopJanitor = cancel
	g.janitorDone = make(chan struct{})
	go func() {
		defer close(g.janitorDone)
		result.NewJanitor(g.cache, cfg.PurgeInterval).Run(janitorCtx)
	}()

	g.logger.Info("urlguard initialized",
		zap.String("backend", cfg.Persistence.Backend),
		zap.String("storage", cfg.StoragePath),
		zap.Duration("expiration_window", cfg.ExpirationWindow))
	return g, nil
}

func (g *Guard) initComponents() error {
	g.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := g.metrics.Register(g.registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	if g.extractor == nil {
		lookups, err := limited.New(g.cfg.Extraction.LookupCacheSize, g.cfg.Extraction.LookupCacheTTL, g.cfg.Now, g.logger)
		if err != nil {
			return err
		}
		g.lookups = lookups
		pipeline := extract.NewPipeline(g.cfg, lookups, extract.DefaultExtractors(g.cfg)...)
		if err := g.registry.Register(pipeline.Failures()); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		g.extractor = pipeline
	}

	if g.classifier == nil {
		model, err := classify.LoadModel(g.cfg.Model.Path)
		if err != nil {
			return err
		}
		g.logger.Info("Classifier model loaded", zap.String("model", model.Name))
		g.classifier = model
	}
	return nil
}

// Check 檢查 URL 並回傳判定結果
//
// The raw string is the cache key. Concurrent misses for the same URL share
// one extraction.
func (g *Guard) Check(ctx context.Context, rawURL string) (models.Verdict, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Verdict{}, ErrEmptyURL
	}
	if _, err := extract.ParseTarget(rawURL); err != nil {
		return models.Verdict{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	features, cached, err := g.cache.Lookup(ctx, rawURL)
	if err != nil {
		g.logger.Warn("Cache lookup could not persist expiry", zap.String("url", rawURL), zap.Error(err))
	}

	if !cached {
		v, err, shared := g.inflight.Do(rawURL, func() (any, error) {
			return g.extractAndStore(context.WithoutCancel(ctx), rawURL)
		})
		if err != nil {
			if errors.Is(err, extract.ErrInvalidTarget) {
				return models.Verdict{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
			}
			return models.Verdict{}, err
		}
		if shared {
			g.logger.Debug("Joined in-flight extraction", zap.String("url", rawURL))
		}
		features = v.(models.FeatureVector)
	}

	prediction, err := g.classifier.Classify(ctx, features)
	if err != nil {
		return models.Verdict{}, fmt.Errorf("failed to classify: %w", err)
	}
	return models.NewVerdict(rawURL, prediction, cached), nil
}

func (g *Guard) extractAndStore(ctx context.Context, rawURL string) (models.FeatureVector, error) {
	features, err := g.extractor.Extract(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := g.cache.Store(ctx, rawURL, features); err != nil {
		g.logger.Warn("Feature vector cached in memory only", zap.String("url", rawURL), zap.Error(err))
	}
	return features, nil
}

// Stats 回傳最近一次持久化的指標與商業估算
func (g *Guard) Stats(ctx context.Context) (models.Report, error) {
	snapshot, err := g.metrics.Load(ctx)
	if err != nil {
		if errors.Is(err, persist.ErrNotExist) {
			return models.Report{}, ErrStatsUnavailable
		}
		return models.Report{}, err
	}
	return metrics.BuildReport(snapshot, g.cfg.Reporting), nil
}

// Snapshot 回傳目前程序內的即時指標
func (g *Guard) Snapshot() models.Snapshot {
	return g.metrics.Snapshot()
}

// Purge 清除所有過期的快取項目, 並清空主機查詢快取
//
// The next extraction of any host repeats its DNS, TLS and WHOIS lookups.
func (g *Guard) Purge(ctx context.Context) (int, error) {
	if g.lookups != nil {
		g.lookups.Flush(ctx)
	}
	return g.cache.PurgeExpired(ctx)
}

// Registry 回傳 Prometheus registry, 供 /metrics 使用
func (g *Guard) Registry() *prometheus.Registry {
	return g.registry
}

// Config 回傳使用中的配置
func (g *Guard) Config() *config.Config {
	return g.cfg
}

// Close 關閉 Guard, 寫出最後的快照並釋放資源
func (g *Guard) Close(ctx context.Context) error {
	g.stopJanitor()
	<-g.janitorDone
	return g.closeResources(ctx)
}

func (g *Guard) closeResources(ctx context.Context) error {
	var err error
	err = multierr.Append(err, g.cache.Close(ctx))
	err = multierr.Append(err, g.metrics.Persist(ctx))
	if g.lookups != nil {
		err = multierr.Append(err, g.lookups.Close())
	}
	err = multierr.Append(err, g.backend.Close())
	return err
}
