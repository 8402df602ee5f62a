package extract

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/urlguard/internal/cache/limited"
	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/models"
)

// Pipeline runs every registered Extractor concurrently and merges their
// features into one vector.
type Pipeline struct {
	extractors []Extractor
	breakers   map[Group]*gobreaker.CircuitBreaker
	lookups    *limited.Cache
	timeout    time.Duration

	failures *prometheus.CounterVec
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewPipeline creates a Pipeline. lookups may be nil to disable result
// sharing between URLs on the same host.
func NewPipeline(cfg *config.Config, lookups *limited.Cache, extractors ...Extractor) *Pipeline {
	p := &Pipeline{
		extractors: extractors,
		breakers:   make(map[Group]*gobreaker.CircuitBreaker, len(extractors)),
		lookups:    lookups,
		timeout:    cfg.Extraction.GroupTimeout,
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urlguard",
			Subsystem: "extraction",
			Name:      "group_failures_total",
			Help:      "Feature groups that fell back to default values.",
		}, []string{"group"}),
		tracer: otel.Tracer("urlguard/extract"),
		logger: cfg.Logger,
	}
	for _, e := range extractors {
		settings := cfg.Extraction.Breaker
		settings.Name = string(e.Group())
		p.breakers[e.Group()] = gobreaker.NewCircuitBreaker(settings)
	}
	return p
}

// DefaultExtractors builds the network-backed extractors for all groups.
func DefaultExtractors(cfg *config.Config) []Extractor {
	ec := cfg.Extraction
	whois := NewWhoisClient(ec.WhoisServer, ec.WhoisRate, ec.WhoisBurst, ec.GroupTimeout, cfg.Logger)
	return []Extractor{
		NewDNSExtractor(nil),
		NewTLSExtractor(nil, ec.GroupTimeout, cfg.Now),
		NewDomainExtractor(whois, cfg.Now),
		NewContentExtractor(&http.Client{Timeout: ec.GroupTimeout}, ec.UserAgent),
	}
}

// Failures is the per-group failure counter, for registration with a
// Prometheus registry.
func (p *Pipeline) Failures() *prometheus.CounterVec {
	return p.failures
}

// Extract computes the feature vector of rawURL. Group failures are logged
// and replaced by defaults; only an unparsable URL is an error.
func (p *Pipeline) Extract(ctx context.Context, rawURL string) (models.FeatureVector, error) {
	t, err := ParseTarget(rawURL)
	if err != nil {
		return nil, err
	}
	return Aggregate(p.Run(ctx, t)), nil
}

// Run computes every group for t. Results are in extractor order.
func (p *Pipeline) Run(ctx context.Context, t *Target) []GroupResult {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Run", trace.WithAttributes(attribute.String("host", t.Host)))
	defer span.End()

	results := make([]GroupResult, len(p.extractors))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range p.extractors {
		g.Go(func() error {
			results[i] = p.runGroup(gctx, e, t)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			p.failures.WithLabelValues(string(r.Group)).Inc()
			p.logger.Warn("Feature group failed, using defaults",
				zap.String("url", t.Raw), zap.String("group", string(r.Group)), zap.Error(r.Err.Err))
		}
	}
	return results
}

func (p *Pipeline) runGroup(ctx context.Context, e Extractor, t *Target) GroupResult {
	group := e.Group()
	ctx, span := p.tracer.Start(ctx, "Extractor."+string(group))
	defer span.End()

	start := time.Now()
	res := GroupResult{Group: group}
	key := e.CacheKey(t)

	if key != "" && p.lookups != nil {
		if v, ok := p.lookups.Get(ctx, key); ok {
			if f, ok := v.(Features); ok {
				span.SetAttributes(attribute.Bool("cached", true))
				res.Features, res.Cached = f, true
				res.Duration = time.Since(start)
				return res
			}
		}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	v, err := p.breakers[group].Execute(func() (interface{}, error) {
		return e.Extract(ctx, t)
	})
	res.Duration = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		res.Err = &GroupError{Group: group, Err: err}
		return res
	}

	res.Features = v.(Features)
	if key != "" && p.lookups != nil {
		if err := p.lookups.Set(ctx, key, res.Features); err != nil && !errors.Is(err, limited.ErrRejected) {
			p.logger.Debug("Failed to cache lookup result", zap.String("key", key), zap.Error(err))
		}
	}
	return res
}

// Aggregate merges group results into one vector, substituting defaults for
// failed groups and for any default key a group left out.
func Aggregate(results []GroupResult) models.FeatureVector {
	out := make(models.FeatureVector)
	for _, r := range results {
		for k, v := range Defaults(r.Group) {
			out[k] = v
		}
		if r.Err != nil {
			continue
		}
		for k, v := range r.Features {
			out[k] = v
		}
	}
	return out
}
