package persist

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/urlguard/internal/retrier"
)

// Resilient wraps a Blob with retries for temporary failures and a circuit
// breaker that fails fast while the backend is down.
type Resilient struct {
	blob    Blob
	retrier *retrier.Retrier
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewResilient creates a Resilient around blob. A nil retrier disables
// retries; a nil breaker disables the breaker.
func NewResilient(blob Blob, r *retrier.Retrier, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{blob: blob, retrier: r, cb: cb, logger: logger}
}

func (r *Resilient) Location() string {
	return r.blob.Location()
}

// Load reads the blob. A missing blob is not counted as a breaker failure.
func (r *Resilient) Load(ctx context.Context) ([]byte, error) {
	var (
		data     []byte
		notExist bool
	)
	err := r.execute(ctx, func() error {
		var err error
		data, err = r.blob.Load(ctx)
		if errors.Is(err, ErrNotExist) {
			notExist = true
			return nil
		}
		return err
	})
	if err != nil {
		return nil, r.wrap("load", err)
	}
	if notExist {
		return nil, ErrNotExist
	}
	return data, nil
}

// Save writes the blob.
func (r *Resilient) Save(ctx context.Context, data []byte) error {
	if err := r.execute(ctx, func() error {
		return r.blob.Save(ctx, data)
	}); err != nil {
		return r.wrap("save", err)
	}
	return nil
}

func (r *Resilient) execute(ctx context.Context, f func() error) error {
	run := f
	if r.retrier != nil {
		run = func() error {
			return r.retrier.Run(ctx, f)
		}
	}
	if r.cb == nil {
		return run()
	}
	_, err := r.cb.Execute(func() (any, error) {
		return nil, run()
	})
	return err
}

func (r *Resilient) wrap(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		r.logger.Warn("Persistence circuit breaker rejected call",
			zap.String("op", op), zap.String("location", r.Location()), zap.Error(err))
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return &Error{Op: op, Location: r.Location(), Err: err}
}
