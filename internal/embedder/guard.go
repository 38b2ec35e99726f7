package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen is returned while the provider's circuit breaker is open
var ErrCircuitOpen = errors.New("embedding provider circuit open")

// GuardOptions configures a Guard
type GuardOptions struct {
	RequestsPerMinute int // <= 0 disables rate limiting
	Retry             RetryConfig
	Logger            *slog.Logger
}

// Guard wraps a remote provider with a rate limiter, retry with backoff and
// a circuit breaker, so a failing service fails fast instead of stalling an
// indexing run chunk by chunk.
type Guard struct {
	inner   Embedder
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
}

// NewGuard wraps inner
func NewGuard(inner Embedder, opts GuardOptions) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retry.MaxRetries <= 0 {
		opts.Retry = DefaultRetryConfig()
	}

	g := &Guard{inner: inner, retry: opts.Retry}

	if rpm := opts.RequestsPerMinute; rpm > 0 {
		burst := rpm / 10
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), burst)
	}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Provider() + "/" + inner.Model(),
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Bad input says nothing about provider health
			return err == nil || isPermanent(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker changed state", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return g
}

func (g *Guard) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := checkText(req.Text); err != nil {
		return nil, err
	}
	return guardedCall(ctx, g, func() (*Embedding, error) {
		return g.inner.GenerateEmbedding(ctx, req)
	})
}

func (g *Guard) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := checkBatch(req.Texts); err != nil {
		return nil, err
	}
	return guardedCall(ctx, g, func() (*BatchEmbeddingResponse, error) {
		return g.inner.GenerateBatch(ctx, req)
	})
}

func guardedCall[T any](ctx context.Context, g *Guard, fn func() (T, error)) (T, error) {
	var zero T
	return retryWithBackoff(ctx, g.retry, func() (T, error) {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		result, err := g.breaker.Execute(func() (interface{}, error) {
			return fn()
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		if err != nil {
			return zero, err
		}
		return result.(T), nil
	})
}

// State reports the breaker state, e.g. "closed" or "open"
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func (g *Guard) Dimension() int   { return g.inner.Dimension() }
func (g *Guard) Provider() string { return g.inner.Provider() }
func (g *Guard) Model() string    { return g.inner.Model() }
func (g *Guard) Close() error     { return g.inner.Close() }
