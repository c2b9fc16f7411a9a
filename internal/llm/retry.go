package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"tripreport/internal/logger"
	"tripreport/internal/metrics"

	openai "github.com/openai/openai-go"
	"google.golang.org/genai"
)

const (
	// DefaultMaxRetries is the retry budget for rate limited calls.
	DefaultMaxRetries = 5
	// DefaultBaseDelay is the wait before the first retry; it doubles each time.
	DefaultBaseDelay = 3 * time.Second
	// DefaultMaxJitter bounds the random extra wait added to every delay.
	DefaultMaxJitter = time.Second
)

// RetryPolicy configures backoff for rate limited model calls.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxJitter  time.Duration

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns a value in [0, max). Defaults to math/rand.
	Jitter func(max time.Duration) time.Duration
	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultRetryPolicy returns five retries starting at three seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxJitter:  DefaultMaxJitter,
	}
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p RetryPolicy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	if p.Jitter != nil {
		return p.Jitter(p.MaxJitter)
	}
	return time.Duration(rand.Int64N(int64(p.MaxJitter)))
}

// Retry runs fn, retrying only rate limited failures. Each retry waits
// delay+jitter and doubles delay. Other failures, and the last rate limited
// failure once the budget is spent, are returned unchanged.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	delay := p.BaseDelay
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRateLimit(err) || attempt >= p.MaxRetries {
			return v, err
		}

		wait := delay + p.jitter()
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, err)
		}
		if serr := p.sleep(ctx, wait); serr != nil {
			var zero T
			return zero, errors.Join(err, serr)
		}
		delay *= 2
	}
}

var rateLimitVocabulary = []string{
	"429",
	"quota",
	"rate limit",
	"ratelimit",
	"resource exhausted",
	"resource_exhausted",
	"too many requests",
}

// IsRateLimit reports whether err is transient upstream throttling.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}

	// genai usually returns APIError by value; its message carries the code,
	// which the vocabulary check below catches.
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) && apiErr != nil && (apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}
	var oaErr *openai.Error
	if errors.As(err, &oaErr) && oaErr != nil && oaErr.StatusCode == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, word := range rateLimitVocabulary {
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}

// Call sends req through gen under the retry policy, logging each backoff.
func Call(ctx context.Context, gen Generator, p RetryPolicy, req Request) (Response, error) {
	onRetry := p.OnRetry
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("Rate limit hit, retrying",
			"operation", req.Operation,
			"attempt", attempt,
			"wait", wait,
			"attempts_left", p.MaxRetries-attempt,
			"error", err.Error(),
		)
		metrics.RateLimitRetries.WithLabelValues(req.Operation).Inc()
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
	}

	return Retry(ctx, p, func(ctx context.Context) (Response, error) {
		return gen.Generate(ctx, req)
	})
}
