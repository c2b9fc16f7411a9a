package llm

import (
	"context"
	"time"

	"tripreport/internal/logger"
	"tripreport/internal/metrics"
)

// TracedGenerator wraps a Generator with call metrics and debug logging.
type TracedGenerator struct {
	next  Generator
	model string
}

// NewTracedGenerator wraps next. model is only used as a log attribute.
func NewTracedGenerator(next Generator, model string) *TracedGenerator {
	return &TracedGenerator{next: next, model: model}
}

// Unwrap returns the underlying generator.
func (tg *TracedGenerator) Unwrap() Generator {
	return tg.next
}

// Generate calls the wrapped generator and records the outcome.
func (tg *TracedGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := tg.next.Generate(ctx, req)
	elapsed := time.Since(start)

	op := req.Operation
	if op == "" {
		op = "unknown"
	}
	metrics.ModelLatency.WithLabelValues(op).Observe(elapsed.Seconds())

	outcome := "ok"
	switch {
	case err != nil && IsRateLimit(err):
		outcome = "rate_limited"
	case err != nil:
		outcome = "error"
	}
	metrics.ModelCalls.WithLabelValues(op, outcome).Inc()

	logger.Debug("Model call finished",
		"operation", op,
		"model", tg.model,
		"images", len(req.Images),
		"json", req.JSON,
		"latency_ms", elapsed.Milliseconds(),
		"approx_tokens", estimateTokens(req.Prompt, resp.Text),
		"outcome", outcome,
	)
	return resp, err
}

// estimateTokens gives a rough token count (4 chars per token).
func estimateTokens(prompt, completion string) int {
	return (len(prompt) + len(completion)) / 4
}
