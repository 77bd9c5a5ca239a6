// Package embedding turns enriched report text into fixed-length vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrProviderUnavailable is returned when the primary provider is not
// configured.
var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// Provider produces embeddings of a fixed dimension.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}

// DefaultTimeout bounds a single primary provider call.
const DefaultTimeout = 10 * time.Second

// Result is an embedding together with the provider that produced it.
type Result struct {
	Vector []float32
	// Source is the provider name, e.g. "openai:text-embedding-3-small" or
	// "fallback". Vectors from different sources must not be compared.
	Source string
	// Degraded is set when the primary provider failed and the fallback
	// answered instead.
	Degraded bool
}

// Generator embeds text with a primary provider and falls back to the
// deterministic HashProvider when the primary is missing, fails or times out.
type Generator struct {
	primary  Provider
	fallback *HashProvider
	timeout  time.Duration
	logger   *slog.Logger
}

// NewGenerator creates a generator. primary may be nil for offline use.
// A non-positive timeout selects DefaultTimeout.
func NewGenerator(primary Provider, dimension int, timeout time.Duration, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if primary != nil {
		dimension = primary.Dimension()
	}
	return &Generator{
		primary:  primary,
		fallback: NewHashProvider(dimension),
		timeout:  timeout,
		logger:   logger,
	}
}

// Dimension returns the size of every vector this generator produces.
func (g *Generator) Dimension() int { return g.fallback.Dimension() }

// Source returns the provenance tag of vectors produced when the primary
// provider is healthy.
func (g *Generator) Source() string {
	if g.primary == nil {
		return g.fallback.Name()
	}
	return g.primary.Name()
}

// Embed returns the embedding for text. It only fails when ctx is already
// done; provider failures degrade to the fallback.
func (g *Generator) Embed(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("embed: %w", err)
	}

	if g.primary != nil {
		vector, err := g.embedPrimary(ctx, text)
		if err == nil {
			return Result{Vector: vector, Source: g.primary.Name()}, nil
		}
		g.logger.Warn("Embedding provider failed, using fallback",
			"provider", g.primary.Name(), "error", err)
	}

	vector, _ := g.fallback.Embed(ctx, text)
	return Result{
		Vector:   vector,
		Source:   g.fallback.Name(),
		Degraded: g.primary != nil,
	}, nil
}

func (g *Generator) embedPrimary(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vector, err := g.primary.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) != g.fallback.Dimension() {
		return nil, fmt.Errorf("provider returned %d dimensions, expected %d", len(vector), g.fallback.Dimension())
	}
	return vector, nil
}
