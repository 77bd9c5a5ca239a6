package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

const (
	// DefaultModel is the OpenAI model used for report embeddings.
	DefaultModel = "text-embedding-3-small"

	// DefaultDimension is the vector size of text-embedding-3-small.
	DefaultDimension = 1536
)

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	Dimension int
	// RequestsPerSecond caps outgoing requests. Zero disables the limiter.
	RequestsPerSecond float64
}

// OpenAIProvider calls the OpenAI embeddings API. It retries with
// exponential backoff on rate limit errors.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
	limiter   *rate.Limiter
}

// NewOpenAIProvider creates a provider. It returns ErrProviderUnavailable when
// no API key is configured.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrProviderUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &OpenAIProvider{
		client:    openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		limiter:   limiter,
	}, nil
}

// Name identifies vectors produced by this provider.
func (p *OpenAIProvider) Name() string { return "openai:" + p.model }

// Dimension returns the configured vector size.
func (p *OpenAIProvider) Dimension() int { return p.dimension }

// Embed returns the embedding for text.
// Retries with exponential backoff on rate limit errors (HTTP 429).
// Other errors are treated as permanent and fail immediately.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	operation := func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: []string{text},
			},
			Model:      openai.EmbeddingModel(p.model),
			Dimensions: openai.Int(int64(p.dimension)),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // Will retry with backoff
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(errors.New("empty embedding response"))
		}
		vector = toFloat32(resp.Data[0].Embedding)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	return vector, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but storage uses float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
