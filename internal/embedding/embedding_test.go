package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(64)
	ctx := context.Background()

	a1, err := p.Embed(ctx, "TLC 3650")
	require.NoError(t, err)
	a2, err := p.Embed(ctx, "TLC 3650")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "TLC 3651")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, 64)
}

func TestHashProvider_UnitLength(t *testing.T) {
	v, err := NewHashProvider(DefaultDimension).Embed(context.Background(), "some report")
	require.NoError(t, err)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

type stubProvider struct {
	vector []float32
	err    error
	delay  time.Duration
}

func (s *stubProvider) Embed(ctx context.Context, _ string) ([]float32, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.vector, s.err
}

func (s *stubProvider) Dimension() int { return 4 }
func (s *stubProvider) Name() string   { return "stub" }

func TestGenerator_Primary(t *testing.T) {
	g := NewGenerator(&stubProvider{vector: []float32{1, 0, 0, 0}}, 0, time.Second, nil)

	res, err := g.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, res.Vector)
	assert.Equal(t, "stub", res.Source)
	assert.False(t, res.Degraded)
	assert.Equal(t, "stub", g.Source())
}

func TestGenerator_FallbackOnError(t *testing.T) {
	g := NewGenerator(&stubProvider{err: errors.New("boom")}, 0, time.Second, nil)

	res, err := g.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, FallbackName, res.Source)
	assert.True(t, res.Degraded)
	assert.Len(t, res.Vector, 4)

	want, _ := NewHashProvider(4).Embed(context.Background(), "x")
	assert.Equal(t, want, res.Vector)
}

func TestGenerator_FallbackOnTimeout(t *testing.T) {
	g := NewGenerator(&stubProvider{vector: []float32{1, 0, 0, 0}, delay: time.Second}, 0, 20*time.Millisecond, nil)

	res, err := g.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, FallbackName, res.Source)
}

func TestGenerator_FallbackOnDimensionMismatch(t *testing.T) {
	g := NewGenerator(&stubProvider{vector: []float32{1, 0}}, 0, time.Second, nil)

	res, err := g.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, FallbackName, res.Source)
	assert.Len(t, res.Vector, 4)
}

func TestGenerator_Offline(t *testing.T) {
	g := NewGenerator(nil, 8, 0, nil)

	res, err := g.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, FallbackName, res.Source)
	assert.False(t, res.Degraded)
	assert.Equal(t, 8, g.Dimension())
	assert.Equal(t, FallbackName, g.Source())
}

func TestGenerator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator(nil, 8, 0, nil).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", Dimension: 256})
	require.NoError(t, err)
	assert.Equal(t, "openai:"+DefaultModel, p.Name())
	assert.Equal(t, 256, p.Dimension())
}
