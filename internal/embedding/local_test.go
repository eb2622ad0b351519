package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	return dot
}

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocalProvider(384)
	ctx := context.Background()

	a, err := p.Embed(ctx, "How many pending orders per state?")
	require.NoError(t, err)

	b, err := p.Embed(ctx, "How many pending orders per state?")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestLocalProviderDimensions(t *testing.T) {
	p := NewLocalProvider(128)
	assert.Equal(t, 128, p.Dimensions())

	vec, err := p.Embed(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, vec, 128)

	// Zero or negative falls back to the default.
	assert.Equal(t, 384, NewLocalProvider(0).Dimensions())
}

func TestLocalProviderNormalized(t *testing.T) {
	p := NewLocalProvider(384)

	vec, err := p.Embed(context.Background(), "orders by state")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}

	assert.InDelta(t, 1.0, math.Sqrt(norm), 0.001)
}

func TestLocalProviderEmptyText(t *testing.T) {
	p := NewLocalProvider(64)

	vec, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vec, 64)
}

func TestLocalProviderSimilarQuestionsAreCloser(t *testing.T) {
	p := NewLocalProvider(384)
	ctx := context.Background()

	base, err := p.Embed(ctx, "how many pending orders per state")
	require.NoError(t, err)

	near, err := p.Embed(ctx, "count of pending orders per state")
	require.NoError(t, err)

	far, err := p.Embed(ctx, "list the most expensive products")
	require.NoError(t, err)

	assert.Greater(t, cosine(base, near), cosine(base, far))
}

func TestNewProviderSelection(t *testing.T) {
	p, err := NewProvider(configFor("local", 64), nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalProvider{}, p)

	_, err = NewProvider(configFor("remote", 64), nil)
	require.Error(t, err, "remote provider needs a service")

	_, err = NewProvider(configFor("quantum", 64), nil)
	require.Error(t, err)
}
