package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/llm"
)

func configFor(provider string, dims int) config.EmbeddingConfig {
	return config.EmbeddingConfig{Provider: provider, Dimensions: dims}
}

// MockService is a mock LLM service
type MockService struct {
	mock.Mock
}

func (m *MockService) GenerateQuery(ctx context.Context, req llm.GenerateRequest) (*llm.QueryResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*llm.QueryResponse), args.Error(1)
}

func (m *MockService) EvaluateQuery(ctx context.Context, req llm.EvaluateRequest) (*llm.EvaluationResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*llm.EvaluationResponse), args.Error(1)
}

func (m *MockService) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]float32), args.Error(1)
}

func TestRemoteProviderDelegates(t *testing.T) {
	svc := &MockService{}
	svc.On("Embed", mock.Anything, "question").Return([]float32{0.1, 0.2, 0.3}, nil)

	p, err := NewProvider(configFor("remote", 3), svc)
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, p.Dimensions())
}

func TestRemoteProviderDimensionMismatch(t *testing.T) {
	svc := &MockService{}
	svc.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1, 0.2}, nil)

	p, err := NewProvider(configFor("remote", 3), svc)
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}
