package generate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/config"
	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/llm"
	"github.com/askdb/askdb/internal/template"
)

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

func testCatalog(t *testing.T) *catalog.Store {
	t.Helper()

	dir := t.TempDir()

	light := `version: 1
tables:
  - table: orders
    description: Customer orders
    key_fields: [id, state, status]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(light), 0o644))

	store := catalog.NewStore(config.CatalogConfig{Dir: dir, LightFile: "catalog.yaml", TablesDir: "tables"})
	require.NoError(t, store.Load())

	return store
}

func TestGenerateBuildsRequest(t *testing.T) {
	svc := &MockService{}
	cat := testCatalog(t)

	var captured llm.GenerateRequest

	svc.On("GenerateQuery", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(llm.GenerateRequest)
		}).
		Return(&llm.QueryResponse{SQL: "SELECT COUNT(*) FROM orders", Confidence: 0.9}, nil)

	g := New(svc, cat)

	matches := []template.Match{
		{Template: template.Template{QuestionText: "How many partners?", SQLText: "SELECT COUNT(*) FROM partners"}},
	}

	result, err := g.Generate(context.Background(), "How many orders?", matches, []string{"fix the table name"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM orders", result.SQL)
	assert.Equal(t, "How many orders?", captured.Question)
	assert.Contains(t, captured.Catalog, "- orders: Customer orders")
	require.Len(t, captured.Examples, 1)
	assert.Equal(t, "How many partners?", captured.Examples[0].Question)
	assert.Equal(t, []string{"fix the table name"}, captured.RepairNotes)
}

func TestGenerateClassifiesProviderFailure(t *testing.T) {
	svc := &MockService{}
	svc.On("GenerateQuery", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	g := New(svc, testCatalog(t))

	_, err := g.Generate(context.Background(), "anything", nil, nil)
	require.Error(t, err)
	assert.True(t, askerr.IsKind(err, askerr.KindGeneration))
	assert.Equal(t, Stage, askerr.GetStage(err))
}

func TestGenerateRejectsEmptySQL(t *testing.T) {
	svc := &MockService{}
	svc.On("GenerateQuery", mock.Anything, mock.Anything).Return(&llm.QueryResponse{SQL: "   "}, nil)

	g := New(svc, testCatalog(t))

	_, err := g.Generate(context.Background(), "anything", nil, nil)
	require.Error(t, err)
	assert.True(t, askerr.IsKind(err, askerr.KindGeneration))
}

func TestGenerateCancelled(t *testing.T) {
	svc := &MockService{}

	ctx, cancel := context.WithCancel(context.Background())

	svc.On("GenerateQuery", mock.Anything, mock.Anything).
		Run(func(_ mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	g := New(svc, testCatalog(t))

	_, err := g.Generate(ctx, "anything", nil, nil)
	require.Error(t, err)
	assert.True(t, askerr.IsKind(err, askerr.KindCancelled))
}
