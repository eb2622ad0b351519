package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	cause := stderrors.New("connection refused")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "kind and message",
			err:  New(KindGeneration, "model call failed"),
			want: "generation: model call failed",
		},
		{
			name: "with stage",
			err:  New(KindSafety, "forbidden verb").AtStage("safety_checking"),
			want: "safety_violation [safety_checking]: forbidden verb",
		},
		{
			name: "with cause",
			err:  Wrap(cause, KindGeneration, "model call failed"),
			want: "generation: model call failed (caused by: connection refused)",
		},
		{
			name: "with stage and cause",
			err:  Wrap(cause, KindExecution, "query failed").AtStage("executing"),
			want: "execution [executing]: query failed (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, KindExecution, "query failed")

	assert.True(t, stderrors.Is(err, cause))
}

func TestIsKindThroughWrapping(t *testing.T) {
	inner := New(KindSafety, "rejected")
	outer := fmt.Errorf("pipeline failed: %w", inner)

	assert.True(t, IsKind(outer, KindSafety))
	assert.False(t, IsKind(outer, KindExecution))
	assert.False(t, IsKind(stderrors.New("plain"), KindSafety))
}

func TestGetKind(t *testing.T) {
	assert.Equal(t, KindCatalog, GetKind(New(KindCatalog, "missing table")))
	assert.Equal(t, KindInternal, GetKind(stderrors.New("plain")))
	assert.Equal(t, KindInternal, GetKind(nil))
}

func TestGetStage(t *testing.T) {
	err := New(KindExecution, "failed").AtStage("executing")

	assert.Equal(t, "executing", GetStage(err))
	assert.Equal(t, "", GetStage(stderrors.New("plain")))
}

func TestFatalKinds(t *testing.T) {
	fatal := []Kind{KindSafety, KindRetryBudget, KindCancelled}
	for _, k := range fatal {
		assert.True(t, k.Fatal(), "expected fatal: %s", k)
	}

	retryable := []Kind{KindGeneration, KindInvalidQuery, KindExecution, KindCatalog, KindInternal}
	for _, k := range retryable {
		assert.False(t, k.Fatal(), "expected non-fatal: %s", k)
	}
}

func TestWithSuggestion(t *testing.T) {
	err := New(KindConfig, "no API key").
		WithSuggestion("set ASKDB_LLM_API_KEY").
		WithSuggestion("or switch to the ollama provider")

	require.Len(t, err.Suggestions, 2)
	assert.Equal(t, "set ASKDB_LLM_API_KEY", err.Suggestions[0])
}
