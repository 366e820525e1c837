package functiontool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=max results"`
}

func TestNewWrapsFunctionAndExecutes(t *testing.T) {
	tl, err := New("search", "searches documents", func(ctx context.Context, args searchArgs) (string, error) {
		return args.Query, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "search", tl.Name())

	out, err := tl.Execute(context.Background(), map[string]any{"query": "hello", "limit": 5})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestNewSynthesizesRequiredFieldFromTag(t *testing.T) {
	tl, err := New("search", "searches documents", func(ctx context.Context, args searchArgs) (string, error) {
		return "", nil
	})
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(tl.Parameters().Schema), &schema))
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Contains(t, schema["required"], "query")
}

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New("", "desc", func(ctx context.Context, args searchArgs) (string, error) { return "", nil })
	assert.Error(t, err)
}
