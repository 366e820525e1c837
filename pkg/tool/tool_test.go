package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name   string
	result string
	err    error
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "a stub tool" }
func (t *stubTool) Parameters() Parameters {
	return Parameters{Fields: []Field{
		{Name: "query", Type: "string", Description: "the query", Required: true},
		{Name: "limit", Type: "integer"},
	}}
}
func (t *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return t.result, nil
}

func TestAddRejectsDuplicateNames(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&stubTool{name: "search", result: "ok"}))
	err := r.Add(&stubTool{name: "search", result: "ok2"})
	assert.Error(t, err)
}

func TestCallInvokesRegisteredTool(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&stubTool{name: "search", result: "found it"}))

	out, isErr := r.Call(context.Background(), "search", `{"query":"x"}`)
	assert.False(t, isErr)
	assert.Equal(t, "found it", out)
}

func TestCallToleratesEmptyArgs(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&stubTool{name: "search", result: "ok"}))

	out, isErr := r.Call(context.Background(), "search", "")
	assert.False(t, isErr)
	assert.Equal(t, "ok", out)
}

func TestCallReturnsErrorJSONForMissingTool(t *testing.T) {
	r := New()
	out, isErr := r.Call(context.Background(), "missing", "{}")
	assert.True(t, isErr)

	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "tool not found", m["error"])
}

func TestCallCapturesHandlerError(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&stubTool{name: "boom", err: errors.New("kaboom")}))

	out, isErr := r.Call(context.Background(), "boom", "{}")
	assert.True(t, isErr)

	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, "kaboom", m["error"])
}

func TestSchemaSynthesizesFromFieldsWithAdditionalPropertiesFalse(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&stubTool{name: "search"}))

	raw, err := r.Schema()
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 1)

	fn := entries[0]["function"].(map[string]any)
	assert.Equal(t, "search", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, false, params["additionalProperties"])
	assert.Contains(t, params["required"], "query")
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(&stubTool{name: "b"}))
	require.NoError(t, r.Add(&stubTool{name: "a"}))

	names := []string{}
	for _, tl := range r.List() {
		names = append(names, tl.Name())
	}
	assert.Equal(t, []string{"b", "a"}, names)
}

type stubMCPClient struct {
	tools []MCPToolInfo
}

func (c *stubMCPClient) ListTools(ctx context.Context) ([]MCPToolInfo, error) {
	return c.tools, nil
}

func (c *stubMCPClient) CallTool(ctx context.Context, name string, argsJSON string) (string, error) {
	return `{"ok":true}`, nil
}

func TestAddMCPRegistersDiscoveredTools(t *testing.T) {
	r := New()
	client := &stubMCPClient{tools: []MCPToolInfo{
		{Name: "remote_tool", Description: "does a thing", InputSchema: `{"type":"object"}`},
	}}
	require.NoError(t, r.AddMCP(context.Background(), client))

	out, isErr := r.Call(context.Background(), "remote_tool", "{}")
	assert.False(t, isErr)
	assert.JSONEq(t, `{"ok":true}`, out)
}
