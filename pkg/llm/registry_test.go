package llm

import (
	"context"
	"testing"

	"github.com/openagentc/agentc/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDriver struct{ name string }

func (s *stubDriver) Chat(ctx context.Context, params Params, history []*message.Message, tools []ToolSchema) (*Response, error) {
	return &Response{Model: s.name}, nil
}
func (s *stubDriver) ChatStream(ctx context.Context, params Params, history []*message.Message, tools []ToolSchema, onEvent OnEvent) (*Response, error) {
	return &Response{Model: s.name}, nil
}
func (s *stubDriver) Close() error { return nil }

func TestSelectPrefersCompatibleOverProvider(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("openai", func() Driver { return &stubDriver{name: "openai"} })
	r.Register("vllm", func() Driver { return &stubDriver{name: "vllm"} })

	d, err := r.Select(Params{Provider: "openai", Compatible: "vllm"})
	require.NoError(t, err)
	resp, _ := d.Chat(context.Background(), Params{}, nil, nil)
	assert.Equal(t, "vllm", resp.Model)
}

func TestSelectFallsBackToProvider(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("anthropic", func() Driver { return &stubDriver{name: "anthropic"} })

	d, err := r.Select(Params{Provider: "anthropic"})
	require.NoError(t, err)
	resp, _ := d.Chat(context.Background(), Params{}, nil, nil)
	assert.Equal(t, "anthropic", resp.Model)
}

func TestSelectFailsWithNeitherSet(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Select(Params{})
	assert.Error(t, err)
}

func TestRegisterTwiceKeepsFirst(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("openai", func() Driver { return &stubDriver{name: "first"} })
	r.Register("openai", func() Driver { return &stubDriver{name: "second"} })

	d, err := r.Select(Params{Provider: "openai"})
	require.NoError(t, err)
	resp, _ := d.Chat(context.Background(), Params{}, nil, nil)
	assert.Equal(t, "first", resp.Model)
}

func TestBuiltinsRegisteredLazilyOnce(t *testing.T) {
	calls := 0
	r := NewRegistry(func(reg *Registry) {
		calls++
		reg.Register("openai", func() Driver { return &stubDriver{name: "openai"} })
	})

	_, err := r.Select(Params{Provider: "openai"})
	require.NoError(t, err)
	_, err = r.Select(Params{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
