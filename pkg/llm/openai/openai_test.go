package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openagentc/agentc/pkg/httpclient"
	"github.com/openagentc/agentc/pkg/llm"
	"github.com/openagentc/agentc/pkg/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T, handler http.HandlerFunc) (llm.Driver, string) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithClient(httpclient.New()), srv.URL
}

func TestChatTextOnlyRoundTrip(t *testing.T) {
	d, url := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"pong"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	})

	history := []*message.Message{{Role: message.RoleUser, Content: "ping"}}
	resp, err := d.Chat(context.Background(), llm.Params{Model: "gpt-4o-mini", APIBase: url}, history, nil)
	require.NoError(t, err)

	assert.Equal(t, llm.FinishStop, resp.FinishReason)
	assert.Equal(t, 2, resp.Usage.TotalTokens)
	require.Len(t, resp.Blocks, 1)
	assert.Equal(t, "pong", resp.Blocks[0].Text)
}

func TestChatExtractsToolCalls(t *testing.T) {
	d, url := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"tool_calls":[{"id":"t1","type":"function","function":{"name":"now","arguments":"{}"}}]},"finish_reason":"tool_calls"}],"usage":{}}`))
	})

	resp, err := d.Chat(context.Background(), llm.Params{Model: "gpt-4o-mini", APIBase: url}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, llm.FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Blocks, 1)
	assert.Equal(t, message.BlockToolUse, resp.Blocks[0].Kind)
	assert.Equal(t, "now", resp.Blocks[0].Name)
}

func TestChatReturnsHTTPErrorOnNon2xx(t *testing.T) {
	d, url := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	})

	_, err := d.Chat(context.Background(), llm.Params{Model: "gpt-4o-mini", APIBase: url, APIKey: "bad"}, nil, nil)
	assert.Error(t, err)
}

func TestChatStreamEmitsReasoningThenText(t *testing.T) {
	sseBody := "" +
		"data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"think\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"ing\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n" +
		"data: [DONE]\n\n"

	d, url := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		fmt.Fprint(w, sseBody)
		fl.Flush()
	})

	var kinds []string
	_, err := d.ChatStream(context.Background(), llm.Params{Model: "gpt-4o-mini", APIBase: url}, nil, nil, func(ev llm.StreamEvent) bool {
		kinds = append(kinds, fmt.Sprintf("%s:%s", ev.Kind, ev.BlockKind))
		return true
	})
	require.NoError(t, err)

	require.Contains(t, kinds, "content_block_start:reasoning")
	require.Contains(t, kinds, "content_block_start:text")
	assert.Less(t, indexOf(kinds, "content_block_start:reasoning"), indexOf(kinds, "content_block_start:text"))
}

func indexOf(s []string, target string) int {
	for i, v := range s {
		if v == target {
			return i
		}
	}
	return -1
}

func TestChatStreamAbortsOnFalseReturn(t *testing.T) {
	sseBody := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n" +
		"data: [DONE]\n\n"

	d, url := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		fmt.Fprint(w, sseBody)
		fl.Flush()
	})

	var deltas int
	_, err := d.ChatStream(context.Background(), llm.Params{Model: "gpt-4o-mini", APIBase: url}, nil, nil, func(ev llm.StreamEvent) bool {
		if ev.Kind == llm.EventDelta {
			deltas++
			return false
		}
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deltas)
}
