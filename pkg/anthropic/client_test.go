package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient is a testify mock implementing Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

var _ Client = (*MockClient)(nil)

func messageJSON(text string) map[string]any {
	return map[string]any{
		"id":   "msg_test_001",
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":                120,
			"output_tokens":               40,
			"cache_creation_input_tokens": 0,
			"cache_read_input_tokens":     80,
		},
	}
}

func TestClient_CreateMessage(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageJSON(`{"narrative":"ok"}`)) //nolint:errcheck
	}))
	defer ts.Close()

	client := NewClient("test-key", WithBaseURL(ts.URL))
	temp := 0.0
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   1024,
		System:      BuildCachedSystemBlocks("Summarize.", "Company context"),
		Messages:    []Message{{Role: "user", Content: "Hello"}},
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `{"narrative":"ok"}`, resp.Text())
	assert.Equal(t, int64(120), resp.Usage.InputTokens)
	assert.Equal(t, int64(80), resp.Usage.CacheReadInputTokens)

	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 2)
	second := system[1].(map[string]any)
	assert.Equal(t, "Company context", second["text"])
	assert.NotNil(t, second["cache_control"])
}

func TestClient_CreateMessage_NoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	client := NewClient("test-key", WithBaseURL(ts.URL), WithTimeout(5*time.Second))
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 10,
		Messages:  []Message{{Role: "user", Content: "Hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
	assert.Equal(t, int32(1), calls.Load())
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "a"},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "b"},
	}}
	assert.Equal(t, "ab", resp.Text())

	var nilResp *MessageResponse
	assert.Empty(t, nilResp.Text())
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 6.0, u.EstimateCost("claude-haiku-4-5-20251001"), 0.0001)
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.0001)
	assert.Zero(t, u.EstimateCost("unknown"))

	cached := TokenUsage{CacheReadInputTokens: 1_000_000}
	assert.InDelta(t, 0.1, cached.EstimateCost("claude-haiku-4-5-20251001"), 0.0001)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("instr", "")
	require.Len(t, blocks, 1)
	assert.Nil(t, blocks[0].CacheControl)

	blocks = BuildCachedSystemBlocks("instr", "ctx")
	require.Len(t, blocks, 2)
	assert.Nil(t, blocks[0].CacheControl)
	require.NotNil(t, blocks[1].CacheControl)
	assert.Equal(t, "1h", blocks[1].CacheControl.TTL)
}

func TestThrottledClient(t *testing.T) {
	inner := &MockClient{}
	req := MessageRequest{Model: "claude-haiku-4-5-20251001", MaxTokens: 10}
	inner.On("CreateMessage", mock.Anything, req).
		Return(&MessageResponse{Content: []ContentBlock{{Type: "text", Text: "ok"}}}, nil).Twice()

	c := NewThrottledClient(inner, 0, "test")
	for range 2 {
		resp, err := c.CreateMessage(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text())
	}
	inner.AssertExpectations(t)
}

func TestThrottledClient_PropagatesError(t *testing.T) {
	inner := &MockClient{}
	inner.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	c := NewThrottledClient(inner, 5, "test")
	_, err := c.CreateMessage(context.Background(), MessageRequest{})
	assert.EqualError(t, err, "down")
}

func TestThrottledClient_CanceledWait(t *testing.T) {
	inner := &MockClient{}
	c := NewThrottledClient(inner, 0.001, "test")

	// Drain the single burst token.
	inner.On("CreateMessage", mock.Anything, mock.Anything).Return(&MessageResponse{}, nil).Once()
	_, err := c.CreateMessage(context.Background(), MessageRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.CreateMessage(ctx, MessageRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	inner.AssertExpectations(t)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", "Here you go:\n{\"a\":{\"b\":2}}\nThanks!", `{"a":{"b":2}}`},
		{"array first", `Answers: [{"id":"1"}]`, `[{"id":"1"}]`},
		{"no json", "sorry", "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}
