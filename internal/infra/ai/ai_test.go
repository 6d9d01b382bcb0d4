package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedProviderReplaysInOrder(t *testing.T) {
	boom := errors.New("boom")
	p := NewScriptedProvider(Text("first"), Fail(boom))
	p.Push(Calls(ToolCall{ID: "c1", Name: "query_entity", Arguments: `{"id":"x"}`}))

	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	_, err = p.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, boom)

	resp, err = p.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "query_entity", resp.ToolCalls[0].Name)

	_, err = p.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrScriptExhausted)

	assert.Len(t, p.Requests(), 4)
	assert.Equal(t, 0, p.Remaining())
	assert.Equal(t, "hi", p.Requests()[0].Messages[0].Content)
}

func TestScriptedProviderFallback(t *testing.T) {
	p := NewScriptedProvider()
	p.Fallback = func(req CompletionRequest) (*CompletionResponse, error) {
		return Text("fallback").Response, nil
	}
	resp, err := p.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Content)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Complete(ctx, CompletionRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBudgetGate(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	bg := NewBudgetGate(1.0, 2.0)
	bg.now = func() time.Time { return now }
	bg.LastDayReset, bg.LastMonthReset = now, now

	assert.True(t, bg.CanSpend(0.9))
	bg.RecordSpend(0.9)
	assert.False(t, bg.CanSpend(0.2))
	assert.InDelta(t, 1.1, bg.Remaining(), 1e-9)

	now = now.Add(24 * time.Hour)
	assert.True(t, bg.CanSpend(0.9), "daily spend resets on a new day")
	bg.RecordSpend(0.9)

	now = now.Add(24 * time.Hour)
	assert.False(t, bg.CanSpend(0.3), "monthly limit still applies")

	now = now.AddDate(0, 1, 0)
	assert.True(t, bg.CanSpend(0.9))

	var nilGate *BudgetGate
	assert.True(t, nilGate.CanSpend(100))
	assert.True(t, NewBudgetGate(0, 0).CanSpend(100))
}

func TestOpenAIProviderToolRoundTrip(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "cmpl-1",
			"model": "test-model",
			"choices": [{
				"message": {
					"content": null,
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "interaction_result", "arguments": "{\"message\":\"ok\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"}, NewBudgetGate(0, 0))
	require.True(t, p.IsAvailable())

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Name: "query_entity", Arguments: `{"id":"lamp"}`}}},
			ToolMessage(ToolCall{ID: "call_0", Name: "query_entity"}, `{"id":"lamp"}`),
		},
		Tools:          []ToolDefinition{{Name: "interaction_result", Parameters: json.RawMessage(`{"type":"object"}`)}},
		ResponseFormat: "json",
		Temperature:    0.3,
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "auto", got.ToolChoice)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "function", got.Tools[0].Type)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "query_entity", got.Messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "call_0", got.Messages[2].ToolCallID)

	assert.Equal(t, "", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, `{"message":"ok"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 15, resp.TotalTokens)
	assert.Equal(t, 1, p.GetUsageStats().TotalRequests)
}

func TestOpenAIProviderErrors(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "", BaseURL: "http://127.0.0.1:1"}, nil)
	p.apiKey = ""
	_, err := p.Complete(context.Background(), CompletionRequest{})
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	p = NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err = p.Complete(context.Background(), CompletionRequest{})
	assert.ErrorContains(t, err, "status 429")

	blocked := NewBudgetGate(0.0000001, 0)
	p = NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, blocked)
	_, err = p.Complete(context.Background(), CompletionRequest{MaxTokens: 1000})
	assert.ErrorContains(t, err, "budget limit exceeded")
}

func TestBuildAnthropicRequestGroupsToolResults(t *testing.T) {
	req := CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "rules"},
			{Role: RoleUser, Content: "open the drawer"},
			{Role: RoleAssistant, Content: "checking", ToolCalls: []ToolCall{
				{ID: "t1", Name: "query_entity", Arguments: `{"id":"drawer"}`},
				{ID: "t2", Name: "query_entity", Arguments: `not json`},
			}},
			{Role: RoleTool, ToolCallID: "t1", Content: `{"id":"drawer"}`},
			{Role: RoleTool, ToolCallID: "t2", Content: `{"error":"bad"}`},
			{Role: RoleAssistant},
		},
		Tools: []ToolDefinition{{Name: "query_entity", Parameters: json.RawMessage(`{"type":"object"}`)}},
	}
	out := buildAnthropicRequest(req, "claude-test")

	assert.Equal(t, "rules", out.System)
	assert.Equal(t, 1024, out.MaxTokens)
	require.Len(t, out.Messages, 4)
	assert.Equal(t, RoleUser, out.Messages[0].Role)

	assistant := out.Messages[1]
	require.Len(t, assistant.Content, 3)
	assert.Equal(t, "text", assistant.Content[0].Type)
	assert.Equal(t, "tool_use", assistant.Content[1].Type)
	assert.JSONEq(t, `{}`, string(assistant.Content[2].Input))

	results := out.Messages[2]
	assert.Equal(t, RoleUser, results.Role)
	require.Len(t, results.Content, 2)
	assert.Equal(t, "t1", results.Content[0].ToolUseID)
	assert.Equal(t, "t2", results.Content[1].ToolUseID)

	assert.Equal(t, "...", out.Messages[3].Content[0].Text)
	require.Len(t, out.Tools, 1)
	assert.Equal(t, "query_entity", out.Tools[0].Name)
}
