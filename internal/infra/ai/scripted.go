package ai

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrScriptExhausted is returned once a ScriptedProvider has no replies left
// and no Fallback.
var ErrScriptExhausted = errors.New("scripted provider: no replies left")

// ScriptedReply is one canned answer. Err takes precedence over Response.
type ScriptedReply struct {
	Response *CompletionResponse
	Err      error
}

// ScriptedProvider replays canned replies in order. It stands in for a real
// model in tests and offline runs.
type ScriptedProvider struct {
	mu       sync.Mutex
	replies  []ScriptedReply
	requests []CompletionRequest
	usage    usageTracker

	// Fallback answers once the queue is empty. Nil means ErrScriptExhausted.
	Fallback func(req CompletionRequest) (*CompletionResponse, error)
}

// NewScriptedProvider queues replies.
func NewScriptedProvider(replies ...ScriptedReply) *ScriptedProvider {
	return &ScriptedProvider{replies: replies}
}

// Text builds a reply carrying plain content.
func Text(content string) ScriptedReply {
	return ScriptedReply{Response: &CompletionResponse{Content: content, Model: "scripted", FinishReason: "stop"}}
}

// Calls builds a reply carrying tool calls.
func Calls(calls ...ToolCall) ScriptedReply {
	return ScriptedReply{Response: &CompletionResponse{ToolCalls: calls, Model: "scripted", FinishReason: "tool_calls"}}
}

// Fail builds a reply that errors.
func Fail(err error) ScriptedReply {
	return ScriptedReply{Err: err}
}

// Push appends replies to the queue.
func (p *ScriptedProvider) Push(replies ...ScriptedReply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, replies...)
}

// Requests returns every request seen so far.
func (p *ScriptedProvider) Requests() []CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// Remaining returns the number of queued replies.
func (p *ScriptedProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.replies)
}

// Complete pops the next reply.
func (p *ScriptedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	req.Messages = append([]Message(nil), req.Messages...)
	p.requests = append(p.requests, req)
	var (
		next     ScriptedReply
		ok       bool
		fallback = p.Fallback
	)
	if len(p.replies) > 0 {
		next, p.replies, ok = p.replies[0], p.replies[1:], true
	}
	p.mu.Unlock()

	if !ok {
		if fallback == nil {
			return nil, ErrScriptExhausted
		}
		return fallback(req)
	}
	if next.Err != nil {
		return nil, next.Err
	}
	if next.Response == nil {
		return &CompletionResponse{Model: "scripted"}, nil
	}
	p.usage.record(next.Response.TotalTokens, 0)
	resp := *next.Response
	resp.Latency = time.Millisecond
	return &resp, nil
}

// GetUsageStats returns current usage statistics.
func (p *ScriptedProvider) GetUsageStats() UsageStats {
	return p.usage.snapshot(nil)
}

// ResetUsage resets all usage counters.
func (p *ScriptedProvider) ResetUsage() {
	p.usage.reset()
}

// Name returns the provider name.
func (p *ScriptedProvider) Name() string { return "scripted" }

// IsAvailable is always true.
func (p *ScriptedProvider) IsAvailable() bool { return true }

var _ LLMProvider = (*ScriptedProvider)(nil)
