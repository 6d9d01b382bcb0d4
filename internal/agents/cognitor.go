package agents

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/agents/perception"
	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/engine"
	"github.com/MRamiBalles/agentia/internal/infra/ai"
)

// ToolUpdatePlan is the only tool an agent may call.
const ToolUpdatePlan = "update_plan"

// Fallback reasons recorded on a Wait decision.
const (
	ReasonProviderError = "LLM Error"
	ReasonEmptyResponse = "Empty Response"
)

//go:embed schemas/update_plan.json
var updatePlanSchema []byte

var compilePlanSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	const url = "mem://agents/update_plan.json"
	if err := c.AddResource(url, bytes.NewReader(updatePlanSchema)); err != nil {
		return nil, err
	}
	return c.Compile(url)
})

var planTool = ai.ToolDefinition{
	Name:        ToolUpdatePlan,
	Description: "Create or update your daily plan. Use this to set your schedule, mark tasks as complete, or replan when circumstances change.",
	Parameters:  updatePlanSchema,
}

// Decide asks the reasoning service for this tick's action.
//
// The agent may call update_plan up to MaxPlanRounds times; each call
// replaces the plan and the prompt is rebuilt before asking again. After
// that the tool is withdrawn. Any provider failure, empty answer or
// unparseable answer yields a Wait decision and never an error.
func (a *SimAgent) Decide(ctx context.Context, view engine.AgentContext) agent.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	system := a.systemPrompt()
	notes := perception.Notes(view.Events, a.memory.Consume())

	for round := 0; round <= a.opts.MaxPlanRounds; round++ {
		user := a.perceiver.Render(perception.View{
			Context: view,
			Notes:   notes,
			Status:  a.status,
			Plan:    a.plan,
		})

		messages := make([]ai.Message, 0, len(a.memory.history)+2)
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: system})
		messages = append(messages, a.memory.history...)
		messages = append(messages, ai.Message{Role: ai.RoleUser, Content: user})

		req := ai.CompletionRequest{
			Messages:       messages,
			Model:          a.opts.Model,
			Temperature:    a.opts.Temperature,
			TopP:           a.opts.TopP,
			MaxTokens:      a.opts.MaxTokens,
			ResponseFormat: "json",
		}
		canPlan := round < a.opts.MaxPlanRounds
		if canPlan {
			req.Tools = []ai.ToolDefinition{planTool}
		}

		resp, err := a.provider.Complete(ctx, req)
		if err != nil {
			a.logger.Error("decision request failed", zap.Int("round", round), zap.Error(err))
			a.recordError()
			return agent.Fallback(ReasonProviderError)
		}
		if resp == nil {
			a.logger.Error("decision request returned nothing", zap.Int("round", round))
			a.recordError()
			return agent.Fallback(ReasonEmptyResponse)
		}
		if a.stats != nil {
			a.stats.RecordAPICall(resp.TotalTokens, resp.Latency)
		}

		if canPlan && len(resp.ToolCalls) > 0 {
			for _, call := range resp.ToolCalls {
				if note := a.handleTool(call); note != "" {
					notes = append(notes, perception.Notes(nil, []string{note})...)
				}
			}
			continue
		}

		content := agent.StripCodeFence(resp.Content)
		if content == "" {
			a.logger.Error("empty decision", zap.Int("round", round))
			a.recordError()
			return agent.Fallback(ReasonEmptyResponse)
		}
		d, err := agent.ParseDecision(content)
		if err != nil {
			a.logger.Error("decision parse error", zap.Error(err), zap.String("content", content))
			a.recordError()
			return agent.Fallback(fmt.Sprintf("Parse Error: %v", err))
		}

		a.logger.Info("decided",
			zap.String("decision", d.String()),
			zap.String("reasoning", d.Reasoning),
			zap.Int("plan_rounds", round))
		a.memory.record(
			ai.Message{Role: ai.RoleUser, Content: user},
			ai.Message{Role: ai.RoleAssistant, Content: content},
		)
		return d
	}

	// Unreachable: the last round offers no tools, so it always returns above.
	return agent.Fallback(ReasonEmptyResponse)
}

// handleTool applies an update_plan call and returns the planning note for
// the re-ask. Other tools are ignored. Caller holds a.mu.
func (a *SimAgent) handleTool(call ai.ToolCall) string {
	if call.Name != ToolUpdatePlan {
		a.logger.Warn("agent called an unknown tool", zap.String("tool", call.Name))
		return ""
	}
	plan, err := decodePlan(call.Arguments)
	if err != nil {
		a.logger.Error("plan update rejected", zap.Error(err))
		return ""
	}
	a.plan = plan
	msg := fmt.Sprintf("Updated daily plan: %d tasks.", len(plan.Tasks))
	a.logger.Info(msg)
	return "[Planning] " + msg
}

func decodePlan(args string) (agent.Plan, error) {
	var doc any
	if err := json.Unmarshal([]byte(args), &doc); err != nil {
		return agent.Plan{}, err
	}
	schema, err := compilePlanSchema()
	if err != nil {
		return agent.Plan{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return agent.Plan{}, err
	}
	var p agent.Plan
	if err := json.Unmarshal([]byte(args), &p); err != nil {
		return agent.Plan{}, err
	}
	p.Normalize()
	return p, nil
}

func (a *SimAgent) recordError() {
	if a.stats != nil {
		a.stats.RecordError()
	}
}
