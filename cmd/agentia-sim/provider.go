package main

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/MRamiBalles/agentia/internal/domain/agent"
	"github.com/MRamiBalles/agentia/internal/engine"
	"github.com/MRamiBalles/agentia/internal/infra/ai"
	"github.com/MRamiBalles/agentia/internal/platform/config"
	"github.com/MRamiBalles/agentia/internal/platform/logger"
)

// monthlyBudgetFactor scales the daily budget into the monthly safety net.
const monthlyBudgetFactor = 5

func newProvider(cfg *config.Config, appLogger *logger.Logger) (ai.LLMProvider, error) {
	gate := ai.NewBudgetGate(cfg.LLM.DailyBudgetUSD, cfg.LLM.DailyBudgetUSD*monthlyBudgetFactor)

	var provider ai.LLMProvider
	switch cfg.LLM.Provider {
	case "openai":
		provider = ai.NewOpenAIProvider(ai.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		}, gate)
	case "anthropic":
		provider = ai.NewAnthropicProvider(cfg.LLM.Model, gate)
	default:
		p, err := offlineProvider()
		if err != nil {
			return nil, err
		}
		provider = p
	}

	appLogger.Info("reasoning provider ready",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.LLM.Model),
		zap.String("budget", gate.GetStatus()))
	if !provider.IsAvailable() {
		appLogger.Warn("reasoning provider is not configured; every call will fail",
			zap.String("provider", provider.Name()))
	}
	return provider, nil
}

// offlineProvider answers without a model: agents wait and interactions
// finalize immediately with no effects.
func offlineProvider() (*ai.ScriptedProvider, error) {
	wait, err := json.Marshal(agent.Decision{
		Reasoning: "No reasoning service is configured.",
		Action:    agent.Wait{Reason: "offline"},
	})
	if err != nil {
		return nil, err
	}
	p := ai.NewScriptedProvider()
	p.Fallback = func(req ai.CompletionRequest) (*ai.CompletionResponse, error) {
		for _, t := range req.Tools {
			if t.Name == engine.ToolInteractionResult {
				return ai.Calls(ai.ToolCall{
					ID:        "offline",
					Name:      engine.ToolInteractionResult,
					Arguments: `{"message":"Nothing remarkable happens.","duration":0}`,
				}).Response, nil
			}
		}
		return ai.Text(string(wait)).Response, nil
	}
	return p, nil
}
