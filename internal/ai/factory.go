package ai

import (
	"context"
	"fmt"
)

// Provider endpoints for the OpenAI-compatible platforms.
const (
	openAIBaseURL  = "https://api.openai.com/v1"
	deepseekBase   = "https://api.deepseek.com/v1"
	bailianBase    = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	volcengineBase = "https://ark.cn-beijing.volces.com/api/v3"
)

// Default models per platform when none is configured.
var defaultModels = map[string]string{
	"openai":     "gpt-4o-mini",
	"deepseek":   "deepseek-chat",
	"bailian":    "qwen-plus",
	"volcengine": "doubao-1-5-pro-32k-250115",
}

// NewClient builds a judgment client for the configured platform.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModels[cfg.Platform]
	}
	switch cfg.Platform {
	case "openai":
		return NewChatClient(cfg.APIKey, openAIBaseURL, model), nil
	case "deepseek":
		return NewChatClient(cfg.APIKey, deepseekBase, model), nil
	case "bailian":
		return NewChatClient(cfg.APIKey, bailianBase, model), nil
	case "volcengine":
		return NewArkClient(cfg.APIKey, volcengineBase, model), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, model)
	default:
		return nil, fmt.Errorf("unknown AI platform %q", cfg.Platform)
	}
}
