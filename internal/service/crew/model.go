package crew

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"deepresearch/internal/config"
)

// newChatModel builds the eino chat model for the requested provider.
// The temperature is pinned to zero for reproducible research output.
func newChatModel(ctx context.Context, cfg *config.Config, provider, modelName string) (model.ToolCallingChatModel, error) {
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	token, err := cfg.ProviderKey(provider)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = provCfg.Model
	}

	var chatModel model.ToolCallingChatModel

	switch provider {
	case "openai":
		temperature := float32(0)
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     provCfg.BaseURL,
			Model:       modelName,
			APIKey:      token,
			Temperature: &temperature,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: token,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		temperature := float32(0)
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       modelName,
			Temperature: &temperature,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		temperature := float32(0)
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:      token,
			Model:       modelName,
			BaseURL:     baseURLPtr,
			MaxTokens:   8192,
			Temperature: &temperature,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return chatModel, nil
}
