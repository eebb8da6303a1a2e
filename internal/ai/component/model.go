package component

import (
	"context"
	"fmt"

	arkext "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"yuzu/internal/config"
)

// Params 单次调用的生成参数，来自用户设置
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewChatModel 创建 ChatModel
// 支持多种 Provider: openai, azure, ark
// 凭证与生成参数按调用方传入，每次对话流都构造新的模型实例
func NewChatModel(ctx context.Context, cfg *config.AIConfig, apiKey string, params *Params) (model.BaseChatModel, error) {
	switch cfg.Provider {
	case "openai", "":
		return newOpenAIChatModel(ctx, cfg, apiKey, params, false)
	case "azure":
		return newOpenAIChatModel(ctx, cfg, apiKey, params, true)
	case "ark":
		return newArkChatModel(ctx, cfg, apiKey, params)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// newOpenAIChatModel 创建 OpenAI / Azure OpenAI ChatModel
func newOpenAIChatModel(ctx context.Context, cfg *config.AIConfig, apiKey string, params *Params, byAzure bool) (model.BaseChatModel, error) {
	modelCfg := &openai.ChatModelConfig{
		Model:   params.Model,
		APIKey:  apiKey,
		ByAzure: byAzure,
	}

	// Base URL (用于代理或兼容 API)
	if cfg.BaseURL != "" {
		modelCfg.BaseURL = cfg.BaseURL
	}

	// 模型参数
	// Temperature 允许为 0（确定性输出），所以总是显式设置
	temp := float32(params.Temperature)
	modelCfg.Temperature = &temp
	if params.MaxTokens > 0 {
		modelCfg.MaxTokens = &params.MaxTokens
	}

	return openai.NewChatModel(ctx, modelCfg)
}

// newArkChatModel 创建 Ark ChatModel（使用 eino-ext 模块）
func newArkChatModel(ctx context.Context, cfg *config.AIConfig, apiKey string, params *Params) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}

	modelCfg := &arkext.ChatModelConfig{
		Model:   params.Model,
		APIKey:  apiKey,
		BaseURL: baseURL,
	}

	temp := float32(params.Temperature)
	modelCfg.Temperature = &temp
	if params.MaxTokens > 0 {
		modelCfg.MaxTokens = &params.MaxTokens
	}

	return arkext.NewChatModel(ctx, modelCfg)
}
