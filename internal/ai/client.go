package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	goopenai "github.com/sashabaranov/go-openai"

	"yuzu/internal/ai/component"
	"yuzu/internal/config"
	"yuzu/internal/model"
)

// ErrNotConfigured 未配置凭证时发起对话
var ErrNotConfigured = errors.New("AI credential is not configured, add your API key in settings")

// StreamEvent 流式对话事件
// Content 为增量文本片段（可能为空）；Usage 为上游提供的累计用量快照；
// Err 非空表示流中断，此后不再有事件
type StreamEvent struct {
	Content string
	Usage   *model.TokenUsage
	Err     error
}

// Params 单次对话的生成参数
type Params = component.Params

// Client AI 能力层客户端
// 职责: 封装模型凭证与流式对话能力，提供统一接口
type Client struct {
	cfg *config.AIConfig

	mu     sync.RWMutex
	apiKey string
}

// NewClient 创建 AI 客户端
// 凭证可以稍后通过 SetCredential 配置
func NewClient(cfg *config.AIConfig) *Client {
	c := &Client{cfg: cfg}
	if cfg.APIKey != "" {
		c.SetCredential(cfg.APIKey)
	}
	return c
}

// SetCredential 配置或清除当前凭证
// 空白 key 使客户端进入未配置状态
func (c *Client) SetCredential(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = strings.TrimSpace(key)
}

// Configured 是否已配置凭证
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

func (c *Client) credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// StreamCompletion 流式对话
// 每次调用都打开一个新的上游流，返回单遍消费的事件通道。
// 流正常关闭时通道关闭；若用量快照只在流末尾到达，会以空文本的
// 尾事件形式补发
func (c *Client) StreamCompletion(ctx context.Context, messages []model.PromptMessage, params Params) (<-chan *StreamEvent, error) {
	key := c.credential()
	if key == "" {
		return nil, ErrNotConfigured
	}

	chatModel, err := component.NewChatModel(ctx, c.cfg, key, &params)
	if err != nil {
		return nil, fmt.Errorf("completion provider: %w", err)
	}

	reader, err := chatModel.Stream(ctx, toSchemaMessages(messages))
	if err != nil {
		return nil, fmt.Errorf("completion provider: %w", err)
	}

	ch := make(chan *StreamEvent, 16)

	go func() {
		defer close(ch)
		defer reader.Close()
		pumpStream(ctx, reader.Recv, ch)
	}()

	return ch, nil
}

// pumpStream 消费上游流并转换为 StreamEvent
// 上游的用量快照是累计值，可能在流中多次出现（每次覆盖前值）；
// 最新快照若尚未随片段带出（只在流末尾到达，或末尾又更新了更大的值），
// 在流结束时以空文本尾事件补发
func pumpStream(ctx context.Context, recv func() (*schema.Message, error), ch chan<- *StreamEvent) {
	var usage, surfaced *model.TokenUsage

	for {
		chunk, err := recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			select {
			case ch <- &StreamEvent{Err: fmt.Errorf("completion provider: %w", err)}:
			case <-ctx.Done():
			}
			return
		}

		if chunk.ResponseMeta != nil && chunk.ResponseMeta.Usage != nil {
			usage = &model.TokenUsage{
				PromptTokens:     chunk.ResponseMeta.Usage.PromptTokens,
				CompletionTokens: chunk.ResponseMeta.Usage.CompletionTokens,
				TotalTokens:      chunk.ResponseMeta.Usage.TotalTokens,
			}
		}

		if chunk.Content == "" {
			continue
		}

		event := &StreamEvent{Content: chunk.Content}
		if usage != surfaced {
			event.Usage = usage
			surfaced = usage
		}

		select {
		case ch <- event:
		case <-ctx.Done():
			return
		}
	}

	if usage != surfaced {
		select {
		case ch <- &StreamEvent{Usage: usage}:
		case <-ctx.Done():
		}
	}
}

// ValidateCredential 校验凭证有效性
// 用给定 key 对 provider 做一次轻量的模型列表调用，
// 任何失败都归结为 false，不影响应用状态
func (c *Client) ValidateCredential(ctx context.Context, key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}

	clientCfg := goopenai.DefaultConfig(key)
	if c.cfg.BaseURL != "" {
		clientCfg.BaseURL = c.cfg.BaseURL
	}

	if _, err := goopenai.NewClientWithConfig(clientCfg).ListModels(ctx); err != nil {
		log.Debug().Err(err).Msg("credential validation failed")
		return false
	}
	return true
}

// toSchemaMessages 将角色标记消息转换为 eino schema 消息
func toSchemaMessages(messages []model.PromptMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		var role schema.RoleType
		switch m.Role {
		case model.RoleSystem:
			role = schema.System
		case model.RoleAssistant:
			role = schema.Assistant
		default:
			role = schema.User
		}
		out = append(out, &schema.Message{Role: role, Content: m.Content})
	}
	return out
}
