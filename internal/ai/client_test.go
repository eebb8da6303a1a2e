package ai

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/cloudwego/eino/schema"
	. "github.com/smartystreets/goconvey/convey"

	"yuzu/internal/config"
	"yuzu/internal/model"
)

func TestClient_Credential(t *testing.T) {
	Convey("凭证管理", t, func() {
		Convey("新客户端默认未配置", func() {
			c := NewClient(&config.AIConfig{Provider: "openai"})
			So(c.Configured(), ShouldBeFalse)
		})

		Convey("服务级兜底密钥在创建时生效", func() {
			c := NewClient(&config.AIConfig{Provider: "openai", APIKey: "sk-fallback"})
			So(c.Configured(), ShouldBeTrue)
		})

		Convey("SetCredential 去除首尾空白", func() {
			c := NewClient(&config.AIConfig{Provider: "openai"})

			c.SetCredential("  sk-user  ")
			So(c.Configured(), ShouldBeTrue)
			So(c.credential(), ShouldEqual, "sk-user")
		})

		Convey("空白密钥使客户端回到未配置状态", func() {
			c := NewClient(&config.AIConfig{Provider: "openai"})
			c.SetCredential("sk-user")
			c.SetCredential("   ")
			So(c.Configured(), ShouldBeFalse)
		})

		Convey("未配置凭证时拒绝发起对话", func() {
			c := NewClient(&config.AIConfig{Provider: "openai"})

			_, err := c.StreamCompletion(context.Background(), []model.PromptMessage{
				{Role: model.RoleUser, Content: "hello"},
			}, Params{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 2000})
			So(err, ShouldEqual, ErrNotConfigured)
		})

		Convey("空白密钥校验直接返回false", func() {
			c := NewClient(&config.AIConfig{Provider: "openai"})
			So(c.ValidateCredential(context.Background(), "  "), ShouldBeFalse)
		})
	})
}

// chunkRecv 按序回放给定chunk，耗尽后返回finalErr（默认io.EOF）
func chunkRecv(chunks []*schema.Message, finalErr error) func() (*schema.Message, error) {
	if finalErr == nil {
		finalErr = io.EOF
	}
	i := 0
	return func() (*schema.Message, error) {
		if i < len(chunks) {
			c := chunks[i]
			i++
			return c, nil
		}
		return nil, finalErr
	}
}

func collectEvents(recv func() (*schema.Message, error)) []*StreamEvent {
	ch := make(chan *StreamEvent, 16)
	pumpStream(context.Background(), recv, ch)
	close(ch)
	var out []*StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestPumpStream(t *testing.T) {
	Convey("上游流消费", t, func() {
		Convey("用量随片段带出，片段之后没有更新时不补发", func() {
			events := collectEvents(chunkRecv([]*schema.Message{
				{Content: "Hel", ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100}}},
				{Content: "lo"},
			}, nil))

			So(len(events), ShouldEqual, 2)
			So(events[0].Content, ShouldEqual, "Hel")
			So(events[0].Usage.TotalTokens, ShouldEqual, 100)
			So(events[1].Usage, ShouldBeNil)
		})

		Convey("用量只在流末尾到达时以空文本尾事件补发", func() {
			events := collectEvents(chunkRecv([]*schema.Message{
				{Content: "Hello"},
				{ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100}}},
			}, nil))

			So(len(events), ShouldEqual, 2)
			So(events[0].Usage, ShouldBeNil)
			So(events[1].Content, ShouldBeEmpty)
			So(events[1].Usage.TotalTokens, ShouldEqual, 100)
		})

		Convey("流末尾更新的更大累计快照也会补发", func() {
			events := collectEvents(chunkRecv([]*schema.Message{
				{Content: "partial", ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100}}},
				{ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 80, CompletionTokens: 170, TotalTokens: 250}}},
			}, nil))

			So(len(events), ShouldEqual, 2)
			So(events[0].Usage.TotalTokens, ShouldEqual, 100)
			So(events[1].Content, ShouldBeEmpty)
			So(events[1].Usage.TotalTokens, ShouldEqual, 250)
		})

		Convey("没有任何用量快照时不补发尾事件", func() {
			events := collectEvents(chunkRecv([]*schema.Message{
				{Content: "Hello"},
			}, nil))

			So(len(events), ShouldEqual, 1)
			So(events[0].Usage, ShouldBeNil)
		})

		Convey("上游错误包装后作为终止事件", func() {
			events := collectEvents(chunkRecv([]*schema.Message{
				{Content: "Hel"},
			}, errors.New("rate limited")))

			So(len(events), ShouldEqual, 2)
			So(events[1].Err, ShouldNotBeNil)
			So(events[1].Err.Error(), ShouldContainSubstring, "completion provider")
			So(events[1].Err.Error(), ShouldContainSubstring, "rate limited")
		})
	})
}

func TestToSchemaMessages(t *testing.T) {
	Convey("角色标记消息转换为schema消息", t, func() {
		messages := []model.PromptMessage{
			{Role: model.RoleSystem, Content: "you are helpful"},
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		}

		out := toSchemaMessages(messages)
		So(len(out), ShouldEqual, 3)
		So(out[0].Role, ShouldEqual, schema.System)
		So(out[0].Content, ShouldEqual, "you are helpful")
		So(out[1].Role, ShouldEqual, schema.User)
		So(out[2].Role, ShouldEqual, schema.Assistant)

		Convey("未知角色按user处理", func() {
			weird := toSchemaMessages([]model.PromptMessage{{Role: "tool", Content: "x"}})
			So(weird[0].Role, ShouldEqual, schema.User)
		})
	})
}
