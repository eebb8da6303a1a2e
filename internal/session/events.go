package session

import (
	"github.com/rs/zerolog/log"

	"yuzu/internal/model"
)

// EventType 会话事件类型
type EventType string

const (
	EventChatCreated     EventType = "chat_created"     // 新对话创建（惰性创建时也会发出）
	EventMessageAppended EventType = "message_appended" // 消息追加到内存列表
	EventMessageDelta    EventType = "message_delta"    // 流式片段，Content 为增量文本
	EventMessageRemoved  EventType = "message_removed"  // 回滚：占位消息被移除
	EventUsage           EventType = "usage"            // 用量快照到达
	EventTitleUpdated    EventType = "title_updated"    // 对话标题更新
	EventDone            EventType = "done"             // 一轮发送结束
	EventError           EventType = "error"            // 发送失败
)

// Event 会话状态变更事件
// UI 层（SSE handler）订阅后按序消费
type Event struct {
	Type        EventType         `json:"type"`
	ChatID      string            `json:"chat_id,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	Message     *model.Message    `json:"message,omitempty"`
	Content     string            `json:"content,omitempty"`
	Usage       *model.TokenUsage `json:"usage,omitempty"`
	TotalTokens int               `json:"total_tokens,omitempty"`
	Title       string            `json:"title,omitempty"`
	Error       string            `json:"error,omitempty"`
}

const subscriberBuffer = 256

// Subscribe 订阅会话事件
// 返回事件通道和取消函数；取消后通道关闭
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan Event, subscriberBuffer)
	s.subs[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish 向全部订阅者广播事件
// 消费过慢导致缓冲写满时丢弃并告警，不阻塞发送流水线
func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().
				Str("user_id", s.userID).
				Int("subscriber", id).
				Str("event", string(ev.Type)).
				Msg("subscriber buffer full, dropping event")
		}
	}
}
