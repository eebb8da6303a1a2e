package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"yuzu/internal/ai"
	"yuzu/internal/model"
	"yuzu/internal/pkg/id"
)

var (
	ErrEmptyMessage = errors.New("消息内容为空")
	ErrGenerating   = errors.New("上一条消息仍在生成中")
	ErrNoAPIKey     = errors.New("未配置 API 密钥，请先在设置中添加")
	ErrNoSettings   = errors.New("用户设置尚未加载")
)

const (
	defaultChatTitle = "New Chat"
	titleMaxLen      = 50
)

// Session 用户会话 - 应用内存状态的唯一持有者
// 职责: 发送流水线编排（prompt 组装、流式消费、持久化、错误回滚），
// 以及对话/人格/设置的内存状态维护
//
// 所有状态变更都经由本类型的方法串行完成（互斥锁即单写者），
// UI 层通过 Subscribe 获得变更通知
type Session struct {
	userID    string
	stores    Stores
	completer Completer

	mu            sync.Mutex
	chats         []*model.Chat
	currentChatID string
	messages      []*model.Message
	personalities []*model.Personality
	active        *model.Personality
	settings      *model.Settings
	totalTokens   int
	generating    bool
	cancelStream  context.CancelFunc

	subMu     sync.Mutex
	subs      map[int]chan Event
	nextSubID int
}

// New 创建用户会话
func New(userID string, stores Stores, completer Completer) *Session {
	return &Session{
		userID:    userID,
		stores:    stores,
		completer: completer,
		subs:      make(map[int]chan Event),
	}
}

// Load 加载用户的对话列表、设置和人格
// 在用户认证成功（"user becomes available"）时调用
func (s *Session) Load(ctx context.Context) error {
	chats, err := s.stores.Chats.ListByUserID(ctx, s.userID)
	if err != nil {
		return err
	}

	settings, err := s.stores.Settings.FindOrCreateByUserID(ctx, s.userID)
	if err != nil {
		return err
	}

	personalities, err := s.stores.Personalities.ListByUserID(ctx, s.userID)
	if err != nil {
		return err
	}

	s.completer.SetCredential(settings.APIKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = chats
	s.settings = settings
	s.personalities = personalities
	s.active = nil
	for _, p := range personalities {
		if p.IsActive {
			s.active = p
			break
		}
	}
	return nil
}

// UserID 会话所属用户
func (s *Session) UserID() string {
	return s.userID
}

// Snapshot 当前状态快照
// 返回深拷贝：发送流水线在锁内持续改写占位消息，快照持有方
// （handler 的 JSON 序列化）在锁外读取，不能共享实体指针
func (s *Session) Snapshot() *model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &model.SessionSnapshot{
		CurrentChatID: s.currentChatID,
		Chats:         cloneChats(s.chats),
		Messages:      cloneMessages(s.messages),
		Personalities: clonePersonalities(s.personalities),
		Settings:      s.settings.Clone(),
		TotalTokens:   s.totalTokens,
		Generating:    s.generating,
	}
	return snap
}

func cloneChats(in []*model.Chat) []*model.Chat {
	out := make([]*model.Chat, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func cloneMessages(in []*model.Message) []*model.Message {
	out := make([]*model.Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func clonePersonalities(in []*model.Personality) []*model.Personality {
	out := make([]*model.Personality, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}

// SendMessage 发送一条用户消息并流式生成回复
//
// 流程: 前置校验 -> 对话解析 -> 乐观追加用户消息（异步持久化）->
// prompt 组装 -> 追加助手占位消息 -> 流式消费 -> 持久化助手消息 ->
// 首轮对话自动派生标题；任何失败都会回滚占位消息，用户消息保留
func (s *Session) SendMessage(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	// 单飞检查：占住生成标记后才能继续
	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return ErrGenerating
	}
	if s.settings == nil {
		s.mu.Unlock()
		return ErrNoSettings
	}
	if strings.TrimSpace(s.settings.APIKey) == "" {
		s.mu.Unlock()
		return ErrNoAPIKey
	}
	s.generating = true
	apiKey := s.settings.APIKey
	params := ai.Params{
		Model:       s.settings.Model,
		Temperature: s.settings.Temperature,
		MaxTokens:   s.settings.MaxTokens,
	}
	chatID := s.currentChatID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.generating = false
		s.cancelStream = nil
		s.mu.Unlock()
	}()

	// 对话解析：没有选中的对话时先创建一个
	if chatID == "" {
		chat, err := s.createChat(ctx, defaultChatTitle)
		if err != nil {
			s.publish(Event{Type: EventError, Error: err.Error()})
			return err
		}
		chatID = chat.ID
	}

	// 用户消息：先追加到内存（乐观更新），再异步持久化；
	// 持久化失败不重试，也不阻塞助手回复
	userMsg := &model.Message{
		ID:        id.New(),
		ChatID:    chatID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.messages = append(s.messages, userMsg)
	s.mu.Unlock()
	s.publish(Event{Type: EventMessageAppended, ChatID: chatID, Message: userMsg.Clone()})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.stores.Messages.Insert(ctx, userMsg); err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to persist user message")
			return
		}
		if err := s.stores.Chats.Touch(ctx, chatID); err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to touch chat")
		}
	}()

	// prompt 组装
	prompt := s.assemblePrompt()

	// 助手占位消息：第一个片段到达前就加入内存列表，
	// 让 UI 有稳定的更新目标
	placeholder := &model.Message{
		ID:        id.New(),
		ChatID:    chatID,
		Role:      model.RoleAssistant,
		Content:   "",
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.messages = append(s.messages, placeholder)
	s.mu.Unlock()
	s.publish(Event{Type: EventMessageAppended, ChatID: chatID, Message: placeholder.Clone()})

	// 流式消费
	s.completer.SetCredential(apiKey)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancelStream = cancel
	s.mu.Unlock()

	events, err := s.completer.StreamCompletion(streamCtx, prompt, params)
	if err != nil {
		s.rollback(placeholder, err)
		return err
	}

	var buf strings.Builder
	var turnTokens int
	for ev := range events {
		if ev.Err != nil {
			s.rollback(placeholder, ev.Err)
			return ev.Err
		}

		if ev.Content != "" {
			buf.WriteString(ev.Content)
			s.mu.Lock()
			placeholder.Content = buf.String()
			s.mu.Unlock()
			s.publish(Event{
				Type:      EventMessageDelta,
				ChatID:    chatID,
				MessageID: placeholder.ID,
				Content:   ev.Content,
			})
		}

		if ev.Usage != nil {
			// 上游快照是累计值：后到的更大快照替换本轮此前的贡献
			usage := *ev.Usage
			s.mu.Lock()
			s.totalTokens += usage.TotalTokens - turnTokens
			turnTokens = usage.TotalTokens
			placeholder.TokenUsage = &usage
			total := s.totalTokens
			s.mu.Unlock()
			s.publish(Event{
				Type:        EventUsage,
				ChatID:      chatID,
				MessageID:   placeholder.ID,
				Usage:       ev.Usage,
				TotalTokens: total,
			})
		}
	}

	// 流正常结束：持久化助手消息
	// 写入失败只告警（UI 已展示的内容可能并未落库，属已知取舍）
	if err := s.stores.Messages.Insert(ctx, placeholder); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to persist assistant message")
	} else if err := s.stores.Chats.Touch(ctx, chatID); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to touch chat")
	}

	// 首轮对话（恰好两条消息）自动派生标题
	s.mu.Lock()
	firstExchange := len(s.messages) == 2
	s.mu.Unlock()
	if firstExchange {
		title := deriveTitle(content)
		s.applyChatTitle(chatID, title)
		if err := s.stores.Chats.UpdateTitle(ctx, chatID, title); err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("failed to persist chat title")
		}
		s.publish(Event{Type: EventTitleUpdated, ChatID: chatID, Title: title})
	}

	s.publish(Event{Type: EventDone, ChatID: chatID, MessageID: placeholder.ID})
	return nil
}

// Stop 取消正在进行的生成
// 取消会让流式消费以失败收尾（占位消息回滚）
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancelStream
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Generating 是否有发送正在进行
func (s *Session) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// rollback 发送失败：从内存列表移除占位消息，保留用户消息
func (s *Session) rollback(placeholder *model.Message, cause error) {
	s.mu.Lock()
	for i, m := range s.messages {
		if m.ID == placeholder.ID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	log.Error().Err(cause).Str("user_id", s.userID).Msg("message generation failed")
	s.publish(Event{Type: EventMessageRemoved, MessageID: placeholder.ID})
	s.publish(Event{Type: EventError, Error: cause.Error()})
}

// assemblePrompt 组装发送给模型的消息序列
//
// 无激活人格: 内存消息列表原样投影；
// 人格开启记忆: 人格 prompt 作为 system 消息置于完整历史之前；
// 人格关闭记忆: 只发送 system 消息和当前这条用户消息
func (s *Session) assemblePrompt() []model.PromptMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	projected := make([]model.PromptMessage, 0, len(s.messages)+1)
	for _, m := range s.messages {
		projected = append(projected, model.PromptMessage{Role: m.Role, Content: m.Content})
	}

	if s.active == nil {
		return projected
	}

	system := model.PromptMessage{Role: model.RoleSystem, Content: s.active.Prompt}
	if s.active.HasMemory {
		return append([]model.PromptMessage{system}, projected...)
	}

	// 无记忆：只带当前用户消息
	current := projected[len(projected)-1]
	return []model.PromptMessage{system, current}
}

// deriveTitle 用首条用户消息派生对话标题
// 超过50个字符时截断并追加省略号
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxLen {
		return content
	}
	return string(runes[:titleMaxLen]) + "..."
}

// applyChatTitle 更新内存中的对话标题
func (s *Session) applyChatTitle(chatID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chats {
		if c.ID == chatID {
			c.Title = title
			c.UpdatedAt = time.Now()
			break
		}
	}
}
