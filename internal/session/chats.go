package session

import (
	"context"
	"time"

	"yuzu/internal/model"
	"yuzu/internal/pkg/id"
)

// CreateChat 创建新对话并选中
func (s *Session) CreateChat(ctx context.Context, title string) (*model.Chat, error) {
	if title == "" {
		title = defaultChatTitle
	}
	chat, err := s.createChat(ctx, title)
	if err != nil {
		return nil, err
	}
	return chat.Clone(), nil
}

// createChat 创建对话、置顶并选中
func (s *Session) createChat(ctx context.Context, title string) (*model.Chat, error) {
	now := time.Now()
	chat := &model.Chat{
		ID:        id.New(),
		UserID:    s.userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.stores.Chats.Create(ctx, chat); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.chats = append([]*model.Chat{chat}, s.chats...)
	s.currentChatID = chat.ID
	s.messages = nil
	s.mu.Unlock()

	s.publish(Event{Type: EventChatCreated, ChatID: chat.ID, Title: chat.Title})
	return chat, nil
}

// SelectChat 选中对话并加载其消息
// 内存消息列表与持久化顺序保持一致（按创建时间正序）
func (s *Session) SelectChat(ctx context.Context, chatID string) ([]*model.Message, error) {
	msgs, err := s.stores.Messages.ListByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.currentChatID = chatID
	s.messages = msgs
	s.mu.Unlock()

	return cloneMessages(msgs), nil
}

// DeleteChat 删除对话
// 删除当前选中的对话会清空选中状态和内存消息列表
func (s *Session) DeleteChat(ctx context.Context, chatID string) error {
	if err := s.stores.Chats.Delete(ctx, chatID); err != nil {
		return err
	}

	s.mu.Lock()
	for i, c := range s.chats {
		if c.ID == chatID {
			s.chats = append(s.chats[:i], s.chats[i+1:]...)
			break
		}
	}
	if s.currentChatID == chatID {
		s.currentChatID = ""
		s.messages = nil
	}
	s.mu.Unlock()

	return nil
}

// UpdateChatTitle 显式更新对话标题
func (s *Session) UpdateChatTitle(ctx context.Context, chatID, title string) error {
	if err := s.stores.Chats.UpdateTitle(ctx, chatID, title); err != nil {
		return err
	}

	s.applyChatTitle(chatID, title)
	s.publish(Event{Type: EventTitleUpdated, ChatID: chatID, Title: title})
	return nil
}

// Chats 内存中的对话列表（深拷贝）
func (s *Session) Chats() []*model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneChats(s.chats)
}

// Messages 当前对话的内存消息列表（深拷贝）
func (s *Session) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

// CurrentChatID 当前选中的对话
func (s *Session) CurrentChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentChatID
}

// TotalTokens 本次会话累计的 token 用量（进程生命周期内有效）
func (s *Session) TotalTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTokens
}
