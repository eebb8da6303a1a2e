package session

import (
	"context"

	"yuzu/internal/ai"
	"yuzu/internal/model"
)

// ChatStore 对话存储契约
type ChatStore interface {
	Create(ctx context.Context, chat *model.Chat) error
	ListByUserID(ctx context.Context, userID string) ([]*model.Chat, error)
	UpdateTitle(ctx context.Context, id, title string) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// MessageStore 消息存储契约
type MessageStore interface {
	Insert(ctx context.Context, msg *model.Message) error
	ListByChatID(ctx context.Context, chatID string) ([]*model.Message, error)
}

// PersonalityStore 人格存储契约
type PersonalityStore interface {
	Create(ctx context.Context, p *model.Personality) error
	ListByUserID(ctx context.Context, userID string) ([]*model.Personality, error)
	Update(ctx context.Context, id string, req *model.UpdatePersonalityRequest) error
	Activate(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, id string) error
}

// SettingsStore 用户设置存储契约
type SettingsStore interface {
	FindOrCreateByUserID(ctx context.Context, userID string) (*model.Settings, error)
	Update(ctx context.Context, userID string, req *model.UpdateSettingsRequest) error
}

// Completer 补全客户端契约
type Completer interface {
	SetCredential(key string)
	StreamCompletion(ctx context.Context, messages []model.PromptMessage, params ai.Params) (<-chan *ai.StreamEvent, error)
	ValidateCredential(ctx context.Context, key string) bool
}

// Stores 会话依赖的全部存储
type Stores struct {
	Chats         ChatStore
	Messages      MessageStore
	Personalities PersonalityStore
	Settings      SettingsStore
}
