package model

import (
	"time"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat 对话实体
// ID使用UUID格式（string），客户端生成
type Chat struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Title     string    `bson:"title" json:"title"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Message 消息实体
// 同一对话内的消息按 CreatedAt 正序排列
type Message struct {
	ID         string      `bson:"_id,omitempty" json:"id"`
	ChatID     string      `bson:"chat_id" json:"chat_id"`
	Role       string      `bson:"role" json:"role"`
	Content    string      `bson:"content" json:"content"`
	TokenUsage *TokenUsage `bson:"token_usage,omitempty" json:"token_usage,omitempty"`
	CreatedAt  time.Time   `bson:"created_at" json:"created_at"`
}

// Clone 深拷贝
// 会话在持锁状态下修改实体；交给锁外持有方（handler 序列化、事件订阅者）
// 的必须是副本
func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Clone 深拷贝，含 TokenUsage
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	if m.TokenUsage != nil {
		u := *m.TokenUsage
		cp.TokenUsage = &u
	}
	return &cp
}

// TokenUsage Token 使用统计
type TokenUsage struct {
	PromptTokens     int `bson:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int `bson:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int `bson:"total_tokens" json:"total_tokens"`
}

// Personality 人格实体（可复用的 system prompt）
// 每个用户至多一个 IsActive=true 的人格
type Personality struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Name      string    `bson:"name" json:"name"`
	Prompt    string    `bson:"prompt" json:"prompt"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
	HasMemory bool      `bson:"has_memory" json:"has_memory"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Clone 深拷贝
func (p *Personality) Clone() *Personality {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Settings 用户设置实体
// 每个用户恰好一条记录，首次访问时按默认值懒创建
// APIKey 在仓库层混淆存储，内存中为明文
type Settings struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	UserID      string    `bson:"user_id" json:"user_id"`
	Model       string    `bson:"model" json:"model"`
	Temperature float64   `bson:"temperature" json:"temperature"`
	MaxTokens   int       `bson:"max_tokens" json:"max_tokens"`
	Theme       string    `bson:"theme" json:"theme"`
	APIKey      string    `bson:"api_key,omitempty" json:"api_key,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Clone 深拷贝
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// PromptMessage 发送给模型的角色标记消息
// 由内存消息列表投影得到，不携带 usage 等元数据
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
