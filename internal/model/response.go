package model

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ValidateKeyResponse 验证 API 密钥响应
type ValidateKeyResponse struct {
	Valid bool `json:"valid"`
}

// SessionSnapshot 会话状态快照
type SessionSnapshot struct {
	CurrentChatID string         `json:"current_chat_id,omitempty"`
	Chats         []*Chat        `json:"chats"`
	Messages      []*Message     `json:"messages"`
	Personalities []*Personality `json:"personalities"`
	Settings      *Settings      `json:"settings,omitempty"`
	TotalTokens   int            `json:"total_tokens"`
	Generating    bool           `json:"generating"`
}
