package model

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateChatRequest 创建对话请求
type CreateChatRequest struct {
	Title string `json:"title,omitempty"`
}

// UpdateChatTitleRequest 更新对话标题请求
type UpdateChatTitleRequest struct {
	Title string `json:"title" binding:"required"`
}

// CreatePersonalityRequest 创建人格请求
type CreatePersonalityRequest struct {
	Name   string `json:"name" binding:"required"`
	Prompt string `json:"prompt" binding:"required"`
}

// UpdatePersonalityRequest 更新人格请求
// 指针字段区分"未提供"与"零值"
type UpdatePersonalityRequest struct {
	Name      *string `json:"name,omitempty"`
	Prompt    *string `json:"prompt,omitempty"`
	HasMemory *bool   `json:"has_memory,omitempty"`
}

// UpdateSettingsRequest 更新设置请求
type UpdateSettingsRequest struct {
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Theme       *string  `json:"theme,omitempty"`
	APIKey      *string  `json:"api_key,omitempty"`
}

// ValidateKeyRequest 验证 API 密钥请求
type ValidateKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}
