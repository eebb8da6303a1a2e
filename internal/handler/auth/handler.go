package auth

import (
	"yuzu/internal/service"
)

// Handler 认证处理器
// 所有auth相关的Handler方法都通过这个结构体访问Service
type Handler struct {
	authService *service.AuthService
	onLogout    func(userID string) // 退出登录后的会话清理回调（可为nil）
}

// NewHandler 创建认证处理器
func NewHandler(authService *service.AuthService, onLogout func(userID string)) *Handler {
	return &Handler{
		authService: authService,
		onLogout:    onLogout,
	}
}
