package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yuzu/internal/model"
	"yuzu/internal/pkg/ctxutil"
	"yuzu/internal/session"
)

// resolveSession 从请求上下文解析当前用户的会话
// 认证中间件已将用户ID写入context；会话不存在时惰性创建并加载
func resolveSession(c *gin.Context, sessions *session.Manager) (*session.Session, bool) {
	userID, ok := ctxutil.GetUserID(c.Request.Context())
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{
			Code:    40101,
			Message: "未授权",
		})
		return nil, false
	}

	sess, err := sessions.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to load session",
			Detail:  err.Error(),
		})
		return nil, false
	}
	return sess, true
}
