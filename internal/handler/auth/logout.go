package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Logout 退出登录
// @Summary      退出登录
// @Description  退出登录，删除用户全部Refresh Token并丢弃服务端会话状态
// @Tags         认证
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /api/v1/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	// 从请求头获取Refresh Token（如果存在）
	refreshToken := c.GetHeader("X-Refresh-Token")
	if refreshToken == "" {
		// 也可以从body获取
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken != "" {
		ctx := c.Request.Context()
		userID, err := h.authService.Logout(ctx, refreshToken)
		if err == nil && userID != "" && h.onLogout != nil {
			// 丢弃服务端会话，内存状态全部清空
			h.onLogout(userID)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "退出成功",
	})
}
