package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"yuzu/internal/model"
	"yuzu/internal/session"
)

// SettingsHandler 设置处理器
type SettingsHandler struct {
	sessions *session.Manager
}

// NewSettingsHandler 创建设置处理器
func NewSettingsHandler(sessions *session.Manager) *SettingsHandler {
	return &SettingsHandler{sessions: sessions}
}

// Get 获取用户设置
// @Summary      获取设置
// @Description  返回当前用户的设置，首次访问时按默认值创建
// @Tags         设置
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.Settings
// @Router       /api/v1/settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, sess.Settings())
}

// Update 更新用户设置
// @Summary      更新设置
// @Description  更新模型、温度、最大Token数、主题或API密钥，未提供的字段保持不变
// @Tags         设置
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.UpdateSettingsRequest  true  "更新设置请求"
// @Success      200      {object}  model.Settings
// @Failure      400      {object}  model.ErrorResponse
// @Failure      500      {object}  model.ErrorResponse
// @Router       /api/v1/settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	var req model.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	if err := sess.UpdateSettings(c.Request.Context(), &req); err != nil {
		code := http.StatusInternalServerError
		errorCode := 50001

		// 参数边界错误返回400
		if errors.Is(err, session.ErrInvalidTemperature) ||
			errors.Is(err, session.ErrInvalidMaxTokens) ||
			errors.Is(err, session.ErrInvalidTheme) {
			code = http.StatusBadRequest
			errorCode = 40004
		}

		c.JSON(code, model.ErrorResponse{
			Code:    errorCode,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, sess.Settings())
}

// ValidateKey 验证 API 密钥
// @Summary      验证API密钥
// @Description  用给定密钥向提供商发起一次轻量请求，返回密钥是否可用
// @Tags         设置
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.ValidateKeyRequest  true  "验证密钥请求"
// @Success      200      {object}  model.ValidateKeyResponse
// @Failure      400      {object}  model.ErrorResponse
// @Router       /api/v1/settings/validate-key [post]
func (h *SettingsHandler) ValidateKey(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	var req model.ValidateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	valid := sess.ValidateCredential(c.Request.Context(), req.APIKey)
	c.JSON(http.StatusOK, model.ValidateKeyResponse{Valid: valid})
}
