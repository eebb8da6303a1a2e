package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yuzu/internal/model"
	"yuzu/internal/session"
)

// ConversationHandler 对话管理处理器
type ConversationHandler struct {
	sessions *session.Manager
}

// NewConversationHandler 创建对话管理处理器
func NewConversationHandler(sessions *session.Manager) *ConversationHandler {
	return &ConversationHandler{sessions: sessions}
}

// List 获取对话列表
// @Summary      对话列表
// @Description  返回当前用户的全部对话，按更新时间倒序
// @Tags         对话管理
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/chats [get]
func (h *ConversationHandler) List(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	chats := sess.Chats()
	c.JSON(http.StatusOK, gin.H{
		"chats": chats,
		"total": len(chats),
	})
}

// Create 创建对话
// @Summary      创建对话
// @Description  创建一个新对话并切换为当前对话
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.CreateChatRequest  true  "创建对话请求"
// @Success      201      {object}  model.Chat
// @Failure      400      {object}  model.ErrorResponse
// @Failure      500      {object}  model.ErrorResponse
// @Router       /api/v1/chats [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	var req model.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	chat, err := sess.CreateChat(c.Request.Context(), req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to create chat",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, chat)
}

// Select 切换当前对话并返回其消息
// @Summary      切换对话
// @Description  将指定对话设为当前对话，返回其消息列表（按时间正序）
// @Tags         对话管理
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "对话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/chats/{id}/select [post]
func (h *ConversationHandler) Select(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	chatID := c.Param("id")
	messages, err := sess.SelectChat(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to load messages",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chat_id":  chatID,
		"messages": messages,
		"total":    len(messages),
	})
}

// UpdateTitle 更新对话标题
// @Summary      更新对话标题
// @Tags         对话管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string                        true  "对话ID"
// @Param        request  body  model.UpdateChatTitleRequest  true  "更新标题请求"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  model.ErrorResponse
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/chats/{id}/title [put]
func (h *ConversationHandler) UpdateTitle(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	var req model.UpdateChatTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	chatID := c.Param("id")
	if err := sess.UpdateChatTitle(c.Request.Context(), chatID, req.Title); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to update chat title",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// Delete 删除对话
// @Summary      删除对话
// @Description  删除对话及其全部消息；删除当前对话会清空选中状态
// @Tags         对话管理
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "对话ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/chats/{id} [delete]
func (h *ConversationHandler) Delete(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	chatID := c.Param("id")
	if err := sess.DeleteChat(c.Request.Context(), chatID); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to delete chat",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}
