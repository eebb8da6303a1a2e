package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yuzu/internal/model"
	"yuzu/internal/session"
)

// PersonalityHandler 人格管理处理器
type PersonalityHandler struct {
	sessions *session.Manager
}

// NewPersonalityHandler 创建人格管理处理器
func NewPersonalityHandler(sessions *session.Manager) *PersonalityHandler {
	return &PersonalityHandler{sessions: sessions}
}

// List 获取人格列表
// @Summary      人格列表
// @Tags         人格
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/personalities [get]
func (h *PersonalityHandler) List(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	personalities := sess.Personalities()
	c.JSON(http.StatusOK, gin.H{
		"personalities": personalities,
		"total":         len(personalities),
	})
}

// Create 创建人格
// @Summary      创建人格
// @Description  创建自定义人格，新人格默认开启记忆
// @Tags         人格
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      model.CreatePersonalityRequest  true  "创建人格请求"
// @Success      201      {object}  model.Personality
// @Failure      400      {object}  model.ErrorResponse
// @Failure      500      {object}  model.ErrorResponse
// @Router       /api/v1/personalities [post]
func (h *PersonalityHandler) Create(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	var req model.CreatePersonalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	personality, err := sess.CreatePersonality(c.Request.Context(), req.Name, req.Prompt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to create personality",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, personality)
}

// Update 更新人格
// @Summary      更新人格
// @Description  更新人格的名称、提示词或记忆开关，未提供的字段保持不变
// @Tags         人格
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string                          true  "人格ID"
// @Param        request  body  model.UpdatePersonalityRequest  true  "更新人格请求"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  model.ErrorResponse
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/personalities/{id} [put]
func (h *PersonalityHandler) Update(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	var req model.UpdatePersonalityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	personalityID := c.Param("id")
	if err := sess.UpdatePersonality(c.Request.Context(), personalityID, &req); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to update personality",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// Activate 激活人格
// @Summary      激活人格
// @Description  将指定人格设为激活状态，同时取消其他人格的激活
// @Tags         人格
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "人格ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/personalities/{id}/activate [post]
func (h *PersonalityHandler) Activate(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	personalityID := c.Param("id")
	if err := sess.SetActivePersonality(c.Request.Context(), personalityID); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to activate personality",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// Delete 删除人格
// @Summary      删除人格
// @Description  删除人格；删除当前激活的人格会清空激活状态
// @Tags         人格
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "人格ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  model.ErrorResponse
// @Router       /api/v1/personalities/{id} [delete]
func (h *PersonalityHandler) Delete(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	personalityID := c.Param("id")
	if err := sess.DeletePersonality(c.Request.Context(), personalityID); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to delete personality",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}
