package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yuzu/internal/pkg/mongodb"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	mongo *mongodb.Client
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(mongo *mongodb.Client) *HealthHandler {
	return &HealthHandler{mongo: mongo}
}

// Health 健康检查
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查
// 数据库连通才算就绪
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.mongo != nil {
		if err := h.mongo.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"detail": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}
