package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"yuzu/internal/model"
	"yuzu/internal/session"
)

// ChatHandler 消息发送处理器
type ChatHandler struct {
	sessions *session.Manager
}

// NewChatHandler 创建消息发送处理器
func NewChatHandler(sessions *session.Manager) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

// Send 发送消息并流式返回回复 (SSE)
// @Summary      发送消息
// @Description  发送一条用户消息，以SSE流式返回助手回复
// @Tags         对话
// @Accept       json
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        request  body      model.SendMessageRequest  true  "发送消息请求"
// @Success      200      {string}  string  "SSE事件流"
// @Failure      400      {object}  model.ErrorResponse
// @Failure      409      {object}  model.ErrorResponse
// @Router       /api/v1/chat/send [post]
func (h *ChatHandler) Send(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	// 先订阅再发送，保证不漏事件
	events, cancel := sess.Subscribe()
	defer cancel()

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- sess.SendMessage(c.Request.Context(), req.Content)
	}()

	// 前置校验失败时走普通JSON错误响应，不开SSE流；
	// 事件一旦产生（包括流中失败的回滚事件）就进入SSE模式
	select {
	case err := <-sendErr:
		if isPreconditionError(err) {
			h.writeSendError(c, err)
			return
		}
		// 发送在事件消费开始前就结束了，缓冲里已有完整事件序列
		select {
		case ev := <-events:
			h.streamEvents(c, ev, events, nil)
		default:
			c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
		}
	case ev := <-events:
		h.streamEvents(c, ev, events, sendErr)
	}
}

// isPreconditionError 发送前置校验失败，此时不会有任何事件产生
func isPreconditionError(err error) bool {
	return errors.Is(err, session.ErrEmptyMessage) ||
		errors.Is(err, session.ErrGenerating) ||
		errors.Is(err, session.ErrNoAPIKey) ||
		errors.Is(err, session.ErrNoSettings)
}

// streamEvents 以SSE推送会话事件直到本轮发送结束
func (h *ChatHandler) streamEvents(c *gin.Context, first session.Event, events <-chan session.Event, sendErr chan error) {
	// 设置 SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	pending := &first
	c.Stream(func(w io.Writer) bool {
		if pending != nil {
			ev := *pending
			pending = nil
			c.SSEvent(string(ev.Type), ev)
			return ev.Type != session.EventDone && ev.Type != session.EventError
		}

		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return ev.Type != session.EventDone && ev.Type != session.EventError
		case <-c.Request.Context().Done():
			return false
		}
	})

	if sendErr != nil {
		// 等待发送goroutine收尾，避免泄漏
		<-sendErr
	}
}

// writeSendError 将发送前置校验错误映射为HTTP响应
func (h *ChatHandler) writeSendError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	errorCode := 50001

	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		code = http.StatusBadRequest
		errorCode = 40001
	case errors.Is(err, session.ErrGenerating):
		code = http.StatusConflict
		errorCode = 40901
	case errors.Is(err, session.ErrNoAPIKey), errors.Is(err, session.ErrNoSettings):
		code = http.StatusBadRequest
		errorCode = 40003
	}

	c.JSON(code, model.ErrorResponse{
		Code:    errorCode,
		Message: err.Error(),
	})
}

// Stop 停止当前生成
// @Summary      停止生成
// @Description  取消正在进行的回复生成
// @Tags         对话
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/chat/stop [post]
func (h *ChatHandler) Stop(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	sess.Stop()
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// Snapshot 获取会话状态快照
// @Summary      会话快照
// @Description  返回当前用户会话的完整状态（对话列表、消息、人格、设置、用量）
// @Tags         对话
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.SessionSnapshot
// @Router       /api/v1/session [get]
func (h *ChatHandler) Snapshot(c *gin.Context) {
	sess, ok := resolveSession(c, h.sessions)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, sess.Snapshot())
}
