package handler

import (
	"errors"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"kynor-backend/internal/model"
	"kynor-backend/internal/service"
	"kynor-backend/internal/utils"
	"kynor-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// writeError 校验错误 400，会话不存在 404
func writeError(c *gin.Context, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": verrs.Error()})
	case errors.Is(err, service.ErrChatNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoUserMessage):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func toChatResponse(res *service.SendResult) model.ChatResponse {
	return model.ChatResponse{
		SessionID: res.ChatID,
		MessageID: res.Message.ID,
		Content:   res.Message.Content,
		Role:      string(res.Message.Role),
		Timestamp: res.Message.CreatedAt.Unix(),
		Model:     res.Model,
		Note:      res.Note,
		Document:  res.Document,
		Failed:    res.Failed,
	}
}

func toSendRequest(req model.ChatRequest) service.SendRequest {
	return service.SendRequest{
		ChatID:       req.SessionID,
		Text:         req.Message,
		Model:        req.Model,
		ContentMaker: req.ContentMaker,
		ContentType:  req.ContentType,
	}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.chatService.Send(c.Request.Context(), toSendRequest(req))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toChatResponse(res))
}

// StreamChat 以 SSE 返回：status(typing) -> message -> status(complete)
func (h *ChatHandler) StreamChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// 流开始后状态码已写出，会话标识需提前校验
	if err := validation.Validate(req.SessionID, is.UUID); err != nil {
		writeError(c, validation.Errors{"session_id": err})
		return
	}

	sseWriter := utils.NewSSEWriter(c.Writer)
	defer sseWriter.Close()

	err := sseWriter.WriteJSON("status", gin.H{
		"type":      "typing_start",
		"timestamp": time.Now().Unix(),
	})
	if err != nil {
		logger.Errorf("Failed to write SSE: %v", err)
		return
	}

	res, err := h.chatService.Send(c.Request.Context(), toSendRequest(req))
	if err != nil {
		sseWriter.WriteJSON("error", gin.H{
			"error":     err.Error(),
			"type":      "service_error",
			"timestamp": time.Now().Unix(),
		})
		return
	}

	if err := sseWriter.WriteJSON("message", toChatResponse(res)); err != nil {
		logger.Errorf("Failed to write SSE: %v", err)
		return
	}

	sseWriter.WriteJSON("status", gin.H{
		"type":      "typing_complete",
		"timestamp": time.Now().Unix(),
	})
}

func (h *ChatHandler) Regenerate(c *gin.Context) {
	var req model.RegenerateRequest
	// 允许空请求体，默认使用活跃会话
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.chatService.Regenerate(c.Request.Context(), service.RegenerateRequest{
		ChatID:       req.SessionID,
		Model:        req.Model,
		ContentMaker: req.ContentMaker,
		ContentType:  req.ContentType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toChatResponse(res))
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	chat := h.chatService.NewChat()
	c.JSON(http.StatusOK, model.NewSession(chat, chat.ID, false))
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	chat, err := h.chatService.GetChat(sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(chat, h.chatService.Snapshot().ActiveID()))
}

// GetMessages ?render=html 时附带助手消息的 HTML
func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	chat, err := h.chatService.GetChat(sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   model.NewMessages(chat.ID, chat.Messages, c.Query("render") == "html"),
	})
}

func (h *ChatHandler) GetSessionList(c *gin.Context) {
	set := h.chatService.Snapshot()

	chats := set.Chats()
	sessions := make([]model.SessionResponse, 0, len(chats))
	for _, chat := range chats {
		sessions = append(sessions, model.NewSessionResponse(chat, set.ActiveID()))
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":  sessions,
		"active_id": set.ActiveID(),
	})
}

func (h *ChatHandler) SelectSession(c *gin.Context) {
	chat, err := h.chatService.SelectChat(c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(chat, chat.ID))
}

func (h *ChatHandler) ClearAllSessions(c *gin.Context) {
	h.chatService.ClearAll()
	c.JSON(http.StatusOK, gin.H{"message": "All sessions cleared successfully"})
}

func (h *ChatHandler) UpdateSessionTitle(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req model.RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.chatService.RenameChat(sessionID, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSessionResponse(chat, h.chatService.Snapshot().ActiveID()))
}
