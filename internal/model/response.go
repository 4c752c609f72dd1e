package model

import (
	"time"

	"kynor-backend/internal/content"
	"kynor-backend/internal/conversation"
	"kynor-backend/internal/preference"
	"kynor-backend/internal/render"
)

type ChatResponse struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
	Model     string `json:"model,omitempty"`
	Note      string `json:"note,omitempty"`
	// Document 内容生成模式下解析出的结构化文档
	Document *content.Document `json:"document,omitempty"`
	Failed   bool              `json:"failed,omitempty"`
}

type SessionResponse struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	Active       bool   `json:"active"`
}

type Message struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	HTMLContent string    `json:"html_content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type Session struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
	Active   bool      `json:"active"`
}

type ModelsResponse struct {
	Models   []string `json:"models"`
	Default  string   `json:"default"`
	Fallback string   `json:"fallback"`
}

type PreferenceResponse struct {
	Theme    string `json:"theme"`
	LoggedIn bool   `json:"logged_in"`
	AuthCode string `json:"auth_code,omitempty"`
}

func NewSessionResponse(chat conversation.Chat, activeID string) SessionResponse {
	return SessionResponse{
		SessionID:    chat.ID,
		Title:        chat.Title,
		MessageCount: len(chat.Messages),
		Active:       chat.ID == activeID,
	}
}

// NewMessages renderHTML 为 true 时为助手消息附带渲染后的 HTML
func NewMessages(chatID string, messages []conversation.Message, renderHTML bool) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		msg := Message{
			ID:        m.ID,
			SessionID: chatID,
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		}
		if renderHTML && m.Role == conversation.RoleAssistant {
			msg.HTMLContent = render.HTML(m.Content)
		}
		out = append(out, msg)
	}
	return out
}

func NewSession(chat conversation.Chat, activeID string, renderHTML bool) Session {
	return Session{
		ID:       chat.ID,
		Title:    chat.Title,
		Messages: NewMessages(chat.ID, chat.Messages, renderHTML),
		Active:   chat.ID == activeID,
	}
}

func NewPreferenceResponse(st preference.State) PreferenceResponse {
	return PreferenceResponse{
		Theme:    string(st.Theme),
		LoggedIn: st.LoggedIn(),
		AuthCode: st.AuthCode,
	}
}
