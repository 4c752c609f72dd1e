package model

type ChatRequest struct {
	Message      string `json:"message" binding:"required"`
	SessionID    string `json:"session_id"`
	Model        string `json:"model"`
	ContentMaker bool   `json:"content_maker"`
	ContentType  string `json:"content_type"`
}

type RegenerateRequest struct {
	SessionID    string `json:"session_id"`
	Model        string `json:"model"`
	ContentMaker bool   `json:"content_maker"`
	ContentType  string `json:"content_type"`
}

type RenameSessionRequest struct {
	Title string `json:"title" binding:"required"`
}

type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

type LoginRequest struct {
	Code string `json:"code" binding:"required"`
}
