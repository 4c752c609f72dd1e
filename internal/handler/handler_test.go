package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kynor-backend/internal/completion"
	"kynor-backend/internal/config"
	"kynor-backend/internal/ident"
	"kynor-backend/internal/mirror"
	"kynor-backend/internal/model"
	"kynor-backend/internal/preference"
	"kynor-backend/internal/service"
	"kynor-backend/internal/storage"
)

type stubGateway struct {
	result *completion.Result
	err    error
}

func (s *stubGateway) Complete(context.Context, string, []completion.Message) (*completion.Result, error) {
	return s.result, s.err
}

type testServer struct {
	router *gin.Engine
	chat   *service.ChatService
}

func newTestServer(t *testing.T, gw service.Completer, mutate func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.CORS.AllowedOrigins = []string{"*"}
	if mutate != nil {
		mutate(cfg)
	}

	store := storage.New(cfg.Storage.Type, cfg.Storage.DataDir)
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })

	chatService := service.NewChatService(cfg, store, mirror.New(nil), gw)
	prefs := preference.NewStore("")
	require.NoError(t, prefs.Load())

	router := NewRouter(cfg, Handlers{
		Chat:       NewChatHandler(chatService),
		Preference: NewPreferenceHandler(service.NewPreferenceService(prefs)),
		Catalog:    NewCatalogHandler(cfg),
	})
	return &testServer{router: router, chat: chatService}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubGateway{}, nil)
	w := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSendMessage(t *testing.T) {
	gw := &stubGateway{result: &completion.Result{Content: "**hi**", Model: completion.FallbackModel, FallbackFrom: "llama-3.1-8b-instant"}}
	srv := newTestServer(t, gw, nil)

	w := srv.do(t, http.MethodPost, "/api/chat/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var session model.Session
	decode(t, w, &session)
	assert.True(t, session.Active)

	w = srv.do(t, http.MethodPost, "/api/chat/send", model.ChatRequest{SessionID: session.ID, Message: "hello", Model: "llama-3.1-8b-instant"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.ChatResponse
	decode(t, w, &resp)
	assert.Equal(t, session.ID, resp.SessionID)
	assert.Equal(t, "assistant", resp.Role)
	assert.Equal(t, "**hi**", resp.Content)
	assert.Equal(t, "fallback from llama-3.1-8b-instant", resp.Note)
	assert.False(t, resp.Failed)

	w = srv.do(t, http.MethodGet, "/api/chat/messages/"+session.ID+"?render=html", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs struct {
		Messages []model.Message `json:"messages"`
	}
	decode(t, w, &msgs)
	require.Len(t, msgs.Messages, 2)
	assert.Empty(t, msgs.Messages[0].HTMLContent)
	assert.Contains(t, msgs.Messages[1].HTMLContent, "<strong>hi</strong>")

	w = srv.do(t, http.MethodGet, "/api/chat/session/"+session.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary model.SessionResponse
	decode(t, w, &summary)
	assert.Equal(t, "hello", summary.Title)
	assert.Equal(t, 2, summary.MessageCount)
}

func TestSendMessage_Validation(t *testing.T) {
	srv := newTestServer(t, &stubGateway{}, nil)

	w := srv.do(t, http.MethodPost, "/api/chat/send", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/api/chat/send", model.ChatRequest{Message: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestSendMessage_RejectsTraversalSessionID(t *testing.T) {
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	srv := newTestServer(t, &stubGateway{result: &completion.Result{Content: "ok"}}, func(cfg *config.Config) {
		cfg.Storage.Type = "disk"
		cfg.Storage.DataDir = dataDir
	})

	w := srv.do(t, http.MethodPost, "/api/chat/send", model.ChatRequest{SessionID: "../../escaped", Message: "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/api/chat/stream", model.ChatRequest{SessionID: "../../escaped", Message: "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err := os.Stat(filepath.Join(root, "escaped.json"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, srv.chat.Snapshot().Len())

	entries, err := os.ReadDir(filepath.Join(dataDir, "sessions"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSendMessage_GatewayErrorIsAssistantMessage(t *testing.T) {
	srv := newTestServer(t, &stubGateway{err: completion.ErrNotConfigured}, nil)

	w := srv.do(t, http.MethodPost, "/api/chat/send", model.ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.ChatResponse
	decode(t, w, &resp)
	assert.True(t, resp.Failed)
	assert.Equal(t, completion.ErrNotConfigured.Error(), resp.Content)
}

func TestStreamChat(t *testing.T) {
	gw := &stubGateway{result: &completion.Result{Content: "streamed", Model: completion.FallbackModel}}
	srv := newTestServer(t, gw, nil)

	w := srv.do(t, http.MethodPost, "/api/chat/stream", model.ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	typing := strings.Index(body, "typing_start")
	message := strings.Index(body, "event: message")
	complete := strings.Index(body, "typing_complete")
	require.True(t, typing >= 0 && message > typing && complete > message, body)
	assert.Contains(t, body, `"content":"streamed"`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestRegenerate(t *testing.T) {
	gw := &stubGateway{result: &completion.Result{Content: "again"}}
	srv := newTestServer(t, gw, nil)

	w := srv.do(t, http.MethodPost, "/api/chat/session", nil)
	var session model.Session
	decode(t, w, &session)

	w = srv.do(t, http.MethodPost, "/api/chat/regenerate", model.RegenerateRequest{SessionID: session.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	srv.do(t, http.MethodPost, "/api/chat/send", model.ChatRequest{SessionID: session.ID, Message: "question"})

	w = srv.do(t, http.MethodPost, "/api/chat/regenerate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	chat, err := srv.chat.GetChat(session.ID)
	require.NoError(t, err)
	assert.Len(t, chat.Messages, 4)

	w = srv.do(t, http.MethodPost, "/api/chat/regenerate", model.RegenerateRequest{SessionID: ident.New()})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodPost, "/api/chat/regenerate", model.RegenerateRequest{SessionID: "missing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, &stubGateway{}, nil)

	var first, second model.Session
	decode(t, srv.do(t, http.MethodPost, "/api/chat/session", nil), &first)
	decode(t, srv.do(t, http.MethodPost, "/api/chat/session", nil), &second)

	w := srv.do(t, http.MethodPost, "/api/chat/session/list", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Sessions []model.SessionResponse `json:"sessions"`
		ActiveID string                  `json:"active_id"`
	}
	decode(t, w, &list)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, second.ID, list.Sessions[0].SessionID)
	assert.Equal(t, second.ID, list.ActiveID)

	w = srv.do(t, http.MethodPost, "/api/chat/session/"+first.ID+"/select", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, srv.chat.Snapshot().ActiveID())

	w = srv.do(t, http.MethodPost, "/api/chat/session/missing/select", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodPut, "/api/chat/session/"+first.ID, model.RenameSessionRequest{Title: "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	var renamed model.SessionResponse
	decode(t, w, &renamed)
	assert.Equal(t, "Renamed", renamed.Title)

	w = srv.do(t, http.MethodPut, "/api/chat/session/missing", model.RenameSessionRequest{Title: "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodGet, "/api/chat/session/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = srv.do(t, http.MethodPost, "/api/chat/session/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, srv.chat.Snapshot().Len())
}

func TestCatalog(t *testing.T) {
	srv := newTestServer(t, &stubGateway{}, nil)

	w := srv.do(t, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var models model.ModelsResponse
	decode(t, w, &models)
	assert.Len(t, models.Models, 4)
	assert.Equal(t, completion.DefaultModel, models.Default)
	assert.Equal(t, completion.FallbackModel, models.Fallback)

	w = srv.do(t, http.MethodGet, "/api/commands?input=/tr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/translate")
	assert.NotContains(t, w.Body.String(), "/code")

	w = srv.do(t, http.MethodGet, "/api/commands", nil)
	assert.Contains(t, w.Body.String(), "Исследовать")

	w = srv.do(t, http.MethodGet, "/api/content/types", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var types struct {
		Types   []string `json:"types"`
		Default string   `json:"default"`
	}
	decode(t, w, &types)
	assert.Len(t, types.Types, 5)
	assert.Equal(t, "Статья/Пост", types.Default)
}

func TestPreferences(t *testing.T) {
	srv := newTestServer(t, &stubGateway{}, nil)

	var prefs model.PreferenceResponse
	decode(t, srv.do(t, http.MethodGet, "/api/preferences", nil), &prefs)
	assert.Equal(t, "light", prefs.Theme)
	assert.False(t, prefs.LoggedIn)

	w := srv.do(t, http.MethodPost, "/api/preferences/theme/toggle", nil)
	decode(t, w, &prefs)
	assert.Equal(t, "dark", prefs.Theme)

	w = srv.do(t, http.MethodPut, "/api/preferences/theme", model.ThemeRequest{Theme: "light"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &prefs)
	assert.Equal(t, "light", prefs.Theme)

	w = srv.do(t, http.MethodPut, "/api/preferences/theme", model.ThemeRequest{Theme: "blue"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var code struct {
		Code string `json:"code"`
	}
	decode(t, srv.do(t, http.MethodPost, "/api/auth/code", nil), &code)
	assert.Len(t, code.Code, 6)

	w = srv.do(t, http.MethodPost, "/api/auth/login", model.LoginRequest{Code: code.Code})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &prefs)
	assert.True(t, prefs.LoggedIn)
	assert.Equal(t, code.Code, prefs.AuthCode)

	w = srv.do(t, http.MethodPost, "/api/auth/login", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = srv.do(t, http.MethodPost, "/api/auth/logout", nil)
	decode(t, w, &prefs)
	assert.False(t, prefs.LoggedIn)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, &stubGateway{}, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 2}
	})

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/models", nil).Code)
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/api/models", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, srv.do(t, http.MethodGet, "/api/models", nil).Code)

	// /health 不限流
	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health", nil).Code)
}
