// Package supabase 远端会话存储的 REST 客户端（PostgREST 风格接口）。
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kynor-backend/internal/config"
	"kynor-backend/internal/utils"
)

type Chat struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Error 远端返回非 2xx
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase error %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient 凭证不完整时返回 nil
func NewClient(cfg config.SupabaseConfig) *Client {
	if !cfg.Enabled() {
		return nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		httpClient: utils.NewHTTPClient(timeout),
	}
}

func (c *Client) FetchChats(ctx context.Context) ([]Chat, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("order", "updated_at.desc")

	var chats []Chat
	if err := c.do(ctx, http.MethodGet, "/rest/v1/chats", params, nil, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *Client) FetchMessages(ctx context.Context, chatID string) ([]Message, error) {
	params := url.Values{}
	params.Set("select", "*")
	params.Set("chat_id", "eq."+chatID)
	params.Set("order", "created_at.asc")

	var messages []Message
	if err := c.do(ctx, http.MethodGet, "/rest/v1/messages", params, nil, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateChat 重复 id 由服务端忽略
func (c *Client) CreateChat(ctx context.Context, id, title string) error {
	headers := map[string]string{"Prefer": "resolution=ignore-duplicates,return=representation"}
	return c.do(ctx, http.MethodPost, "/rest/v1/chats", nil, headers, Chat{ID: id, Title: title}, nil)
}

func (c *Client) UpdateChatTitle(ctx context.Context, id, title string) error {
	params := url.Values{}
	params.Set("id", "eq."+id)
	body := map[string]string{"title": title}
	return c.do(ctx, http.MethodPatch, "/rest/v1/chats", params, nil, body, nil)
}

func (c *Client) InsertMessage(ctx context.Context, msg Message) error {
	headers := map[string]string{"Prefer": "return=representation"}
	return c.do(ctx, http.MethodPost, "/rest/v1/messages", nil, headers, msg, nil)
}

// do 发送请求；响应为空或不是 JSON 时 out 保持不变
func (c *Client) do(ctx context.Context, method, path string, params url.Values, headers map[string]string, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
