package completion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kynor-backend/internal/config"
	"kynor-backend/internal/utils"
	"kynor-backend/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
)

const (
	ProviderOpenAI = "openai"
	ProviderQwen   = "qwen"
	ProviderArk    = "ark"

	// DefaultBaseURL Groq 的 OpenAI 兼容接口
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	defaultQwenBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// NewProviderFactory 根据配置的 provider 返回模型工厂
func NewProviderFactory(cfg config.CompletionConfig) ModelFactory {
	httpClient := utils.NewHTTPClient(cfg.Timeout)
	httpClient.Transport = NewDebugTransport(httpClient.Transport, cfg.DebugRequest)

	switch cfg.Provider {
	case ProviderQwen:
		return func(ctx context.Context, modelID string) (einoModel.BaseChatModel, error) {
			return createQwenModel(ctx, cfg, httpClient, modelID)
		}
	case ProviderArk:
		return func(ctx context.Context, modelID string) (einoModel.BaseChatModel, error) {
			return createArkModel(ctx, cfg, modelID)
		}
	default:
		return func(ctx context.Context, modelID string) (einoModel.BaseChatModel, error) {
			return newOpenAIChatModel(cfg, httpClient, modelID), nil
		}
	}
}

func createQwenModel(ctx context.Context, cfg config.CompletionConfig, httpClient *http.Client, modelID string) (einoModel.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultQwenBaseURL
	}
	temperature := cfg.Temperature

	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     baseURL,
		APIKey:      cfg.APIKey,
		Model:       modelID,
		Temperature: &temperature,
		Timeout:     cfg.Timeout,
		HTTPClient:  httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("create qwen model: %w", err)
	}
	return chatModel, nil
}

func createArkModel(ctx context.Context, cfg config.CompletionConfig, modelID string) (einoModel.BaseChatModel, error) {
	temperature := cfg.Temperature
	timeout := cfg.Timeout

	arkCfg := &ark.ChatModelConfig{
		APIKey:      cfg.APIKey,
		Model:       modelID,
		Temperature: &temperature,
		Timeout:     &timeout,
	}
	if cfg.BaseURL != "" {
		arkCfg.BaseURL = cfg.BaseURL
	}

	chatModel, err := ark.NewChatModel(ctx, arkCfg)
	if err != nil {
		return nil, fmt.Errorf("create ark model: %w", err)
	}
	return chatModel, nil
}

// DebugTransport 在 debug_request 打开时记录请求，敏感请求头会被隐藏
type DebugTransport struct {
	base    http.RoundTripper
	enabled bool
}

func NewDebugTransport(base http.RoundTripper, enabled bool) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base, enabled: enabled}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.enabled {
		return t.base.RoundTrip(req)
	}

	start := time.Now()
	t.logRequest(req)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		logger.Errorf("[completion debug] %s %s failed: %v", req.Method, req.URL, err)
		return nil, err
	}

	logger.Debugf("[completion debug] %s %s -> %d (%s)", req.Method, req.URL, resp.StatusCode, time.Since(start))
	return resp, nil
}

func (t *DebugTransport) logRequest(req *http.Request) {
	headers := make([]string, 0, len(req.Header))
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			headers = append(headers, name+": [REDACTED]")
			continue
		}
		headers = append(headers, name+": "+strings.Join(values, ", "))
	}

	size := 0
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			logger.Errorf("[completion debug] read request body: %v", err)
			return
		}
		// 恢复请求体，以免影响实际请求
		req.Body = io.NopCloser(bytes.NewReader(body))
		size = len(body)
	}

	logger.Debugf("[completion debug] %s %s headers=[%s] body=%d bytes",
		req.Method, req.URL, strings.Join(headers, "; "), size)
}

func isSensitiveHeader(name string) bool {
	for _, sensitive := range []string{"authorization", "x-api-key", "api-key", "apikey", "cookie"} {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
