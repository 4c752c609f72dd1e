package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kynor-backend/internal/config"
	"kynor-backend/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// FallbackModel 请求的模型不受支持或调用失败时使用的模型
	FallbackModel = "openai/gpt-oss-20b"
	// DefaultModel 默认请求的模型，不在白名单内，会被替换为 FallbackModel
	DefaultModel = "groq/compound"

	defaultTemperature float32 = 0.7

	// ExtraModelKey 适配器在 schema.Message.Extra 中回传接口实际使用的模型
	ExtraModelKey = "model"
)

var supportedModels = []string{
	"llama-3.1-8b-instant",
	"llama-3.3-70b-versatile",
	"openai/gpt-oss-20b",
	"openai/gpt-oss-120b",
}

// ErrNotConfigured 缺少补全接口密钥，不会发起任何网络请求
var ErrNotConfigured = errors.New("completion API key is missing on server")

// TransportError 网络或接口调用失败
type TransportError struct {
	Model string
	Err   error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Result 补全结果；FallbackFrom 非空表示发生过回退重试
type Result struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	FallbackFrom string `json:"fallback_from,omitempty"`
}

func (r *Result) Note() string {
	if r.FallbackFrom == "" {
		return ""
	}
	return "fallback from " + r.FallbackFrom
}

// SupportedModels 返回模型白名单
func SupportedModels() []string {
	out := make([]string, len(supportedModels))
	copy(out, supportedModels)
	return out
}

func IsSupported(model string) bool {
	for _, m := range supportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// Resolve 不在白名单内的模型直接替换为 FallbackModel
func Resolve(model string) string {
	if IsSupported(model) {
		return model
	}
	return FallbackModel
}

// ModelFactory 按模型 ID 创建底层 ChatModel
type ModelFactory func(ctx context.Context, modelID string) (einoModel.BaseChatModel, error)

type Option func(*Gateway)

// WithFactory 替换默认的 provider 工厂（测试使用）
func WithFactory(factory ModelFactory) Option {
	return func(g *Gateway) {
		g.factory = factory
	}
}

type Gateway struct {
	configured  bool
	temperature float32
	factory     ModelFactory

	mu     sync.Mutex
	models map[string]einoModel.BaseChatModel
}

func NewGateway(cfg config.CompletionConfig, opts ...Option) *Gateway {
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	g := &Gateway{
		configured:  cfg.APIKey != "",
		temperature: temperature,
		models:      make(map[string]einoModel.BaseChatModel),
	}
	g.factory = NewProviderFactory(cfg)

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Configured 是否配置了接口密钥
func (g *Gateway) Configured() bool {
	return g.configured
}

// Complete 最多两次调用：首选模型失败后仅对 FallbackModel 重试一次
func (g *Gateway) Complete(ctx context.Context, model string, messages []Message) (*Result, error) {
	if !g.configured {
		return nil, ErrNotConfigured
	}

	primary := Resolve(model)
	if primary != model {
		logger.Debugf("model %q not supported, using %s", model, primary)
	}

	content, used, err := g.generate(ctx, primary, messages)
	if err == nil {
		return &Result{Content: content, Model: used}, nil
	}

	if primary == FallbackModel {
		return nil, err
	}
	// 调用方已放弃请求，不再重试
	if ctx.Err() != nil {
		return nil, err
	}

	logger.Warnf("completion with %s failed, retrying with %s: %v", primary, FallbackModel, err)

	content, used, err = g.generate(ctx, FallbackModel, messages)
	if err != nil {
		return nil, err
	}

	return &Result{Content: content, Model: used, FallbackFrom: primary}, nil
}

func (g *Gateway) generate(ctx context.Context, modelID string, messages []Message) (string, string, error) {
	chatModel, err := g.model(ctx, modelID)
	if err != nil {
		return "", "", &TransportError{Model: modelID, Err: err}
	}

	resp, err := chatModel.Generate(ctx, toSchema(messages), einoModel.WithTemperature(g.temperature))
	if err != nil {
		return "", "", &TransportError{Model: modelID, Err: err}
	}
	if resp == nil {
		return "", "", &TransportError{Model: modelID, Err: fmt.Errorf("empty response from %s", modelID)}
	}

	used := modelID
	if reported, ok := resp.Extra[ExtraModelKey].(string); ok && reported != "" {
		used = reported
	}

	return resp.Content, used, nil
}

func (g *Gateway) model(ctx context.Context, modelID string) (einoModel.BaseChatModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if m, ok := g.models[modelID]; ok {
		return m, nil
	}

	m, err := g.factory(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("create chat model %s: %w", modelID, err)
	}
	g.models[modelID] = m
	return m, nil
}

func toSchema(messages []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}
