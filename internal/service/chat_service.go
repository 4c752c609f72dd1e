package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"kynor-backend/internal/completion"
	"kynor-backend/internal/config"
	"kynor-backend/internal/content"
	"kynor-backend/internal/conversation"
	"kynor-backend/internal/ident"
	"kynor-backend/internal/mirror"
	"kynor-backend/internal/storage"
	"kynor-backend/pkg/logger"
)

// NoResponse 模型返回空内容时的占位文本
const NoResponse = "(no response)"

const maxTitleLength = 200

var (
	ErrChatNotFound  = errors.New("chat not found")
	ErrNoUserMessage = errors.New("chat has no user message to regenerate")
)

// Completer 补全网关
type Completer interface {
	Complete(ctx context.Context, model string, messages []completion.Message) (*completion.Result, error)
}

type SendRequest struct {
	// ChatID 为空时使用活跃会话，仍为空则新建
	ChatID       string
	Text         string
	Model        string
	ContentMaker bool
	ContentType  string
}

type RegenerateRequest struct {
	ChatID       string
	Model        string
	ContentMaker bool
	ContentType  string
}

type SendResult struct {
	ChatID      string
	UserMessage conversation.Message
	Message     conversation.Message
	Model       string
	Note        string
	// Document 仅在内容生成模式且请求成功时返回
	Document *content.Document
	Failed   bool
}

type ChatService struct {
	store   storage.Storage
	mirror  mirror.Mirror
	gateway Completer
	prompt  *content.Prompt

	defaultModel       string
	defaultContentType string
}

func NewChatService(cfg *config.Config, store storage.Storage, m mirror.Mirror, gateway Completer) *ChatService {
	defaultModel := cfg.Completion.DefaultModel
	if defaultModel == "" {
		defaultModel = completion.DefaultModel
	}
	defaultType := cfg.Content.DefaultType
	if defaultType == "" {
		defaultType = content.DefaultType
	}

	return &ChatService{
		store:              store,
		mirror:             m,
		gateway:            gateway,
		prompt:             content.NewPrompt(),
		defaultModel:       defaultModel,
		defaultContentType: defaultType,
	}
}

// update 本地持久化失败只记日志，内存中的集合已经更新
func (s *ChatService) update(fn func(conversation.Set) conversation.Set) conversation.Set {
	set, err := s.store.Update(fn)
	if err != nil {
		logger.Errorf("Failed to persist conversation set: %v", err)
	}
	return set
}

// Bootstrap 本地为空且启用镜像时加载远端历史；之后仍为空则新建会话
func (s *ChatService) Bootstrap(ctx context.Context) {
	if s.mirror.Enabled() && s.store.Snapshot().Len() == 0 {
		chats, err := s.mirror.LoadHistory(ctx)
		if err != nil {
			logger.Warnf("Failed to load remote history: %v", err)
		} else if len(chats) > 0 {
			s.update(func(set conversation.Set) conversation.Set {
				if set.Len() > 0 {
					return set
				}
				return conversation.FromChats(chats)
			})
			logger.Infof("Loaded %d chats from remote store", len(chats))
		}
	}

	s.update(func(set conversation.Set) conversation.Set {
		if set.Len() == 0 {
			next, _ := set.CreateChat()
			return next
		}
		if set.ActiveID() == "" {
			return set.SelectChat(set.Chats()[0].ID)
		}
		return set
	})
}

func (s *ChatService) Snapshot() conversation.Set {
	return s.store.Snapshot()
}

func (s *ChatService) GetChat(chatID string) (conversation.Chat, error) {
	chat, ok := s.store.Snapshot().Get(chatID)
	if !ok {
		return conversation.Chat{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	return chat, nil
}

func (s *ChatService) ActiveChat() (conversation.Chat, bool) {
	return s.store.Snapshot().Active()
}

// NewChat 只在本地创建，远端记录在第一条消息时创建
func (s *ChatService) NewChat() conversation.Chat {
	var id string
	set := s.update(func(set conversation.Set) conversation.Set {
		next, created := set.CreateChat()
		id = created
		return next
	})
	chat, _ := set.Get(id)
	return chat
}

func (s *ChatService) SelectChat(chatID string) (conversation.Chat, error) {
	set := s.update(func(set conversation.Set) conversation.Set {
		return set.SelectChat(chatID)
	})
	if set.ActiveID() != chatID {
		return conversation.Chat{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	chat, _ := set.Get(chatID)
	return chat, nil
}

// ClearAll 只清空本地，远端记录保留
func (s *ChatService) ClearAll() {
	s.update(func(set conversation.Set) conversation.Set {
		return set.ClearAll()
	})
	logger.Info("All local chats cleared")
}

func (s *ChatService) RenameChat(chatID, title string) (conversation.Chat, error) {
	title = strings.TrimSpace(title)
	err := validation.Validate(title,
		validation.Required,
		validation.RuneLength(1, maxTitleLength),
	)
	if err != nil {
		return conversation.Chat{}, validation.Errors{"title": err}
	}

	before, ok := s.store.Snapshot().Get(chatID)
	if !ok {
		return conversation.Chat{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}

	set := s.update(func(set conversation.Set) conversation.Set {
		return set.Rename(chatID, title)
	})
	chat, ok := set.Get(chatID)
	if !ok {
		return conversation.Chat{}, fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}

	if before.Title != chat.Title {
		s.mirror.MirrorTitle(chatID, chat.Title)
	}
	return chat, nil
}

func (s *ChatService) validateSend(req *SendRequest) error {
	req.Text = strings.TrimSpace(req.Text)
	if req.ContentType == "" {
		req.ContentType = s.defaultContentType
	}

	return validation.ValidateStruct(req,
		validation.Field(&req.ChatID, is.UUID),
		validation.Field(&req.Text, validation.Required),
		validation.Field(&req.ContentType, validation.When(req.ContentMaker, validation.In(contentTypes()...))),
	)
}

func contentTypes() []interface{} {
	types := content.Types()
	out := make([]interface{}, len(types))
	for i, t := range types {
		out[i] = t
	}
	return out
}

// Send 追加用户消息，调用模型，再追加助手消息。
// 模型调用失败不会返回错误，错误文本作为助手消息写入会话。
func (s *ChatService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := s.validateSend(&req); err != nil {
		return nil, err
	}

	chatID := req.ChatID
	if chatID == "" {
		if active, ok := s.store.Snapshot().Active(); ok {
			chatID = active.ID
		} else {
			chatID = ident.New()
		}
	}

	userMsg := conversation.NewMessage(conversation.RoleUser, req.Text)

	prevTitle := conversation.DefaultTitle
	set := s.update(func(set conversation.Set) conversation.Set {
		if chat, ok := set.Get(chatID); ok {
			prevTitle = chat.Title
		}
		return set.AppendMessage(chatID, userMsg)
	})
	chat, _ := set.Get(chatID)

	s.mirror.Persist(chatID, chat.Title, userMsg, chat.Title != prevTitle)

	messages, err := s.buildMessages(ctx, chat, req)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	result := &SendResult{ChatID: chatID, UserMessage: userMsg}

	var reply string
	resp, err := s.gateway.Complete(ctx, model, messages)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"chat_id": chatID,
			"model":   model,
		}).Warnf("Completion failed: %v", err)
		reply = err.Error()
		result.Failed = true
	} else {
		raw := resp.Content
		if raw == "" {
			raw = NoResponse
		}
		reply = raw
		if req.ContentMaker {
			reply = content.FormatResponse(raw)
			result.Document = stageDocument(raw, reply)
		}
		result.Model = resp.Model
		result.Note = resp.Note()
	}

	assistantMsg := conversation.NewMessage(conversation.RoleAssistant, reply)
	set = s.update(func(set conversation.Set) conversation.Set {
		return set.AppendMessage(chatID, assistantMsg)
	})
	chat, _ = set.Get(chatID)

	s.mirror.Persist(chatID, chat.Title, assistantMsg, false)

	result.Message = assistantMsg
	return result, nil
}

// Regenerate 以最近一条用户消息重新发送，是一次独立的新请求
func (s *ChatService) Regenerate(ctx context.Context, req RegenerateRequest) (*SendResult, error) {
	if err := validation.ValidateStruct(&req, validation.Field(&req.ChatID, is.UUID)); err != nil {
		return nil, err
	}

	chatID := req.ChatID
	if chatID == "" {
		active, ok := s.store.Snapshot().Active()
		if !ok {
			return nil, ErrChatNotFound
		}
		chatID = active.ID
	}

	chat, err := s.GetChat(chatID)
	if err != nil {
		return nil, err
	}

	last, ok := chat.LastUserMessage()
	if !ok {
		return nil, ErrNoUserMessage
	}

	return s.Send(ctx, SendRequest{
		ChatID:       chatID,
		Text:         last.Content,
		Model:        req.Model,
		ContentMaker: req.ContentMaker,
		ContentType:  req.ContentType,
	})
}

// buildMessages 普通模式发送整段对话；内容生成模式只发送一条系统提示
func (s *ChatService) buildMessages(ctx context.Context, chat conversation.Chat, req SendRequest) ([]completion.Message, error) {
	if req.ContentMaker {
		msgs, err := s.prompt.Build(ctx, req.ContentType, req.Text)
		if err != nil {
			return nil, err
		}
		out := make([]completion.Message, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, completion.Message{Role: completion.Role(m.Role), Content: m.Content})
		}
		return out, nil
	}

	out := make([]completion.Message, 0, len(chat.Messages))
	for _, m := range chat.Messages {
		role := completion.RoleUser
		if m.Role == conversation.RoleAssistant {
			role = completion.RoleAssistant
		}
		out = append(out, completion.Message{Role: role, Content: m.Content})
	}
	return out, nil
}

// stageDocument 优先解析原始输出，其次解析格式化后的文本，都失败时返回空文档
func stageDocument(raw, formatted string) *content.Document {
	if doc := content.Parse(raw); doc != nil {
		return doc
	}
	if doc := content.Parse(formatted); doc != nil {
		return doc
	}
	return &content.Document{}
}
