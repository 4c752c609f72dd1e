// Package mirror 把本地会话变更尽力同步到远端存储。
//
// 所有写操作都只是入队，由单个后台 worker 顺序执行；失败只记日志，不重试，不影响调用方。
package mirror

import (
	"context"
	"time"

	"kynor-backend/internal/conversation"
	"kynor-backend/internal/supabase"
)

type Mirror interface {
	MirrorChatCreate(chatID, title string)
	MirrorMessage(chatID string, role conversation.Role, content, messageID string)
	MirrorTitle(chatID, title string)
	// Persist 依次执行 建会话 -> 写消息 -> 更新标题(updateTitle 时)，任一步失败即停止
	Persist(chatID, title string, msg conversation.Message, updateTitle bool)

	LoadHistory(ctx context.Context) ([]conversation.Chat, error)
	Enabled() bool
	Close(ctx context.Context) error
}

// Remote 远端存储需要提供的操作
type Remote interface {
	CreateChat(ctx context.Context, id, title string) error
	UpdateChatTitle(ctx context.Context, id, title string) error
	InsertMessage(ctx context.Context, msg supabase.Message) error
	FetchChats(ctx context.Context) ([]supabase.Chat, error)
	FetchMessages(ctx context.Context, chatID string) ([]supabase.Message, error)
}

// New 未配置远端时返回空实现
func New(client *supabase.Client) Mirror {
	if client == nil {
		return Noop{}
	}
	return NewAsync(client, DefaultQueueSize)
}

// Noop 远端未配置
type Noop struct{}

func (Noop) MirrorChatCreate(string, string)                          {}
func (Noop) MirrorMessage(string, conversation.Role, string, string)  {}
func (Noop) MirrorTitle(string, string)                               {}
func (Noop) Persist(string, string, conversation.Message, bool)       {}
func (Noop) LoadHistory(context.Context) ([]conversation.Chat, error) { return nil, nil }
func (Noop) Enabled() bool                                            { return false }
func (Noop) Close(context.Context) error                              { return nil }

// loadHistory 拉取全部会话及其消息；会话按远端 updated_at 倒序
func loadHistory(ctx context.Context, remote Remote) ([]conversation.Chat, error) {
	remoteChats, err := remote.FetchChats(ctx)
	if err != nil {
		return nil, err
	}

	chats := make([]conversation.Chat, 0, len(remoteChats))
	for _, rc := range remoteChats {
		remoteMessages, err := remote.FetchMessages(ctx, rc.ID)
		if err != nil {
			return nil, err
		}

		messages := make([]conversation.Message, 0, len(remoteMessages))
		for _, rm := range remoteMessages {
			messages = append(messages, conversation.Message{
				ID:        rm.ID,
				Role:      conversation.Role(rm.Role),
				Content:   rm.Content,
				CreatedAt: parseTimestamp(rm.CreatedAt),
			})
		}

		chats = append(chats, conversation.Chat{ID: rc.ID, Title: rc.Title, Messages: messages})
	}
	return chats, nil
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
