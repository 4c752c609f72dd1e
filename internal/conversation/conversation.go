// Package conversation 定义会话集合及其纯函数式状态变更。
//
// Set 的所有操作都返回新的 Set，从不原地修改，已发布的快照可以被并发读取。
package conversation

import (
	"time"

	"kynor-backend/internal/ident"
)

// DefaultTitle 新会话的占位标题
const DefaultTitle = "New chat"

// TitleMaxRunes 首条用户消息生成标题时截取的长度
const TitleMaxRunes = 48

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 创建后不可变
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:        ident.New(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

type Chat struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// LastUserMessage 返回最近一条用户消息
func (c Chat) LastUserMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Set 有序会话集合，新会话在前；最多一个活跃会话
type Set struct {
	chats  []Chat
	active string
}

// FromChats 以给定顺序构造集合（历史加载使用），不选中任何会话
func FromChats(chats []Chat) Set {
	out := make([]Chat, 0, len(chats))
	seen := make(map[string]struct{}, len(chats))
	for _, c := range chats {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, cloneChat(c))
	}
	return Set{chats: out}
}

func (s Set) Len() int {
	return len(s.chats)
}

// Chats 返回集合的副本
func (s Set) Chats() []Chat {
	out := make([]Chat, len(s.chats))
	for i, c := range s.chats {
		out[i] = cloneChat(c)
	}
	return out
}

func (s Set) ActiveID() string {
	return s.active
}

func (s Set) Active() (Chat, bool) {
	if s.active == "" {
		return Chat{}, false
	}
	return s.Get(s.active)
}

func (s Set) Get(id string) (Chat, bool) {
	idx := s.index(id)
	if idx < 0 {
		return Chat{}, false
	}
	return cloneChat(s.chats[idx]), true
}

func (s Set) index(id string) int {
	for i, c := range s.chats {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// CreateChat 在最前面插入一个空会话并设为活跃
func (s Set) CreateChat() (Set, string) {
	id := ident.New()
	chats := make([]Chat, 0, len(s.chats)+1)
	chats = append(chats, Chat{ID: id, Title: DefaultTitle, Messages: []Message{}})
	chats = append(chats, s.chats...)
	return Set{chats: chats, active: id}, id
}

// AppendMessage 追加消息；chatID 不存在时先合成该会话。
// 标题仍为占位标题且消息来自用户时，同一操作内改写标题。
func (s Set) AppendMessage(chatID string, msg Message) Set {
	idx := s.index(chatID)
	if idx < 0 {
		chat := Chat{ID: chatID, Title: DefaultTitle, Messages: []Message{msg}}
		chat.Title = nextTitle(chat.Title, msg)

		chats := make([]Chat, 0, len(s.chats)+1)
		chats = append(chats, chat)
		chats = append(chats, s.chats...)

		active := s.active
		if active == "" {
			active = chatID
		}
		return Set{chats: chats, active: active}
	}

	chats := make([]Chat, len(s.chats))
	copy(chats, s.chats)

	old := chats[idx]
	messages := make([]Message, len(old.Messages), len(old.Messages)+1)
	copy(messages, old.Messages)
	messages = append(messages, msg)

	chats[idx] = Chat{ID: old.ID, Title: nextTitle(old.Title, msg), Messages: messages}
	return Set{chats: chats, active: s.active}
}

// SelectChat 设置活跃会话；不存在时原样返回
func (s Set) SelectChat(chatID string) Set {
	if s.index(chatID) < 0 {
		return s
	}
	return Set{chats: s.chats, active: chatID}
}

// Rename 显式重命名；不存在时原样返回
func (s Set) Rename(chatID, title string) Set {
	idx := s.index(chatID)
	if idx < 0 {
		return s
	}

	chats := make([]Chat, len(s.chats))
	copy(chats, s.chats)
	chats[idx] = Chat{ID: chats[idx].ID, Title: title, Messages: chats[idx].Messages}
	return Set{chats: chats, active: s.active}
}

// ClearAll 清空全部会话
func (s Set) ClearAll() Set {
	return Set{}
}

// TitleFor 由消息内容生成标题：前 48 个字符，内容为空时为占位标题
func TitleFor(content string) string {
	runes := []rune(content)
	if len(runes) > TitleMaxRunes {
		runes = runes[:TitleMaxRunes]
	}
	if len(runes) == 0 {
		return DefaultTitle
	}
	return string(runes)
}

func nextTitle(current string, msg Message) string {
	if current != DefaultTitle || msg.Role != RoleUser {
		return current
	}
	return TitleFor(msg.Content)
}

func cloneChat(c Chat) Chat {
	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)
	return Chat{ID: c.ID, Title: c.Title, Messages: messages}
}

// Restore 从持久化数据恢复集合，active 不存在时不选中
func Restore(chats []Chat, active string) Set {
	return FromChats(chats).SelectChat(active)
}
