package mirror

import (
	"context"
	"sync"

	"kynor-backend/internal/conversation"
	"kynor-backend/internal/supabase"
	"kynor-backend/pkg/logger"
)

const DefaultQueueSize = 256

type job struct {
	op  string
	run func(ctx context.Context) error
}

// AsyncMirror 单 worker 队列；队列满时丢弃任务并记录日志，从不阻塞调用方
type AsyncMirror struct {
	remote Remote
	jobs   chan job

	mu     sync.Mutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewAsync(remote Remote, queueSize int) *AsyncMirror {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &AsyncMirror{
		remote: remote,
		jobs:   make(chan job, queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.worker()
	return m
}

func (m *AsyncMirror) worker() {
	defer close(m.done)

	for j := range m.jobs {
		if err := j.run(m.ctx); err != nil {
			logger.WithFields(map[string]interface{}{
				"op": j.op,
			}).Warnf("Mirror failed: %v", err)
		}
	}
}

func (m *AsyncMirror) enqueue(j job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		logger.Debugf("Mirror closed, dropping %s", j.op)
		return
	}

	select {
	case m.jobs <- j:
	default:
		logger.Warnf("Mirror queue full, dropping %s", j.op)
	}
}

func (m *AsyncMirror) MirrorChatCreate(chatID, title string) {
	m.enqueue(job{op: "create_chat", run: func(ctx context.Context) error {
		return m.remote.CreateChat(ctx, chatID, title)
	}})
}

func (m *AsyncMirror) MirrorMessage(chatID string, role conversation.Role, content, messageID string) {
	m.enqueue(job{op: "insert_message", run: func(ctx context.Context) error {
		return m.remote.InsertMessage(ctx, toRemoteMessage(chatID, role, content, messageID))
	}})
}

func (m *AsyncMirror) MirrorTitle(chatID, title string) {
	m.enqueue(job{op: "update_title", run: func(ctx context.Context) error {
		return m.remote.UpdateChatTitle(ctx, chatID, title)
	}})
}

func (m *AsyncMirror) Persist(chatID, title string, msg conversation.Message, updateTitle bool) {
	if title == "" {
		title = conversation.DefaultTitle
	}

	m.enqueue(job{op: "persist", run: func(ctx context.Context) error {
		if err := m.remote.CreateChat(ctx, chatID, title); err != nil {
			return err
		}
		if err := m.remote.InsertMessage(ctx, toRemoteMessage(chatID, msg.Role, msg.Content, msg.ID)); err != nil {
			return err
		}
		if !updateTitle {
			return nil
		}
		return m.remote.UpdateChatTitle(ctx, chatID, title)
	}})
}

func (m *AsyncMirror) LoadHistory(ctx context.Context) ([]conversation.Chat, error) {
	return loadHistory(ctx, m.remote)
}

func (m *AsyncMirror) Enabled() bool {
	return true
}

// Close 停止接收新任务并等待队列清空；ctx 到期时取消剩余请求后返回
func (m *AsyncMirror) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		return ctx.Err()
	}
}

func toRemoteMessage(chatID string, role conversation.Role, content, messageID string) supabase.Message {
	return supabase.Message{
		ID:      messageID,
		ChatID:  chatID,
		Role:    string(role),
		Content: content,
	}
}
