package storage

import (
	"kynor-backend/internal/conversation"
)

// Storage 持有当前的会话集合。Update 整体替换集合（写时复制），
// Snapshot 返回的集合不可变，可被任意 goroutine 读取。
type Storage interface {
	Snapshot() conversation.Set
	// Update 总是返回新的集合；error 只表示本地持久化失败，内存状态已经更新
	Update(fn func(conversation.Set) conversation.Set) (conversation.Set, error)

	// 存储管理
	Init() error
	Close() error
	Backup() error
}

// New 按类型创建存储，未知类型使用内存存储
func New(storageType, dataDir string) Storage {
	switch storageType {
	case "disk":
		return NewDiskStorage(dataDir)
	case "sqlite":
		return NewSQLiteStorage(dataDir)
	default:
		return NewMemoryStorage()
	}
}
