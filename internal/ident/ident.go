// Package ident 生成会话与消息使用的 UUID v4 标识
package ident

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	weakMu  sync.Mutex
	weakRnd = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// weakReader 在 crypto/rand 不可用时提供伪随机字节
type weakReader struct{}

func (weakReader) Read(p []byte) (int, error) {
	weakMu.Lock()
	defer weakMu.Unlock()
	return weakRnd.Read(p)
}

// New 返回 8-4-4-4-12 格式的随机标识，不会失败
func New() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// 版本位与变体位由 uuid 库强制设置
		id, _ = uuid.NewRandomFromReader(weakReader{})
	}
	return id.String()
}
