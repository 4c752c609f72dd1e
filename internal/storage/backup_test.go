package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kynor-backend/internal/conversation"
)

type countingStorage struct {
	*MemoryStorage
	backups atomic.Int32
	err     error
}

func (c *countingStorage) Backup() error {
	c.backups.Add(1)
	return c.err
}

func TestRunBackups_TicksUntilCancelled(t *testing.T) {
	store := &countingStorage{MemoryStorage: NewMemoryStorage(), err: errors.New("disk full")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunBackups(ctx, store, 5*time.Millisecond)
		close(done)
	}()

	// 备份失败只记录日志，循环继续
	assert.Eventually(t, func() bool { return store.backups.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunBackups did not stop after cancel")
	}
}

func TestRunBackups_DisabledInterval(t *testing.T) {
	store := &countingStorage{MemoryStorage: NewMemoryStorage()}

	// 不会阻塞
	RunBackups(context.Background(), store, 0)
	assert.Equal(t, int32(0), store.backups.Load())
}

func TestRunBackups_WritesDiskSnapshot(t *testing.T) {
	dir := t.TempDir()
	d := NewDiskStorage(dir)
	require.NoError(t, d.Init())
	id := createChat(t, d)
	appendMessage(t, d, id, conversation.RoleUser, "keep me")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunBackups(ctx, d, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		matches, _ := filepath.Glob(filepath.Join(dir, "backup", "backup_*", "messages", id+".json"))
		return len(matches) > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	entries, err := os.ReadDir(filepath.Join(dir, "backup"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
