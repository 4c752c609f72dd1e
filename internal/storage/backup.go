package storage

import (
	"context"
	"time"

	"kynor-backend/pkg/logger"
)

// RunBackups 每隔 interval 调用一次 Backup，直到 ctx 结束；interval <= 0 时直接返回
func RunBackups(ctx context.Context, store Storage, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Backup(); err != nil {
				logger.Errorf("Scheduled backup failed: %v", err)
			}
		}
	}
}
