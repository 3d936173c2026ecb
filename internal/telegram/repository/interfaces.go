package repository

import "context"

// SnapshotBackend 状态快照存储后端
// 写入总是整份覆盖，不做增量
type SnapshotBackend interface {
	// Load 读取最近一次快照，没有快照时返回 (nil, nil)
	Load(ctx context.Context) ([]byte, error)

	// Save 覆盖写入快照
	Save(ctx context.Context, data []byte) error

	// Name 后端名称（用于日志）
	Name() string
}
