package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"publisher_bot/internal/logger"
)

// FileSnapshotBackend 本地 JSON 文件后端
// 先写临时文件再 rename，保证文件始终是完整快照
type FileSnapshotBackend struct {
	path string
}

// NewFileSnapshotBackend 创建文件后端；目录不可写时回落到系统临时目录
func NewFileSnapshotBackend(path string) *FileSnapshotBackend {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fallback := filepath.Join(os.TempDir(), filepath.Base(path))
		logger.L().Warnf("State directory %s is not writable (%v), falling back to %s", dir, err, fallback)
		path = fallback
	}
	return &FileSnapshotBackend{path: path}
}

// Path 返回实际使用的文件路径
func (b *FileSnapshotBackend) Path() string {
	return b.path
}

func (b *FileSnapshotBackend) Name() string {
	return "file:" + b.path
}

// Load 读取文件，不存在时返回 (nil, nil)
func (b *FileSnapshotBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return data, nil
}

// Save 原子覆盖写入
func (b *FileSnapshotBackend) Save(ctx context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
