package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// snapshotCollection 状态快照集合名
const snapshotCollection = "state_snapshots"

// defaultSnapshotID 单实例部署使用的快照文档 ID
const defaultSnapshotID = "publisher_state"

// snapshotDocument 快照文档
type snapshotDocument struct {
	ID        string    `bson:"_id"`
	Data      string    `bson:"data"` // 与文件后端相同的 JSON 文档
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoSnapshotBackend MongoDB 后端，整份快照存为一个文档
type MongoSnapshotBackend struct {
	collection *mongo.Collection
	id         string
}

// NewMongoSnapshotBackend 创建 MongoDB 快照后端
func NewMongoSnapshotBackend(db *mongo.Database) *MongoSnapshotBackend {
	return &MongoSnapshotBackend{
		collection: db.Collection(snapshotCollection),
		id:         defaultSnapshotID,
	}
}

func (b *MongoSnapshotBackend) Name() string {
	return "mongo:" + snapshotCollection
}

// Load 读取快照文档，不存在时返回 (nil, nil)
func (b *MongoSnapshotBackend) Load(ctx context.Context) ([]byte, error) {
	var doc snapshotDocument
	err := b.collection.FindOne(ctx, bson.M{"_id": b.id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state snapshot: %w", err)
	}
	return []byte(doc.Data), nil
}

// Save 以 upsert 方式整份替换快照文档
func (b *MongoSnapshotBackend) Save(ctx context.Context, data []byte) error {
	doc := snapshotDocument{
		ID:        b.id,
		Data:      string(data),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := b.collection.ReplaceOne(ctx, bson.M{"_id": b.id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save state snapshot: %w", err)
	}
	return nil
}
