package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"yuzu/internal/model"
)

// MessageRepo 消息仓库
type MessageRepo struct {
	collection *mongo.Collection
}

// NewMessageRepo 创建消息仓库
func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{
		collection: db.Collection("messages"),
	}
}

// Insert 写入消息
// CreatedAt 已由调用方设置（内存列表与持久化顺序保持一致）
func (r *MessageRepo) Insert(ctx context.Context, msg *model.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, msg)
	return err
}

// ListByChatID 查询对话消息（按创建时间正序）
func (r *MessageRepo) ListByChatID(ctx context.Context, chatID string) ([]*model.Message, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []*model.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}

	return msgs, nil
}
