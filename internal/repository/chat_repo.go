package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"yuzu/internal/model"
)

// ChatRepo 对话仓库
// 使用UUID作为ID，无需ObjectID转换
type ChatRepo struct {
	collection *mongo.Collection
	messages   *mongo.Collection
}

// NewChatRepo 创建对话仓库
func NewChatRepo(db *mongo.Database) *ChatRepo {
	return &ChatRepo{
		collection: db.Collection("chats"),
		messages:   db.Collection("messages"),
	}
}

// Create 创建对话
func (r *ChatRepo) Create(ctx context.Context, chat *model.Chat) error {
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, chat)
	return err
}

// ListByUserID 查询用户对话列表（按更新时间倒序）
func (r *ChatRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Chat, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "updated_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chats []*model.Chat
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}

	return chats, nil
}

// UpdateTitle 更新对话标题
func (r *ChatRepo) UpdateTitle(ctx context.Context, id, title string) error {
	update := bson.M{
		"$set": bson.M{
			"title":      title,
			"updated_at": time.Now(),
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// Touch 更新对话的更新时间（有新消息写入时）
func (r *ChatRepo) Touch(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{"updated_at": time.Now()}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// Delete 删除对话及其全部消息
func (r *ChatRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.messages.DeleteMany(ctx, bson.M{"chat_id": id}); err != nil {
		return err
	}
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
