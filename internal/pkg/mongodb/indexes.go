package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes 创建所有集合的索引
// 统一入口，在应用启动时调用
func EnsureIndexes(db *mongo.Database) error {
	ctx := context.Background()

	// chats 集合索引：按用户查询，按更新时间倒序排列
	chatColl := db.Collection("chats")
	chatIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_user_updated"),
		},
	}
	if err := CreateIndexes(ctx, chatColl, chatIndexes); err != nil {
		return err
	}

	// messages 集合索引：按对话查询，按创建时间正序排列
	msgColl := db.Collection("messages")
	msgIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "chat_id", Value: 1}, bson.E{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_chat_created"),
		},
	}
	if err := CreateIndexes(ctx, msgColl, msgIndexes); err != nil {
		return err
	}

	// personalities 集合索引：按用户查询，按创建时间倒序排列
	personaColl := db.Collection("personalities")
	personaIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_user_created"),
		},
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}, bson.E{Key: "is_active", Value: 1}},
			Options: options.Index().SetName("idx_user_active"),
		},
	}
	if err := CreateIndexes(ctx, personaColl, personaIndexes); err != nil {
		return err
	}

	// user_settings 集合索引：每个用户恰好一条记录
	settingsColl := db.Collection("user_settings")
	settingsIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_user_id").SetUnique(true),
		},
	}
	if err := CreateIndexes(ctx, settingsColl, settingsIndexes); err != nil {
		return err
	}

	// users 集合索引
	userColl := db.Collection("users")
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "username", Value: 1}},
			Options: options.Index().SetName("idx_username").SetUnique(true),
		},
		{
			Keys:    bson.D{bson.E{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_email").SetUnique(true),
		},
	}
	if err := CreateIndexes(ctx, userColl, userIndexes); err != nil {
		return err
	}

	// refresh_tokens 集合索引
	refreshTokenColl := db.Collection("refresh_tokens")
	refreshTokenIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_user_id"),
		},
		{
			Keys:    bson.D{bson.E{Key: "token", Value: 1}},
			Options: options.Index().SetName("idx_token").SetUnique(true),
		},
		{
			Keys:    bson.D{bson.E{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_expires_at").SetExpireAfterSeconds(0), // TTL索引，自动删除过期token
		},
	}
	if err := CreateIndexes(ctx, refreshTokenColl, refreshTokenIndexes); err != nil {
		return err
	}

	return nil
}

// CreateIndexes 辅助函数：创建索引
func CreateIndexes(ctx context.Context, coll *mongo.Collection, indexes []mongo.IndexModel) error {
	if len(indexes) == 0 {
		return nil
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
