package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"yuzu/internal/model"
)

// PersonalityRepo 人格仓库
type PersonalityRepo struct {
	collection *mongo.Collection
}

// NewPersonalityRepo 创建人格仓库
func NewPersonalityRepo(db *mongo.Database) *PersonalityRepo {
	return &PersonalityRepo{
		collection: db.Collection("personalities"),
	}
}

// Create 创建人格
func (r *PersonalityRepo) Create(ctx context.Context, p *model.Personality) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, p)
	return err
}

// ListByUserID 查询用户人格列表（按创建时间倒序）
func (r *PersonalityRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Personality, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ps []*model.Personality
	if err := cursor.All(ctx, &ps); err != nil {
		return nil, err
	}

	return ps, nil
}

// Update 更新人格字段（只更新请求中提供的字段）
func (r *PersonalityRepo) Update(ctx context.Context, id string, req *model.UpdatePersonalityRequest) error {
	set := bson.M{"updated_at": time.Now()}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Prompt != nil {
		set["prompt"] = *req.Prompt
	}
	if req.HasMemory != nil {
		set["has_memory"] = *req.HasMemory
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// Activate 激活指定人格
// 先取消该用户全部人格的激活状态，再激活目标，保证同一用户
// 至多一个 is_active=true
func (r *PersonalityRepo) Activate(ctx context.Context, userID, id string) error {
	now := time.Now()

	_, err := r.collection.UpdateMany(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": now}},
	)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_active": true, "updated_at": now}},
	)
	return err
}

// Delete 删除人格
func (r *PersonalityRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
