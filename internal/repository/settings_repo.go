package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"yuzu/internal/config"
	"yuzu/internal/model"
	"yuzu/internal/pkg/cache"
	"yuzu/internal/pkg/id"
	"yuzu/internal/pkg/keycrypt"
)

// SettingsRepo 用户设置仓库
// APIKey 在本层完成混淆/还原，库内和缓存内只出现混淆后的形式
type SettingsRepo struct {
	collection *mongo.Collection
	cache      *cache.RedisCache // 可选
	defaults   config.ChatConfig
}

// NewSettingsRepo 创建用户设置仓库
func NewSettingsRepo(db *mongo.Database, redisCache *cache.RedisCache, defaults config.ChatConfig) *SettingsRepo {
	return &SettingsRepo{
		collection: db.Collection("user_settings"),
		cache:      redisCache,
		defaults:   defaults,
	}
}

// FindOrCreateByUserID 查询用户设置，不存在时按默认值懒创建
func (r *SettingsRepo) FindOrCreateByUserID(ctx context.Context, userID string) (*model.Settings, error) {
	// 先查缓存
	if r.cache != nil {
		var cached model.Settings
		if err := r.cache.Get(ctx, cache.SettingsCacheKey(userID), &cached); err == nil {
			cached.APIKey = keycrypt.Decode(cached.APIKey)
			return &cached, nil
		}
	}

	var settings model.Settings
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		now := time.Now()
		settings = model.Settings{
			ID:          id.New(),
			UserID:      userID,
			Model:       r.defaults.DefaultModel,
			Temperature: r.defaults.DefaultTemperature,
			MaxTokens:   r.defaults.DefaultMaxTokens,
			Theme:       r.defaults.DefaultTheme,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := r.collection.InsertOne(ctx, &settings); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	r.cacheSet(ctx, userID, &settings)

	settings.APIKey = keycrypt.Decode(settings.APIKey)
	return &settings, nil
}

// Update 更新用户设置（只更新请求中提供的字段）
// APIKey 为明文，本层负责混淆
func (r *SettingsRepo) Update(ctx context.Context, userID string, req *model.UpdateSettingsRequest) error {
	set := bson.M{"updated_at": time.Now()}
	if req.Model != nil {
		set["model"] = *req.Model
	}
	if req.Temperature != nil {
		set["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		set["max_tokens"] = *req.MaxTokens
	}
	if req.Theme != nil {
		set["theme"] = *req.Theme
	}
	if req.APIKey != nil {
		set["api_key"] = keycrypt.Encode(*req.APIKey)
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return err
	}

	if r.cache != nil {
		if err := r.cache.Delete(ctx, cache.SettingsCacheKey(userID)); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to invalidate settings cache")
		}
	}
	return nil
}

// cacheSet 写入缓存（混淆后的形式）
func (r *SettingsRepo) cacheSet(ctx context.Context, userID string, settings *model.Settings) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, cache.SettingsCacheKey(userID), settings, cache.SettingsCacheTTL); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache settings")
	}
}
