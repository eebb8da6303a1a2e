package session

import (
	"context"
	"errors"

	"yuzu/internal/model"
)

var (
	ErrInvalidTemperature = errors.New("temperature 必须在 0.0 到 2.0 之间")
	ErrInvalidMaxTokens   = errors.New("max_tokens 必须在 100 到 4000 之间")
	ErrInvalidTheme       = errors.New("theme 必须为 light 或 dark")
)

// Settings 当前用户设置
// 返回深拷贝，UpdateSettings 会原地修改内部的设置实体
func (s *Session) Settings() *model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// UpdateSettings 更新用户设置
// 校验参数边界；密钥变更会同步重新配置补全客户端
func (s *Session) UpdateSettings(ctx context.Context, req *model.UpdateSettingsRequest) error {
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return ErrInvalidTemperature
	}
	if req.MaxTokens != nil && (*req.MaxTokens < 100 || *req.MaxTokens > 4000) {
		return ErrInvalidMaxTokens
	}
	if req.Theme != nil && *req.Theme != "light" && *req.Theme != "dark" {
		return ErrInvalidTheme
	}

	if err := s.stores.Settings.Update(ctx, s.userID, req); err != nil {
		return err
	}

	s.mu.Lock()
	if s.settings != nil {
		if req.Model != nil {
			s.settings.Model = *req.Model
		}
		if req.Temperature != nil {
			s.settings.Temperature = *req.Temperature
		}
		if req.MaxTokens != nil {
			s.settings.MaxTokens = *req.MaxTokens
		}
		if req.Theme != nil {
			s.settings.Theme = *req.Theme
		}
		if req.APIKey != nil {
			s.settings.APIKey = *req.APIKey
		}
	}
	s.mu.Unlock()

	if req.APIKey != nil {
		s.completer.SetCredential(*req.APIKey)
	}
	return nil
}

// ValidateCredential 校验给定密钥
// 仅用于 UI 提示，结果不拦截设置保存
func (s *Session) ValidateCredential(ctx context.Context, key string) bool {
	return s.completer.ValidateCredential(ctx, key)
}
