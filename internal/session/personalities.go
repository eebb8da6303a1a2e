package session

import (
	"context"
	"time"

	"yuzu/internal/model"
	"yuzu/internal/pkg/id"
)

// CreatePersonality 创建人格（默认未激活）
func (s *Session) CreatePersonality(ctx context.Context, name, prompt string) (*model.Personality, error) {
	now := time.Now()
	p := &model.Personality{
		ID:        id.New(),
		UserID:    s.userID,
		Name:      name,
		Prompt:    prompt,
		IsActive:  false,
		HasMemory: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.stores.Personalities.Create(ctx, p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.personalities = append([]*model.Personality{p}, s.personalities...)
	s.mu.Unlock()

	return p.Clone(), nil
}

// UpdatePersonality 更新人格
// 记忆开关只影响之后组装的 prompt，已经发出的轮次不受影响
func (s *Session) UpdatePersonality(ctx context.Context, personalityID string, req *model.UpdatePersonalityRequest) error {
	if err := s.stores.Personalities.Update(ctx, personalityID, req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.personalities {
		if p.ID != personalityID {
			continue
		}
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Prompt != nil {
			p.Prompt = *req.Prompt
		}
		if req.HasMemory != nil {
			p.HasMemory = *req.HasMemory
		}
		p.UpdatedAt = time.Now()
		break
	}
	return nil
}

// DeletePersonality 删除人格
func (s *Session) DeletePersonality(ctx context.Context, personalityID string) error {
	if err := s.stores.Personalities.Delete(ctx, personalityID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.personalities {
		if p.ID == personalityID {
			s.personalities = append(s.personalities[:i], s.personalities[i+1:]...)
			break
		}
	}
	if s.active != nil && s.active.ID == personalityID {
		s.active = nil
	}
	return nil
}

// SetActivePersonality 激活人格
// 互斥激活：同一用户至多一个激活的人格
func (s *Session) SetActivePersonality(ctx context.Context, personalityID string) error {
	if err := s.stores.Personalities.Activate(ctx, s.userID, personalityID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
	for _, p := range s.personalities {
		p.IsActive = p.ID == personalityID
		if p.IsActive {
			s.active = p
		}
	}
	return nil
}

// Personalities 内存中的人格列表（深拷贝）
func (s *Session) Personalities() []*model.Personality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePersonalities(s.personalities)
}

// ActivePersonality 当前激活的人格（可能为 nil，深拷贝）
func (s *Session) ActivePersonality() *model.Personality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}
