package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager 用户会话注册表
// 用户认证可用时创建并加载会话，退出登录时丢弃
// （对应认证边界的 "user becomes available" / "user becomes null"）
type Manager struct {
	stores       Stores
	newCompleter func() Completer

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager 创建会话注册表
// 凭证是用户级状态，所以每个会话持有独立的补全客户端
func NewManager(stores Stores, newCompleter func() Completer) *Manager {
	return &Manager{
		stores:       stores,
		newCompleter: newCompleter,
		sessions:     make(map[string]*Session),
	}
}

// Get 获取用户会话，不存在时创建并加载
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	sess := New(userID, m.stores, m.newCompleter())
	if err := sess.Load(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// 并发创建时保留先到者
	if existing, ok := m.sessions[userID]; ok {
		return existing, nil
	}
	m.sessions[userID] = sess
	log.Debug().Str("user_id", userID).Msg("session created")
	return sess, nil
}

// Remove 丢弃用户会话（退出登录时清空全部内存状态）
func (m *Manager) Remove(userID string) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		sess.Stop()
		log.Debug().Str("user_id", userID).Msg("session removed")
	}
}
