package service

import (
	"context"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/logger"
	"sync"

	"go.uber.org/zap"
)

// SessionManager 正在作答的分区会话登记表，键为 (用户, 测验, 题型)。
// 持有自身锁时不调用会话方法，会话结束时通过 release 把自己移除。
type SessionManager struct {
	deps SessionDeps

	mu       sync.Mutex
	settings SessionSettings
	sessions map[SessionKey]*AttemptSession
}

func NewSessionManager(deps SessionDeps, settings SessionSettings) *SessionManager {
	return &SessionManager{
		deps:     deps,
		settings: settings,
		sessions: make(map[SessionKey]*AttemptSession),
	}
}

// Open 相当于重新加载页面：关闭同一分区已有的会话，从库中恢复出新的会话。
// 出错时也返回会话，调用方可以拿到提示信息。
func (m *SessionManager) Open(ctx context.Context, key SessionKey, identity Identity, secretCode string) (*AttemptSession, error) {
	m.mu.Lock()
	old := m.sessions[key]
	delete(m.sessions, key)
	settings := m.settings
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	sess, err := NewAttemptSession(key, identity, m.deps, settings)
	if err != nil {
		return nil, err
	}
	sess.onFinish = m.release
	if err := sess.Open(ctx, secretCode); err != nil {
		return sess, err
	}

	m.mu.Lock()
	prev := m.sessions[key]
	m.sessions[key] = sess
	m.mu.Unlock()
	if prev != nil && prev != sess {
		prev.Close()
	}

	// 打开过程中就已经收卷的会话不需要登记
	if sess.State() != StateReady {
		m.release(sess)
	}
	return sess, nil
}

func (m *SessionManager) Get(key SessionKey) (*AttemptSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[key]
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	return sess, nil
}

// Close 对应页面卸载
func (m *SessionManager) Close(key SessionKey) (SessionView, error) {
	m.mu.Lock()
	sess, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if !ok {
		return SessionView{}, util.ErrSessionNotFound
	}
	return sess.Close(), nil
}

func (m *SessionManager) release(sess *AttemptSession) {
	m.mu.Lock()
	if cur, ok := m.sessions[sess.key]; ok && cur == sess {
		delete(m.sessions, sess.key)
	}
	m.mu.Unlock()
}

// Owns 本实例上是否有该分区的活动会话
func (m *SessionManager) Owns(userID, quizID string, kind model.SectionKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[SessionKey{UserID: userID, QuizID: quizID, Kind: kind}]
	return ok
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll 服务关闭时调用，答题记录保持可恢复
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*AttemptSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[SessionKey]*AttemptSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	logger.Log.Info("Closed live sessions", zap.Int("count", len(sessions)))
}

// UpdateSettings 只影响之后打开的会话
func (m *SessionManager) UpdateSettings(settings SessionSettings) {
	m.mu.Lock()
	m.settings = settings
	m.mu.Unlock()
}

func (m *SessionManager) Settings() SessionSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}
