package service

import (
	"context"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/logger"
	"quiz_platform_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ViolationSignal 客户端上报的原始事件
type ViolationSignal string

const (
	SignalVisibilityHidden ViolationSignal = "visibility_hidden"
	SignalWindowBlur       ViolationSignal = "window_blur"
	SignalBackNavigation   ViolationSignal = "back_navigation"
)

func ParseViolationSignal(s string) (ViolationSignal, error) {
	switch sig := ViolationSignal(s); sig {
	case SignalVisibilityHidden, SignalWindowBlur, SignalBackNavigation:
		return sig, nil
	}
	return "", util.ErrInvalidSignal
}

// Reason 展示给学生的违规原因
func (s ViolationSignal) Reason() string {
	switch s {
	case SignalVisibilityHidden:
		return "tab switch"
	case SignalWindowBlur:
		return "window blur"
	case SignalBackNavigation:
		return "back navigation"
	}
	return ""
}

// Observation 一次上报的处理结果
type Observation struct {
	Reported bool   `json:"reported"`
	Reason   string `json:"reason,omitempty"`
	// RearmHistory 客户端需要重新压入一条历史记录来抵消后退
	RearmHistory bool `json:"rearmHistory"`
}

// ViolationMonitor 对同一会话的违规信号做防抖，通过回调把原因交给会话。
// 监控只是辅助手段，任何内部错误都不会传给调用方。
type ViolationMonitor struct {
	key      string
	window   time.Duration
	gate     DebounceGate
	fallback *MemoryDebounceGate
	onReport func(ctx context.Context, reason string)

	mu       sync.Mutex
	detached bool
	armed    bool
}

func NewViolationMonitor(key string, window time.Duration, gate DebounceGate, onReport func(ctx context.Context, reason string)) *ViolationMonitor {
	fallback := NewMemoryDebounceGate(nil)
	if gate == nil {
		gate = fallback
	}
	return &ViolationMonitor{
		key:      key,
		window:   window,
		gate:     gate,
		fallback: fallback,
		onReport: onReport,
	}
}

// Observe 处理一个信号，窗口期内的重复信号被吞掉
func (m *ViolationMonitor) Observe(ctx context.Context, signal ViolationSignal) (obs Observation) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Violation monitor panic recovered", zap.Any("panic", r), zap.String("key", m.key))
			obs = Observation{}
		}
	}()

	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return Observation{}
	}
	if signal == SignalBackNavigation {
		m.armed = true
		obs.RearmHistory = true
	}
	m.mu.Unlock()

	allowed, err := m.gate.Allow(ctx, m.key, m.window)
	if err != nil {
		logger.Log.Warn("Debounce gate failed, using in-memory gate", zap.String("key", m.key), zap.Error(err))
		allowed, _ = m.fallback.Allow(ctx, m.key, m.window)
	}
	if !allowed {
		monitoring.ViolationCounter.WithLabelValues(string(signal), "debounced").Inc()
		return obs
	}

	obs.Reported = true
	obs.Reason = signal.Reason()
	monitoring.ViolationCounter.WithLabelValues(string(signal), "reported").Inc()
	if m.onReport != nil {
		m.onReport(ctx, obs.Reason)
	}
	return obs
}

// Detach 之后 Observe 不再生效，返回值表示客户端是否需要释放压入的历史记录
func (m *ViolationMonitor) Detach() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return false
	}
	m.detached = true
	armed := m.armed
	m.armed = false
	m.fallback.Forget(m.key)
	return armed
}
