package service

import (
	"context"
	"encoding/json"
	"fmt"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/pkg/logger"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	EventProgress  = "progress"
	EventWarning   = "warning"
	EventStarted   = "started"
	EventSubmitted = "submitted"
)

// AttemptEvent 答题记录每次写入成功后推送的摘要，供同一测验的其它分区页面感知提交状态
type AttemptEvent struct {
	Type         string            `json:"type"`
	AttemptID    string            `json:"attemptId"`
	UserID       string            `json:"userId"`
	QuizID       string            `json:"quizId"`
	Kind         model.SectionKind `json:"kind"`
	HasSubmitted bool              `json:"hasSubmitted"`
	Submitted    bool              `json:"submitted"`
	WarningCount int               `json:"warningCount"`
	Percentage   float64           `json:"percentage"`
	At           time.Time         `json:"at"`
}

type AttemptFeed interface {
	Publish(ctx context.Context, evt AttemptEvent) error
	// Subscribe 返回的通道在 ctx 结束后关闭
	Subscribe(ctx context.Context, userID, quizID string) (<-chan AttemptEvent, error)
}

func FeedChannel(userID, quizID string) string {
	return fmt.Sprintf("attempt:%s:%s", userID, quizID)
}

// RedisAttemptFeed 基于 Redis Pub/Sub，多实例部署时事件可以跨节点送达
type RedisAttemptFeed struct {
	Client *redis.Client
}

func NewRedisAttemptFeed(client *redis.Client) *RedisAttemptFeed {
	return &RedisAttemptFeed{Client: client}
}

func (f *RedisAttemptFeed) Publish(ctx context.Context, evt AttemptEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return f.Client.Publish(ctx, FeedChannel(evt.UserID, evt.QuizID), data).Err()
}

func (f *RedisAttemptFeed) Subscribe(ctx context.Context, userID, quizID string) (<-chan AttemptEvent, error) {
	pubsub := f.Client.Subscribe(ctx, FeedChannel(userID, quizID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan AttemptEvent, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt AttemptEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					logger.Log.Warn("Invalid attempt event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// MemoryAttemptFeed 进程内实现，Redis 未配置时使用。订阅者处理不过来时丢弃事件
type MemoryAttemptFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan AttemptEvent]struct{}
}

func NewMemoryAttemptFeed() *MemoryAttemptFeed {
	return &MemoryAttemptFeed{subs: make(map[string]map[chan AttemptEvent]struct{})}
}

func (f *MemoryAttemptFeed) Publish(ctx context.Context, evt AttemptEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[FeedChannel(evt.UserID, evt.QuizID)] {
		select {
		case ch <- evt:
		default:
		}
	}
	return nil
}

func (f *MemoryAttemptFeed) Subscribe(ctx context.Context, userID, quizID string) (<-chan AttemptEvent, error) {
	key := FeedChannel(userID, quizID)
	ch := make(chan AttemptEvent, 16)

	f.mu.Lock()
	if f.subs[key] == nil {
		f.subs[key] = make(map[chan AttemptEvent]struct{})
	}
	f.subs[key][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs[key], ch)
		if len(f.subs[key]) == 0 {
			delete(f.subs, key)
		}
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

func eventFromAttempt(typ string, a *model.Attempt, kind model.SectionKind, at time.Time) AttemptEvent {
	evt := AttemptEvent{
		Type:         typ,
		AttemptID:    a.ID,
		UserID:       a.UserID,
		QuizID:       a.QuizID,
		Kind:         kind,
		HasSubmitted: a.HasSubmitted,
		WarningCount: a.WarningCount,
		Percentage:   a.Percentage,
		At:           at,
	}
	if sec := a.Section(kind); sec != nil {
		evt.Submitted = sec.Submitted
	}
	return evt
}
