package service

import (
	"context"
	"encoding/json"
	"net/http"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/pkg/logger"
	"quiz_platform_backend/pkg/monitoring"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	LiveTypeAttempt   = "ATTEMPT"
	LiveTypeSession   = "SESSION"
	LiveTypeError     = "ERROR"
	LiveTypeViolation = "VIOLATION"
)

// LiveMessage 下行消息
type LiveMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// liveCommand 上行消息，目前只有页面转发的违规信号
type liveCommand struct {
	Type   string `json:"type"`
	Kind   string `json:"kind"`
	Signal string `json:"signal"`
}

// LiveClient 一个测验页面的长连接：推送答题记录变更，接收违规信号
type LiveClient struct {
	Conn     *websocket.Conn
	Send     chan []byte
	Identity Identity
	QuizID   string
	Sessions *SessionManager
	Limiter  *rate.Limiter
}

func (c *LiveClient) push(ctx context.Context, msg LiveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
		monitoring.LiveMessages.WithLabelValues(msg.Type, "out").Inc()
	case <-ctx.Done():
	default:
		// 客户端消费太慢时丢弃，下一次事件会带上最新状态
		logger.Log.Debug("Live message dropped", zap.String("userId", c.Identity.UserID), zap.String("type", msg.Type))
	}
}

func (c *LiveClient) forward(ctx context.Context, events <-chan AttemptEvent) {
	for evt := range events {
		c.push(ctx, LiveMessage{Type: LiveTypeAttempt, Data: evt})
	}
}

func (c *LiveClient) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		cancel()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.String("userId", c.Identity.UserID))
			}
			return
		}

		if !c.Limiter.Allow() {
			continue
		}

		var cmd liveCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}
		monitoring.LiveMessages.WithLabelValues(cmd.Type, "in").Inc()

		if cmd.Type == LiveTypeViolation {
			c.handleViolation(ctx, cmd)
		}
	}
}

func (c *LiveClient) handleViolation(ctx context.Context, cmd liveCommand) {
	kind, ok := model.ParseSectionKind(cmd.Kind)
	if !ok {
		c.push(ctx, LiveMessage{Type: LiveTypeError, Data: "unknown section kind"})
		return
	}
	signal, err := ParseViolationSignal(cmd.Signal)
	if err != nil {
		c.push(ctx, LiveMessage{Type: LiveTypeError, Data: err.Error()})
		return
	}
	sess, err := c.Sessions.Get(SessionKey{UserID: c.Identity.UserID, QuizID: c.QuizID, Kind: kind})
	if err != nil {
		c.push(ctx, LiveMessage{Type: LiveTypeError, Data: err.Error()})
		return
	}
	out, err := sess.ReportViolation(ctx, signal)
	if err != nil {
		c.push(ctx, LiveMessage{Type: LiveTypeError, Data: err.Error()})
		return
	}
	c.push(ctx, LiveMessage{Type: LiveTypeSession, Data: out})
}

func (c *LiveClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeAttemptLive 升级连接并订阅当前用户在该测验上的答题记录变更。
// 连接生命周期独立于 HTTP 请求，读循环退出时取消订阅。
func ServeAttemptLive(feed AttemptFeed, sessions *SessionManager, w http.ResponseWriter, r *http.Request, identity Identity, quizID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.String("userId", identity.UserID))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	events, err := feed.Subscribe(ctx, identity.UserID, quizID)
	if err != nil {
		logger.Log.Error("Attempt feed subscribe failed", zap.Error(err), zap.String("userId", identity.UserID))
		cancel()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "feed unavailable"))
		conn.Close()
		return
	}

	client := &LiveClient{
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		Identity: identity,
		QuizID:   quizID,
		Sessions: sessions,
		Limiter:  rate.NewLimiter(rate.Limit(5), 10),
	}

	go client.forward(ctx, events)
	go client.writePump(ctx)
	go client.readPump(ctx, cancel)
}
