package service

import (
	"context"
	"sync"
	"time"
)

// Sequence 从 from 开始每隔 interval 产出一个递减的整数，到 0 为止后关闭通道。
// from <= 0 时只产出 0。ctx 取消后提前关闭。
func Sequence(ctx context.Context, from int, interval time.Duration) <-chan int {
	out := make(chan int)
	go func() {
		defer close(out)
		if from < 0 {
			from = 0
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for v := from; ; v-- {
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
			if v == 0 {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Countdown 分区倒计时。剩余时间由调用方算好传入（恢复时为 限时-已用时），
// 到 0 时 onExpire 在整个生命周期内只触发一次。
type Countdown struct {
	interval time.Duration
	onExpire func()

	mu        sync.Mutex
	remaining int
	running   bool
	gen       uint64
	cancel    context.CancelFunc
	fired     bool
}

func NewCountdown(interval time.Duration, onExpire func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval, onExpire: onExpire}
}

// Start 以 remaining 秒重新开始计时，会替换正在运行的计时循环
func (c *Countdown) Start(remaining int) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if remaining < 0 {
		remaining = 0
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.remaining = remaining
	c.running = true
	c.mu.Unlock()

	go c.run(ctx, gen, Sequence(ctx, remaining, c.interval))
}

func (c *Countdown) run(ctx context.Context, gen uint64, seq <-chan int) {
	for v := range seq {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.remaining = v
		if v > 0 {
			c.mu.Unlock()
			continue
		}
		c.running = false
		fire := !c.fired
		c.fired = true
		c.mu.Unlock()

		if fire && c.onExpire != nil {
			c.onExpire()
		}
		return
	}
}

// Remaining 当前剩余秒数
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Expired 是否已经触发过到期回调
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Stop 停止计时，不等待回调结束；之后不会再触发 onExpire
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
