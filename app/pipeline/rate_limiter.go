package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"auto-tube/app/logger"
)

// tokenBudget 单个协作方的共享令牌预算，消费和补充都是单次原子操作
type tokenBudget struct {
	capacity int64
	tokens   atomic.Int64
}

// CollaboratorLimiter 跨工作协程共享的协作方限流器。
// 调用前消耗一个令牌，令牌按固定间隔整体补满。
type CollaboratorLimiter struct {
	budgets  map[string]*tokenBudget
	interval time.Duration
	log      *logger.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollaboratorLimiter 创建限流器。budgets 为协作方名到每个补充周期可用调用数的映射，
// 未配置的协作方不限流。
func NewCollaboratorLimiter(budgets map[string]int, interval time.Duration, log *logger.Logger) *CollaboratorLimiter {
	l := &CollaboratorLimiter{
		budgets:  make(map[string]*tokenBudget, len(budgets)),
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
	for name, capacity := range budgets {
		if capacity <= 0 {
			continue
		}
		b := &tokenBudget{capacity: int64(capacity)}
		b.tokens.Store(int64(capacity))
		l.budgets[name] = b
	}
	return l
}

// Start 启动补充协程
func (l *CollaboratorLimiter) Start() {
	l.wg.Add(1)
	go l.replenishLoop()
}

// Stop 停止补充协程
func (l *CollaboratorLimiter) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

func (l *CollaboratorLimiter) replenishLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			for _, b := range l.budgets {
				b.tokens.Store(b.capacity)
			}
		}
	}
}

// Acquire 为一次协作方调用取得令牌，预算耗尽时阻塞等待下一个补充周期。
// 等待期间 ctx 取消则返回其错误。
func (l *CollaboratorLimiter) Acquire(ctx context.Context, collaborator string) error {
	b, ok := l.budgets[collaborator]
	if !ok {
		return nil
	}

	for {
		if l.tryTake(b) {
			return nil
		}
		l.log.Debugf("协作方 %s 令牌耗尽，等待补充", collaborator)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopCh:
			return context.Canceled
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (l *CollaboratorLimiter) tryTake(b *tokenBudget) bool {
	for {
		cur := b.tokens.Load()
		if cur <= 0 {
			return false
		}
		if b.tokens.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}
