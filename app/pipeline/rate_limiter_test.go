package pipeline

import (
	"context"
	"testing"
	"time"
)

func TestAcquireUnconfiguredCollaboratorNeverBlocks(t *testing.T) {
	l := NewCollaboratorLimiter(map[string]int{"render": 1}, time.Minute, testLogger())

	for i := 0; i < 100; i++ {
		if err := l.Acquire(context.Background(), "voice"); err != nil {
			t.Fatalf("未配置预算的协作方不应被限流: %v", err)
		}
	}
}

func TestAcquireConsumesBudget(t *testing.T) {
	l := NewCollaboratorLimiter(map[string]int{"render": 2}, time.Minute, testLogger())

	for i := 0; i < 2; i++ {
		if err := l.Acquire(context.Background(), "render"); err != nil {
			t.Fatalf("预算内的第 %d 次调用失败: %v", i+1, err)
		}
	}

	// 预算耗尽后阻塞, 直到上下文取消
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx, "render"); err == nil {
		t.Fatal("预算耗尽且无补充时应当因上下文取消而返回错误")
	}
}

func TestAcquireUnblocksAfterReplenish(t *testing.T) {
	l := NewCollaboratorLimiter(map[string]int{"render": 1}, 150*time.Millisecond, testLogger())
	l.Start()
	defer l.Stop()

	if err := l.Acquire(context.Background(), "render"); err != nil {
		t.Fatalf("首次调用失败: %v", err)
	}

	// 令牌耗尽, 等补充周期后放行
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	if err := l.Acquire(ctx, "render"); err != nil {
		t.Fatalf("补充后应当取得令牌: %v", err)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Fatal("预算耗尽时不应立即放行")
	}
}

func TestZeroCapacityBudgetIsIgnored(t *testing.T) {
	l := NewCollaboratorLimiter(map[string]int{"render": 0}, time.Minute, testLogger())

	// 容量为 0 的配置视为未配置, 不限流
	if err := l.Acquire(context.Background(), "render"); err != nil {
		t.Fatalf("零容量预算不应生效: %v", err)
	}
}
