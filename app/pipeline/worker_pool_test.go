package pipeline

import (
	"sync"
	"testing"
	"time"

	"auto-tube/app/model"
)

func newTestPool(t *testing.T) (*WorkerPool, *Orchestrator) {
	t.Helper()
	db := testDB(t)
	orch := newTestOrchestrator(t, db, happyCollaborators(nil, 300))
	return NewWorkerPool(db, testPipelineConfig(), testLogger(), orch), orch
}

func TestClaimNextPicksOldestReadyJob(t *testing.T) {
	pool, orch := newTestPool(t)

	older := &model.Job{ID: "job-older", State: model.JobStateScored,
		CreatedAt: time.Now().Add(-time.Hour)}
	newer := &model.Job{ID: "job-newer", State: model.JobStateScored,
		CreatedAt: time.Now()}
	for _, j := range []*model.Job{newer, older} {
		if err := orch.db.Create(j).Error; err != nil {
			t.Fatalf("写入任务失败: %v", err)
		}
	}

	job, ok := pool.claimNext()
	if !ok {
		t.Fatal("应当认领到任务")
	}
	if job.ID != "job-older" {
		t.Fatalf("应当先认领最早创建的任务, 得到 %s", job.ID)
	}
	if !job.Claimed {
		t.Fatal("认领后的任务标记异常")
	}

	// 已认领的任务不会被再次认领
	second, ok := pool.claimNext()
	if !ok || second.ID != "job-newer" {
		t.Fatalf("第二次认领应落到剩余任务, 得到 %+v", second)
	}
	if _, ok := pool.claimNext(); ok {
		t.Fatal("队列已空, 不应再认领到任务")
	}
}

func TestClaimNextSkipsTerminalAndClaimedJobs(t *testing.T) {
	pool, orch := newTestPool(t)

	jobs := []*model.Job{
		{ID: "job-done", State: model.JobStatePublished},
		{ID: "job-dead", State: model.JobStateFailed},
		{ID: "job-taken", State: model.JobStateRendering, Claimed: true},
		{ID: "job-fresh", State: model.JobStateCreated},
	}
	for _, j := range jobs {
		if err := orch.db.Create(j).Error; err != nil {
			t.Fatalf("写入任务失败: %v", err)
		}
	}

	if _, ok := pool.claimNext(); ok {
		t.Fatal("终态/已认领/未评分的任务都不应被认领")
	}
}

func TestStartReleasesStaleClaims(t *testing.T) {
	db := testDB(t)
	orch := newTestOrchestrator(t, db, happyCollaborators(nil, 300))

	// 不起工作协程, 只验证启动时的恢复逻辑
	cfg := testPipelineConfig()
	cfg.Workers = 0
	pool := NewWorkerPool(db, cfg, testLogger(), orch)

	// 上次进程崩溃残留: 在途任务仍带着认领标记
	stale := &model.Job{ID: "job-stale", State: model.JobStateRendering, Claimed: true}
	finished := &model.Job{ID: "job-finished", State: model.JobStatePublished, Claimed: true}
	for _, j := range []*model.Job{stale, finished} {
		if err := orch.db.Create(j).Error; err != nil {
			t.Fatalf("写入任务失败: %v", err)
		}
	}

	pool.Start()
	defer pool.Stop()

	var reloaded model.Job
	if err := orch.db.First(&reloaded, "id = ?", "job-stale").Error; err != nil {
		t.Fatalf("读取任务失败: %v", err)
	}
	if reloaded.Claimed {
		t.Fatal("启动时应释放在途任务的残留认领标记")
	}

	// 终态任务的标记保持原样, 不参与恢复
	reloaded = model.Job{}
	if err := orch.db.First(&reloaded, "id = ?", "job-finished").Error; err != nil {
		t.Fatalf("读取任务失败: %v", err)
	}
	if !reloaded.Claimed {
		t.Fatal("终态任务不应被重置")
	}
}

func TestQueueStatusCountsByState(t *testing.T) {
	pool, orch := newTestPool(t)

	jobs := []*model.Job{
		{ID: "q1", State: model.JobStateScored},
		{ID: "q2", State: model.JobStateScored},
		{ID: "q3", State: model.JobStateRendering},
		{ID: "q4", State: model.JobStatePublished},
	}
	for _, j := range jobs {
		if err := orch.db.Create(j).Error; err != nil {
			t.Fatalf("写入任务失败: %v", err)
		}
	}

	status, err := pool.QueueStatus()
	if err != nil {
		t.Fatalf("统计队列状态失败: %v", err)
	}
	if status["scored"] != 2 || status["rendering"] != 1 || status["published"] != 1 {
		t.Fatalf("统计结果异常: %v", status)
	}
}

func TestClaimNextSingleOwner(t *testing.T) {
	pool, orch := newTestPool(t)

	job := &model.Job{ID: "job-contested", State: model.JobStateScored}
	if err := orch.db.Create(job).Error; err != nil {
		t.Fatalf("写入任务失败: %v", err)
	}

	// 顺序两次认领: 第一次成功, 第二次看不到已认领的任务
	first, ok := pool.claimNext()
	if !ok || !first.Claimed {
		t.Fatal("第一次认领应当成功")
	}
	if _, ok := pool.claimNext(); ok {
		t.Fatal("已认领的任务不应被二次认领")
	}

	// 并发争抢同一个任务, 至多一个协程拿到持有权
	contested := &model.Job{ID: "job-contested-2", State: model.JobStateScored}
	if err := orch.db.Create(contested).Error; err != nil {
		t.Fatalf("写入任务失败: %v", err)
	}
	var mu sync.Mutex
	winners := 0
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, ok := pool.claimNext(); ok && got.ID == contested.ID {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners > 1 {
		t.Fatalf("同一任务出现 %d 个持有者", winners)
	}
	if winners == 0 {
		// 全部因争抢退避时, 随后的认领必须成功
		if got, ok := pool.claimNext(); !ok || got.ID != contested.ID {
			t.Fatal("争抢退避后任务应仍可认领")
		}
	}

	var final model.Job
	if err := orch.db.First(&final, "id = ?", contested.ID).Error; err != nil {
		t.Fatalf("查询任务失败: %v", err)
	}
	if !final.Claimed {
		t.Fatal("任务最终应处于已认领状态")
	}
}
