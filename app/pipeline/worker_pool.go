package pipeline

import (
	"context"
	"sync"
	"time"

	"auto-tube/app/config"
	"auto-tube/app/logger"
	"auto-tube/app/model"

	"gorm.io/gorm"
)

// WorkerPool 固定大小的工作协程池，从持久化队列中认领就绪任务并驱动编排器处理。
// 认领通过数据库事务完成，保证同一任务同一时刻只有一个工作协程持有。
type WorkerPool struct {
	db      *gorm.DB
	cfg     config.PipelineConfig
	log     *logger.Logger
	orch    *Orchestrator
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWorkerPool 创建工作协程池
func NewWorkerPool(db *gorm.DB, cfg config.PipelineConfig, log *logger.Logger, orch *Orchestrator) *WorkerPool {
	return &WorkerPool{
		db:     db,
		cfg:    cfg,
		log:    log,
		orch:   orch,
		stopCh: make(chan struct{}),
	}
}

// Start 启动工作协程池
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	// 启动时释放上次异常退出残留的认领标记，任务从当前阶段继续
	if err := p.db.Model(&model.Job{}).
		Where("claimed = ? AND state NOT IN ?", true, []model.JobState{
			model.JobStatePublished, model.JobStateRejected, model.JobStateFailed, model.JobStateCancelled,
		}).Update("claimed", false).Error; err != nil {
		p.log.Errorf("重置残留认领标记失败: %v", err)
	}

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Infof("工作协程池已启动，协程数: %d", p.cfg.Workers)
}

// Stop 停止工作协程池，等待在途任务的当前阶段结束
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	close(p.stopCh)
	p.wg.Wait()

	p.log.Info("工作协程池已停止")
}

// worker 轮询认领就绪任务，一次处理一个
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	interval := time.Duration(p.cfg.PollInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			job, ok := p.claimNext()
			if !ok {
				continue
			}
			p.log.Debugf("工作协程 %d 认领任务: JobID=%s", id, job.ID)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				// 池停止时取消上下文，在途阶段按超时自行收尾
				select {
				case <-p.stopCh:
					cancel()
				case <-done:
				}
			}()
			p.orch.Process(ctx, job)
			close(done)
			cancel()
		}
	}
}

// claimNext 在事务内认领最早的就绪任务。
// 就绪指 scored 状态的新任务，或恢复后认领标记被释放的在途任务。
func (p *WorkerPool) claimNext() (*model.Job, bool) {
	var job model.Job

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("claimed = ? AND state IN ?", false, []model.JobState{
				model.JobStateScored,
				model.JobStateScripting,
				model.JobStateVoicing,
				model.JobStateAssetGathering,
				model.JobStateRendering,
				model.JobStateThumbnailGenerating,
				model.JobStateQualityChecking,
				model.JobStateApproved,
				model.JobStatePublishing,
			}).
			Order("created_at ASC").First(&job).Error; err != nil {
			return err // 没有就绪任务
		}

		// 带条件的更新显式保证单一持有者, 不依赖后端的事务隔离细节
		result := tx.Model(&model.Job{}).
			Where("id = ? AND claimed = ?", job.ID, false).
			Update("claimed", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound // 被其他协程抢先认领
		}
		return nil
	})

	if err != nil {
		if err != gorm.ErrRecordNotFound {
			p.log.Errorf("认领任务失败: %v", err)
		}
		return nil, false
	}
	job.Claimed = true
	return &job, true
}

// QueueStatus 按状态统计任务数量
func (p *WorkerPool) QueueStatus() (map[string]int64, error) {
	status := make(map[string]int64)

	rows := []struct {
		State model.JobState
		Count int64
	}{}
	if err := p.db.Model(&model.Job{}).
		Select("state, count(*) as count").Group("state").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		status[string(r.State)] = r.Count
	}
	return status, nil
}
