package service

import (
	"sync"
	"time"

	"auto-tube/app/config"
	"auto-tube/app/logger"
	"auto-tube/app/model"

	"gorm.io/gorm"
)

// CleanupService 定期清理超过保留期的终态任务及其执行记录和质量报告
type CleanupService struct {
	db     *gorm.DB
	cfg    config.PipelineConfig
	log    *logger.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCleanupService 创建清理服务
func NewCleanupService(db *gorm.DB, cfg config.PipelineConfig, log *logger.Logger) *CleanupService {
	return &CleanupService{
		db:     db,
		cfg:    cfg,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Start 启动清理服务
func (s *CleanupService) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.Info("清理服务已启动")
}

// Stop 停止清理服务
func (s *CleanupService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.log.Info("清理服务已停止")
}

func (s *CleanupService) run() {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.CleanupInterval) * time.Hour
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 启动时先执行一次
	s.cleanup()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup 成功任务按 job_retention_days 清理，失败/拒绝/取消任务保留更久便于排查
func (s *CleanupService) cleanup() {
	s.purge([]model.JobState{model.JobStatePublished},
		time.Now().AddDate(0, 0, -s.cfg.JobRetentionDays))
	s.purge([]model.JobState{model.JobStateFailed, model.JobStateRejected, model.JobStateCancelled},
		time.Now().AddDate(0, 0, -s.cfg.FailedRetention))
}

func (s *CleanupService) purge(states []model.JobState, cutoff time.Time) {
	var jobs []model.Job
	if err := s.db.Select("id").
		Where("state IN ? AND finished_at < ?", states, cutoff).
		Find(&jobs).Error; err != nil {
		s.log.Errorf("查询过期任务失败: %v", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id IN ?", ids).Delete(&model.StageAttempt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("job_id IN ?", ids).Delete(&model.QualityReport{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.Job{}).Error
	})
	if err != nil {
		s.log.Errorf("清理过期任务失败: %v", err)
		return
	}
	s.log.Infof("清理了 %d 个过期任务", len(ids))
}
