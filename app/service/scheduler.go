package service

import (
	"context"
	"sync"
	"time"

	"auto-tube/app/logger"
	"auto-tube/app/model"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SubmitFunc 调度触发时创建任务的入口
type SubmitFunc func(ctx context.Context, category string) error

// SchedulerService 按 schedule_entries 表中的 cron 表达式定时创建任务。
// 表通过管理接口修改后调用 Reload 生效。
type SchedulerService struct {
	db     *gorm.DB
	log    *logger.Logger
	submit SubmitFunc
	mu     sync.Mutex
	cron   *cron.Cron
}

// NewSchedulerService 创建调度服务
func NewSchedulerService(db *gorm.DB, log *logger.Logger, submit SubmitFunc) *SchedulerService {
	return &SchedulerService{
		db:     db,
		log:    log,
		submit: submit,
	}
}

// Start 加载调度表并启动
func (s *SchedulerService) Start() error {
	if err := s.Reload(); err != nil {
		return err
	}
	s.log.Info("调度服务已启动")
	return nil
}

// Stop 停止调度，等待在途触发回调返回
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.cron = nil
	}
	s.log.Info("调度服务已停止")
}

// Reload 重新加载启用的调度项，替换正在运行的 cron 实例
func (s *SchedulerService) Reload() error {
	var entries []model.ScheduleEntry
	if err := s.db.Where("enabled = ?", true).Find(&entries).Error; err != nil {
		return err
	}

	c := cron.New()
	loaded := 0
	for _, entry := range entries {
		category := entry.Category
		name := entry.Name
		_, err := c.AddFunc(entry.CronExpr, func() {
			s.fire(name, category)
		})
		if err != nil {
			s.log.Errorf("调度项 %s 的 cron 表达式无效: %s, 错误: %v", entry.Name, entry.CronExpr, err)
			continue
		}
		loaded++
	}

	s.mu.Lock()
	old := s.cron
	s.cron = c
	c.Start()
	s.mu.Unlock()

	if old != nil {
		<-old.Stop().Done()
	}

	s.log.Infof("调度表已加载: %d/%d 个调度项生效", loaded, len(entries))
	return nil
}

// fire 一次定时触发。选题不足等创建失败只记日志，等待下一次触发。
func (s *SchedulerService) fire(name, category string) {
	s.log.Infof("⏰ 定时触发: %s (分类: %s)", name, category)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.submit(ctx, category); err != nil {
		s.log.Warnf("定时创建任务失败: %s, 错误: %v", name, err)
	}
}

// ValidateCronExpr 校验 cron 表达式，供管理接口在写入前调用
func ValidateCronExpr(expr string) error {
	_, err := cron.ParseStandard(expr)
	return err
}
