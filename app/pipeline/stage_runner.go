package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auto-tube/app/config"
	"auto-tube/app/logger"
	"auto-tube/app/model"

	"gorm.io/gorm"
)

// StageFunc 执行一个阶段的具体工作，通常是调用某个外部协作方并把产物写回 Job
type StageFunc func(ctx context.Context, job *model.Job) error

// StageRunner 以统一的超时、限流和重试策略执行单个流水线阶段。
// 每次调用（包括成功）都追加一条 StageAttempt 审计记录。
type StageRunner struct {
	db      *gorm.DB
	cfg     config.PipelineConfig
	log     *logger.Logger
	limiter *CollaboratorLimiter
}

// NewStageRunner 创建阶段执行器
func NewStageRunner(db *gorm.DB, cfg config.PipelineConfig, log *logger.Logger, limiter *CollaboratorLimiter) *StageRunner {
	return &StageRunner{
		db:      db,
		cfg:     cfg,
		log:     log,
		limiter: limiter,
	}
}

// Run 执行一个阶段。瞬时失败按指数退避重试，超时视为瞬时失败；
// 重试预算耗尽或遇到致命错误时返回 FatalError，由编排器将任务置为 failed。
func (r *StageRunner) Run(ctx context.Context, job *model.Job, stage model.Stage, fn StageFunc) error {
	timeout := time.Duration(r.cfg.StageTimeoutFor(string(stage))) * time.Second
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		// 调用协作方前先取得共享限流令牌
		if err := r.limiter.Acquire(ctx, string(stage)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return Fatal(fmt.Errorf("等待限流令牌失败: %w", err))
		}

		startedAt := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		err := fn(stageCtx, job)
		cancel()
		endedAt := time.Now()

		if err == nil {
			r.recordAttempt(job, stage, attempt, startedAt, endedAt, model.AttemptSuccess, "")
			if attempt > 1 {
				r.log.Infof("🔄 阶段 %s 第 %d 次尝试成功: JobID=%s", stage, attempt, job.ID)
			}
			return nil
		}

		// 停机或取消打断当前尝试: 不计入重试预算, 原样返回上下文错误,
		// 任务保持非终态, 下次启动时从当前阶段继续
		if ctx.Err() != nil {
			r.recordAttempt(job, stage, attempt, startedAt, endedAt, model.AttemptRetryableFailure, ctx.Err().Error())
			r.log.Infof("⏸ 阶段 %s 被中断: JobID=%s", stage, job.ID)
			return ctx.Err()
		}

		// 超时归类为可重试
		if errors.Is(err, context.DeadlineExceeded) {
			err = Retryable(fmt.Errorf("阶段 %s 超时 (%s)", stage, timeout))
		}

		lastErr = err
		if IsFatal(err) {
			r.recordAttempt(job, stage, attempt, startedAt, endedAt, model.AttemptFatalFailure, err.Error())
			r.log.Errorf("💀 阶段 %s 致命失败: JobID=%s, 错误: %v", stage, job.ID, err)
			return err
		}

		r.recordAttempt(job, stage, attempt, startedAt, endedAt, model.AttemptRetryableFailure, err.Error())
		r.log.Warnf("❌ 阶段 %s 第 %d/%d 次尝试失败: JobID=%s, 错误: %v",
			stage, attempt, r.cfg.MaxRetries, job.ID, err)

		if attempt < r.cfg.MaxRetries {
			backoff := r.backoffFor(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return Fatal(fmt.Errorf("阶段 %s 重试 %d 次后仍失败: %w", stage, r.cfg.MaxRetries, lastErr))
}

// backoffFor 第 attempt 次失败后的退避时长，base*2^(attempt-1)，封顶 backoff_max
func (r *StageRunner) backoffFor(attempt int) time.Duration {
	base := time.Duration(r.cfg.BackoffBase) * time.Second
	limit := time.Duration(r.cfg.BackoffMax) * time.Second

	backoff := base << (attempt - 1)
	if backoff > limit || backoff <= 0 {
		backoff = limit
	}
	return backoff
}

// recordAttempt 追加一条执行记录。审计日志写失败只记日志，不影响阶段结果。
func (r *StageRunner) recordAttempt(job *model.Job, stage model.Stage, attempt int,
	startedAt, endedAt time.Time, outcome model.AttemptOutcome, errMsg string) {

	record := &model.StageAttempt{
		JobID:     job.ID,
		Stage:     stage,
		Attempt:   attempt,
		StartedAt: startedAt,
		EndedAt:   endedAt,
		Outcome:   outcome,
		ErrorMsg:  errMsg,
	}
	if err := r.db.Create(record).Error; err != nil {
		r.log.Errorf("写入阶段执行记录失败: JobID=%s, Stage=%s, 错误: %v", job.ID, stage, err)
	}
}
