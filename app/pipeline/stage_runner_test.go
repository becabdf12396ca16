package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"auto-tube/app/config"
	"auto-tube/app/logger"
	"auto-tube/app/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testLogger() *logger.Logger {
	return logger.New(config.LogConfig{Level: "error", Format: "text", Output: "stdout"})
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Job{},
		&model.StageAttempt{},
		&model.QualityReport{},
		&model.PublishedTitle{},
	); err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}
	return db
}

// 退避与限流都归零, 测试跑在重试的快速路径上
func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		Workers:      1,
		MaxRetries:   3,
		BackoffBase:  0,
		BackoffMax:   0,
		StageTimeout: 5,
		PollInterval: 1,
	}
}

func newTestRunner(t *testing.T, db *gorm.DB) *StageRunner {
	t.Helper()
	limiter := NewCollaboratorLimiter(nil, time.Second, testLogger())
	return NewStageRunner(db, testPipelineConfig(), testLogger(), limiter)
}

func attemptsFor(t *testing.T, db *gorm.DB, jobID string) []model.StageAttempt {
	t.Helper()
	var attempts []model.StageAttempt
	if err := db.Where("job_id = ?", jobID).Order("started_at ASC, attempt ASC").Find(&attempts).Error; err != nil {
		t.Fatalf("读取执行记录失败: %v", err)
	}
	return attempts
}

func TestRunSucceedsAfterTransientFailures(t *testing.T) {
	db := testDB(t)
	runner := newTestRunner(t, db)
	job := &model.Job{ID: "job-retry", State: model.JobStateScripting}

	calls := 0
	err := runner.Run(context.Background(), job, model.StageScript, func(ctx context.Context, j *model.Job) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("上游超载"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("第三次尝试成功后 Run 应返回 nil: %v", err)
	}
	if calls != 3 {
		t.Fatalf("期望调用 3 次, 实际 %d 次", calls)
	}

	attempts := attemptsFor(t, db, job.ID)
	if len(attempts) != 3 {
		t.Fatalf("期望 3 条执行记录, 得到 %d", len(attempts))
	}
	wantOutcomes := []model.AttemptOutcome{
		model.AttemptRetryableFailure,
		model.AttemptRetryableFailure,
		model.AttemptSuccess,
	}
	for i, a := range attempts {
		if a.Outcome != wantOutcomes[i] {
			t.Fatalf("第 %d 条记录结果期望 %s, 得到 %s", i+1, wantOutcomes[i], a.Outcome)
		}
		if a.Attempt != i+1 {
			t.Fatalf("第 %d 条记录尝试序号期望 %d, 得到 %d", i+1, i+1, a.Attempt)
		}
	}
}

func TestRunExhaustsRetryBudget(t *testing.T) {
	db := testDB(t)
	runner := newTestRunner(t, db)
	job := &model.Job{ID: "job-exhaust", State: model.JobStateVoicing}

	calls := 0
	err := runner.Run(context.Background(), job, model.StageVoice, func(ctx context.Context, j *model.Job) error {
		calls++
		return Retryable(errors.New("服务暂不可用"))
	})
	if err == nil {
		t.Fatal("重试预算耗尽应当返回错误")
	}
	if !IsFatal(err) {
		t.Fatalf("耗尽后的错误应为致命错误, 得到 %T: %v", err, err)
	}
	if calls != 3 {
		t.Fatalf("期望调用 3 次, 实际 %d 次", calls)
	}

	attempts := attemptsFor(t, db, job.ID)
	if len(attempts) != 3 {
		t.Fatalf("期望 3 条执行记录, 得到 %d", len(attempts))
	}
	for _, a := range attempts {
		if a.Outcome != model.AttemptRetryableFailure {
			t.Fatalf("所有记录应为可重试失败, 得到 %s", a.Outcome)
		}
	}
}

func TestRunFatalErrorSkipsRetry(t *testing.T) {
	db := testDB(t)
	runner := newTestRunner(t, db)
	job := &model.Job{ID: "job-fatal", State: model.JobStateRendering}

	calls := 0
	err := runner.Run(context.Background(), job, model.StageRender, func(ctx context.Context, j *model.Job) error {
		calls++
		return Fatal(errors.New("凭证已失效"))
	})
	if !IsFatal(err) {
		t.Fatalf("期望致命错误, 得到 %v", err)
	}
	if calls != 1 {
		t.Fatalf("致命错误不应重试, 实际调用 %d 次", calls)
	}

	attempts := attemptsFor(t, db, job.ID)
	if len(attempts) != 1 || attempts[0].Outcome != model.AttemptFatalFailure {
		t.Fatalf("期望一条致命失败记录, 得到 %+v", attempts)
	}
}

func TestRunTimeoutIsRetryable(t *testing.T) {
	db := testDB(t)
	cfg := testPipelineConfig()
	cfg.MaxRetries = 1
	cfg.StageTimeouts = map[string]int{string(model.StageRender): 1}
	limiter := NewCollaboratorLimiter(nil, time.Second, testLogger())
	runner := NewStageRunner(db, cfg, testLogger(), limiter)
	job := &model.Job{ID: "job-timeout", State: model.JobStateRendering}

	err := runner.Run(context.Background(), job, model.StageRender, func(ctx context.Context, j *model.Job) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err == nil {
		t.Fatal("超时且预算耗尽应当返回错误")
	}

	attempts := attemptsFor(t, db, job.ID)
	if len(attempts) != 1 {
		t.Fatalf("期望 1 条执行记录, 得到 %d", len(attempts))
	}
	if attempts[0].Outcome != model.AttemptRetryableFailure {
		t.Fatalf("超时应记录为可重试失败, 得到 %s", attempts[0].Outcome)
	}
}

func TestRunInterruptedMidStageIsNotFatal(t *testing.T) {
	db := testDB(t)
	runner := newTestRunner(t, db)
	job := &model.Job{ID: "job-interrupted", State: model.JobStateVoicing}

	// 执行中停机: 池收回上下文, 在途阶段中断
	ctx, cancel := context.WithCancel(context.Background())
	err := runner.Run(ctx, job, model.StageVoice, func(c context.Context, j *model.Job) error {
		cancel()
		return c.Err()
	})
	if err == nil {
		t.Fatal("被打断的执行应返回错误")
	}
	if IsFatal(err) {
		t.Fatalf("停机打断不应升级为致命错误: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望上下文取消错误, 得到 %v", err)
	}

	attempts := attemptsFor(t, db, job.ID)
	if len(attempts) != 1 || attempts[0].Outcome != model.AttemptRetryableFailure {
		t.Fatalf("被打断的尝试应记录为可重试失败, 得到 %+v", attempts)
	}
}

func TestRunRecordsSuccessfulAttempt(t *testing.T) {
	db := testDB(t)
	runner := newTestRunner(t, db)
	job := &model.Job{ID: "job-ok", State: model.JobStateScripting}

	if err := runner.Run(context.Background(), job, model.StageScript, func(ctx context.Context, j *model.Job) error {
		return nil
	}); err != nil {
		t.Fatalf("Run 失败: %v", err)
	}

	attempts := attemptsFor(t, db, job.ID)
	if len(attempts) != 1 {
		t.Fatalf("成功执行也应留下记录, 得到 %d 条", len(attempts))
	}
	a := attempts[0]
	if a.Outcome != model.AttemptSuccess || a.ErrorMsg != "" {
		t.Fatalf("成功记录异常: %+v", a)
	}
	if a.EndedAt.Before(a.StartedAt) {
		t.Fatalf("结束时间早于开始时间: %v < %v", a.EndedAt, a.StartedAt)
	}
}
