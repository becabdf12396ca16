package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"auto-tube/app/config"
	"auto-tube/app/logger"
	"auto-tube/app/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notifier 任务状态变更回调，用于向管理端推送
type Notifier func(job *model.Job)

// Orchestrator 任务编排器。持有任务状态机，按序驱动各阶段，
// 在正确的时机调用评分、判重和质量闸，并负责任务状态持久化。
// 一个任务在其生命周期内只被一个工作协程的编排调用持有。
type Orchestrator struct {
	db       *gorm.DB
	cfg      *config.Config
	log      *logger.Logger
	scorer   *TrendScorer
	detector *DuplicateDetector
	gate     *QualityGate
	runner   *StageRunner
	collab   Collaborators
	notify   Notifier
}

// stageStep 成功路径上的一个阶段：进入的状态、阶段名和执行函数
type stageStep struct {
	state model.JobState
	stage model.Stage
	run   StageFunc
}

// NewOrchestrator 创建任务编排器
func NewOrchestrator(db *gorm.DB, cfg *config.Config, log *logger.Logger,
	scorer *TrendScorer, detector *DuplicateDetector, gate *QualityGate,
	runner *StageRunner, collab Collaborators) *Orchestrator {

	return &Orchestrator{
		db:       db,
		cfg:      cfg,
		log:      log,
		scorer:   scorer,
		detector: detector,
		gate:     gate,
		runner:   runner,
		collab:   collab,
	}
}

// SetNotifier 设置状态变更回调
func (o *Orchestrator) SetNotifier(fn Notifier) {
	o.notify = fn
}

// SubmitJob 采集候选选题、评分、判重并创建任务。
// 评分或判重阶段的失败阻止任务创建，直接返回给调用方。
func (o *Orchestrator) SubmitJob(ctx context.Context, category string) (*model.Job, error) {
	topics, err := o.collab.Topics.Collect(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("采集候选选题失败: %w", err)
	}
	if len(topics) == 0 {
		return nil, ErrNoSuitableTopic
	}

	// 评分：信号越界的选题在此被拒绝，不会进入任务
	var invalidErr error
	scored := make([]model.Topic, 0, len(topics))
	for _, t := range topics {
		if t.Category == "" {
			t.Category = category
		}
		score, err := o.scorer.Score(t.Signals)
		if err != nil {
			o.log.Warnf("选题被拒绝: %s, 原因: %v", t.Title, err)
			invalidErr = err
			continue
		}
		if score < o.cfg.Content.MinTrendScore {
			o.log.Debugf("选题分数不足: %s (%.2f < %.2f)", t.Title, score, o.cfg.Content.MinTrendScore)
			continue
		}
		t.Score = score
		scored = append(scored, t)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	// 判重：取分数最高且不与近期发布重复的选题
	var chosen *model.Topic
	for i := range scored {
		dup, sim, matched := o.detector.IsDuplicate(scored[i].Title)
		if dup {
			o.log.Infof("选题判重被过滤: %s (相似度 %.2f, 撞上: %s)", scored[i].Title, sim, matched)
			continue
		}
		chosen = &scored[i]
		break
	}
	if chosen == nil {
		if len(scored) == 0 && invalidErr != nil {
			return nil, invalidErr
		}
		return nil, ErrNoSuitableTopic
	}

	job := &model.Job{
		ID:       uuid.New().String(),
		Category: category,
		Topic:    *chosen,
		State:    model.JobStateCreated,
	}
	if err := o.db.Create(job).Error; err != nil {
		return nil, fmt.Errorf("创建任务失败: %w", err)
	}

	// 评分与判重完成于 Created 和 Scored 之间，此处进入待处理队列
	if err := job.Transition(model.JobStateScored); err != nil {
		return nil, err
	}
	o.save(job)
	o.log.Infof("📋 任务已创建: JobID=%s, 选题: %s (分数 %.2f)", job.ID, chosen.Title, chosen.Score)
	return job, nil
}

// Process 驱动一个已认领的任务走完剩余阶段。
// 崩溃恢复时从 CurrentStage 对应的阶段继续，已完成的阶段不会重跑。
func (o *Orchestrator) Process(ctx context.Context, job *model.Job) {
	o.log.Infof("🔄 开始处理任务: JobID=%s, 当前状态: %s", job.ID, job.State)

	for _, step := range o.steps() {
		if job.State.Ordinal() > step.state.Ordinal() {
			continue // 恢复场景：该阶段已经完成
		}
		if o.cancelIfRequested(job) {
			return
		}
		o.enterStage(job, step.state, step.stage)
		if err := o.runner.Run(ctx, job, step.stage, step.run); err != nil {
			if ctx.Err() != nil {
				o.interrupt(job)
				return
			}
			o.fail(job, err)
			return
		}
		o.save(job)
	}

	// 质量闸：每次进入 QualityChecking 只评估一次
	if job.State.Ordinal() < model.JobStateApproved.Ordinal() {
		if o.cancelIfRequested(job) {
			return
		}
		o.enterState(job, model.JobStateQualityChecking)

		report := o.gate.Evaluate(ArtifactBundle{
			Title:           job.Title,
			Script:          job.ScriptText,
			Category:        job.Category,
			DurationSeconds: job.DurationSeconds,
		})
		report.JobID = job.ID
		if err := o.db.Create(report).Error; err != nil {
			o.log.Errorf("保存质量报告失败: JobID=%s, 错误: %v", job.ID, err)
		}

		if !report.Pass {
			// 硬规则违反不自动重试，重新生产是运营决策
			o.reject(job, report.HardFailReason())
			return
		}
		o.enterState(job, model.JobStateApproved)
	}

	// 发布
	if o.cancelIfRequested(job) {
		return
	}
	o.enterStage(job, model.JobStatePublishing, model.StagePublish)
	if err := o.runner.Run(ctx, job, model.StagePublish, o.runPublish); err != nil {
		if ctx.Err() != nil {
			o.interrupt(job)
			return
		}
		o.fail(job, err)
		return
	}

	o.enterState(job, model.JobStatePublished)
	o.rememberPublished(job)
	o.log.Infof("✅ 任务发布完成: JobID=%s, PublishedID=%s", job.ID, job.PublishedID)
}

// CancelJob 请求取消任务。排队中的任务直接进入 cancelled，
// 处理中的任务标记取消请求，由持有它的工作协程在当前阶段结束后落地。
func (o *Orchestrator) CancelJob(jobID string) error {
	var job model.Job
	if err := o.db.First(&job, "id = ?", jobID).Error; err != nil {
		return err
	}
	if job.State.IsTerminal() {
		return fmt.Errorf("任务 %s 已处于终态 %s", jobID, job.State)
	}

	// 未被认领的排队任务直接取消；state 条件保证不与认领事务竞争
	result := o.db.Model(&model.Job{}).
		Where("id = ? AND state = ? AND claimed = ?", jobID, model.JobStateScored, false).
		Updates(map[string]any{
			"cancel_requested": true,
			"state":            model.JobStateCancelled,
			"failure_reason":   "操作员取消",
			"finished_at":      time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		o.log.Infof("任务已取消（未开始处理）: JobID=%s", jobID)
		return nil
	}

	// 处理中：协作等待当前阶段执行完毕
	return o.db.Model(&model.Job{}).Where("id = ?", jobID).
		Update("cancel_requested", true).Error
}

// GetJob 返回任务当前状态及完整的执行历史和质量报告
func (o *Orchestrator) GetJob(jobID string) (*model.Job, error) {
	var job model.Job
	err := o.db.
		Preload("Attempts", func(db *gorm.DB) *gorm.DB { return db.Order("started_at ASC") }).
		Preload("Reports", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&job, "id = ?", jobID).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// steps 成功路径上由 StageRunner 执行的生产阶段
func (o *Orchestrator) steps() []stageStep {
	return []stageStep{
		{model.JobStateScripting, model.StageScript, o.runScript},
		{model.JobStateVoicing, model.StageVoice, o.runVoice},
		{model.JobStateAssetGathering, model.StageVisuals, o.runVisuals},
		{model.JobStateRendering, model.StageRender, o.runRender},
		{model.JobStateThumbnailGenerating, model.StageThumbnail, o.runThumbnail},
	}
}

func (o *Orchestrator) runScript(ctx context.Context, job *model.Job) error {
	script, err := o.collab.Script.Generate(ctx, job.Topic)
	if err != nil {
		return err
	}
	job.Title = script.Title
	if job.Title == "" {
		job.Title = job.Topic.Title
	}
	job.ScriptText = script.Body
	job.Description = script.Description
	job.Tags = script.Tags
	job.ThumbnailText = script.ThumbnailText
	return nil
}

func (o *Orchestrator) runVoice(ctx context.Context, job *model.Job) error {
	audioPath, err := o.collab.Voice.Synthesize(ctx, job.ID, o.scriptOf(job))
	if err != nil {
		return err
	}
	job.AudioPath = audioPath
	return nil
}

func (o *Orchestrator) runVisuals(ctx context.Context, job *model.Job) error {
	assets, err := o.collab.Visuals.Gather(ctx, o.scriptOf(job))
	if err != nil {
		return err
	}
	job.AssetPaths = assets
	return nil
}

func (o *Orchestrator) runRender(ctx context.Context, job *model.Job) error {
	videoPath, duration, err := o.collab.Render.Render(ctx, job.ID, o.scriptOf(job), job.AudioPath, job.AssetPaths)
	if err != nil {
		return err
	}
	job.VideoPath = videoPath
	job.DurationSeconds = duration
	return nil
}

func (o *Orchestrator) runThumbnail(ctx context.Context, job *model.Job) error {
	text := job.ThumbnailText
	if text == "" {
		text = job.Title
	}
	thumbPath, err := o.collab.Thumbnail.Generate(ctx, job.ID, text)
	if err != nil {
		return err
	}
	job.ThumbnailPath = thumbPath
	return nil
}

func (o *Orchestrator) runPublish(ctx context.Context, job *model.Job) error {
	publishedID, err := o.collab.Publish.Publish(ctx, job.VideoPath, job.ThumbnailPath, PublishMetadata{
		Title:       job.Title,
		Description: job.Description,
		Tags:        job.Tags,
		Category:    job.Category,
	})
	if err != nil {
		return err
	}
	job.PublishedID = publishedID
	return nil
}

// scriptOf 从任务产物字段还原脚本对象
func (o *Orchestrator) scriptOf(job *model.Job) *Script {
	return &Script{
		Title:         job.Title,
		Body:          job.ScriptText,
		Description:   job.Description,
		Tags:          job.Tags,
		ThumbnailText: job.ThumbnailText,
	}
}

// cancelIfRequested 检查取消请求。取消是协作式的：只在阶段边界落地。
func (o *Orchestrator) cancelIfRequested(job *model.Job) bool {
	var requested bool
	err := o.db.Model(&model.Job{}).Select("cancel_requested").
		Where("id = ?", job.ID).Scan(&requested).Error
	if err != nil {
		o.log.Errorf("读取取消标记失败: JobID=%s, 错误: %v", job.ID, err)
		return false
	}
	if !requested {
		return false
	}

	job.CancelRequested = true
	if err := job.Transition(model.JobStateCancelling); err == nil {
		o.save(job)
	}
	job.FailureReason = "操作员取消"
	if err := job.Transition(model.JobStateCancelled); err != nil {
		o.log.Errorf("取消任务失败: JobID=%s, 错误: %v", job.ID, err)
		return false
	}
	o.save(job)
	o.log.Infof("任务已取消: JobID=%s", job.ID)
	return true
}

// enterStage 进入一个生产阶段并持久化
func (o *Orchestrator) enterStage(job *model.Job, state model.JobState, stage model.Stage) {
	job.CurrentStage = stage
	o.enterState(job, state)
}

func (o *Orchestrator) enterState(job *model.Job, state model.JobState) {
	if job.State == state {
		return // 崩溃恢复：任务停在该状态，直接继续
	}
	if err := job.Transition(state); err != nil {
		// 转换被状态机拒绝说明编排有 bug，记下来便于排查
		o.log.Errorf("状态转换被拒绝: JobID=%s, 错误: %v", job.ID, err)
		return
	}
	o.save(job)
}

// interrupt 停机打断当前阶段。任务保持非终态, 认领标记在下次启动时被重置,
// 与进程崩溃走同一条恢复路径。
func (o *Orchestrator) interrupt(job *model.Job) {
	o.log.Infof("⏸ 处理被停机打断, 任务等待恢复: JobID=%s, 阶段: %s, 状态: %s",
		job.ID, job.CurrentStage, job.State)
}

func (o *Orchestrator) fail(job *model.Job, cause error) {
	job.FailureReason = cause.Error()
	if err := job.Transition(model.JobStateFailed); err != nil {
		o.log.Errorf("置为失败状态出错: JobID=%s, 错误: %v", job.ID, err)
		return
	}
	o.save(job)
	o.log.Errorf("💀 任务失败: JobID=%s, 阶段: %s, 原因: %v", job.ID, job.CurrentStage, cause)
}

func (o *Orchestrator) reject(job *model.Job, reason string) {
	job.FailureReason = reason
	if err := job.Transition(model.JobStateRejected); err != nil {
		o.log.Errorf("置为拒绝状态出错: JobID=%s, 错误: %v", job.ID, err)
		return
	}
	o.save(job)
	o.log.Warnf("⛔ 任务被质量闸拒绝: JobID=%s, 原因: %s", job.ID, reason)
}

// rememberPublished 将发布标题写入判重窗口并裁剪超出窗口的旧记录
func (o *Orchestrator) rememberPublished(job *model.Job) {
	o.detector.Remember(job.Title)

	record := &model.PublishedTitle{
		Title:       job.Title,
		JobID:       job.ID,
		PublishedAt: time.Now(),
	}
	if err := o.db.Create(record).Error; err != nil {
		o.log.Errorf("写入发布标题失败: JobID=%s, 错误: %v", job.ID, err)
		return
	}

	window := o.cfg.Content.RecentTitleWindow
	if window <= 0 {
		return
	}
	var count int64
	o.db.Model(&model.PublishedTitle{}).Count(&count)
	if count > int64(window) {
		var cutoff model.PublishedTitle
		if err := o.db.Order("published_at DESC").Offset(window - 1).First(&cutoff).Error; err == nil {
			o.db.Where("published_at < ?", cutoff.PublishedAt).Delete(&model.PublishedTitle{})
		}
	}
}

func (o *Orchestrator) save(job *model.Job) {
	if err := o.db.Save(job).Error; err != nil {
		o.log.Errorf("保存任务失败: JobID=%s, 错误: %v", job.ID, err)
	}
	if o.notify != nil {
		o.notify(job)
	}
}

// LoadRecentTitles 按发布时间升序加载判重窗口的种子数据
func LoadRecentTitles(db *gorm.DB, window int) ([]string, error) {
	var rows []model.PublishedTitle
	query := db.Order("published_at DESC")
	if window > 0 {
		query = query.Limit(window)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		titles = append(titles, rows[i].Title)
	}
	return titles, nil
}

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
