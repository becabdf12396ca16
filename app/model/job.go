package model

import (
	"fmt"
	"time"
)

// JobState 任务状态
type JobState string

const (
	JobStateCreated             JobState = "created"
	JobStateScored              JobState = "scored"
	JobStateScripting           JobState = "scripting"
	JobStateVoicing             JobState = "voicing"
	JobStateAssetGathering      JobState = "asset_gathering"
	JobStateRendering           JobState = "rendering"
	JobStateThumbnailGenerating JobState = "thumbnail_generating"
	JobStateQualityChecking     JobState = "quality_checking"
	JobStateApproved            JobState = "approved"
	JobStatePublishing          JobState = "publishing"
	JobStatePublished           JobState = "published"
	JobStateRejected            JobState = "rejected"
	JobStateFailed              JobState = "failed"
	JobStateCancelling          JobState = "cancelling"
	JobStateCancelled           JobState = "cancelled"
)

// stateOrder 成功路径上各状态的先后顺序，用于禁止回退转换
var stateOrder = map[JobState]int{
	JobStateCreated:             0,
	JobStateScored:              1,
	JobStateScripting:           2,
	JobStateVoicing:             3,
	JobStateAssetGathering:      4,
	JobStateRendering:           5,
	JobStateThumbnailGenerating: 6,
	JobStateQualityChecking:     7,
	JobStateApproved:            8,
	JobStatePublishing:          9,
	JobStatePublished:           10,
}

// Ordinal 返回状态在成功路径上的序号，不在成功路径上返回 -1
func (s JobState) Ordinal() int {
	if ord, ok := stateOrder[s]; ok {
		return ord
	}
	return -1
}

// IsTerminal 是否为终态
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStatePublished, JobStateRejected, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// Stage 流水线阶段名
type Stage string

const (
	StageScript    Stage = "script"
	StageVoice     Stage = "voice"
	StageVisuals   Stage = "visuals"
	StageRender    Stage = "render"
	StageThumbnail Stage = "thumbnail"
	StagePublish   Stage = "publish"
)

// Job 一次端到端的视频生产任务，由编排器独占持有
type Job struct {
	ID              string   `json:"id" gorm:"primarykey;size:36"`
	Category        string   `json:"category" gorm:"size:32;index"`
	Topic           Topic    `json:"topic" gorm:"embedded;embeddedPrefix:topic_"`
	State           JobState `json:"state" gorm:"size:32;index;default:'created'"`
	CurrentStage    Stage    `json:"current_stage" gorm:"size:32"`
	Claimed         bool     `json:"-" gorm:"default:false;index"` // 是否已被工作协程认领
	CancelRequested bool     `json:"cancel_requested" gorm:"default:false"`

	// 各阶段产物引用
	Title           string   `json:"title"`
	ScriptText      string   `json:"script_text" gorm:"type:text"`
	Description     string   `json:"description" gorm:"type:text"`
	Tags            []string `json:"tags" gorm:"serializer:json"`
	ThumbnailText   string   `json:"thumbnail_text"`
	AudioPath       string   `json:"audio_path"`
	AssetPaths      []string `json:"asset_paths" gorm:"serializer:json"`
	VideoPath       string   `json:"video_path"`
	ThumbnailPath   string   `json:"thumbnail_path"`
	DurationSeconds int      `json:"duration_seconds"`
	PublishedID     string   `json:"published_id"`

	FailureReason string     `json:"failure_reason"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at"`

	Attempts []StageAttempt  `json:"attempts,omitempty" gorm:"foreignKey:JobID"`
	Reports  []QualityReport `json:"reports,omitempty" gorm:"foreignKey:JobID"`
}

// TableName 指定表名
func (Job) TableName() string {
	return "jobs"
}

// Transition 校验并执行状态转换。
// 成功路径上的状态只能前进；Rejected 仅能从 QualityChecking 进入；
// Failed/Cancelling 可从任意非终态进入；终态之后不再变更。
func (j *Job) Transition(to JobState) error {
	from := j.State

	if from.IsTerminal() {
		return fmt.Errorf("任务 %s 已处于终态 %s，不能转换到 %s", j.ID, from, to)
	}

	switch to {
	case JobStateRejected:
		if from != JobStateQualityChecking {
			return fmt.Errorf("任务 %s 不能从 %s 进入 rejected", j.ID, from)
		}
	case JobStateFailed, JobStateCancelling:
		// 任意非终态均可进入
	case JobStateCancelled:
		if from != JobStateCancelling && from != JobStateScored {
			return fmt.Errorf("任务 %s 不能从 %s 进入 cancelled", j.ID, from)
		}
	default:
		fromOrd, okFrom := stateOrder[from]
		toOrd, okTo := stateOrder[to]
		if !okFrom || !okTo {
			return fmt.Errorf("任务 %s 非法状态转换: %s -> %s", j.ID, from, to)
		}
		if toOrd <= fromOrd {
			return fmt.Errorf("任务 %s 状态不允许回退: %s -> %s", j.ID, from, to)
		}
	}

	j.State = to
	if to.IsTerminal() {
		now := time.Now()
		j.FinishedAt = &now
	}
	return nil
}
