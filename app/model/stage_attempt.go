package model

import (
	"time"
)

// AttemptOutcome 单次阶段执行的结果
type AttemptOutcome string

const (
	AttemptSuccess          AttemptOutcome = "success"
	AttemptRetryableFailure AttemptOutcome = "retryable_failure"
	AttemptFatalFailure     AttemptOutcome = "fatal_failure"
)

// StageAttempt 某个任务某个阶段的一次执行记录，只追加不修改
type StageAttempt struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	JobID     string         `json:"job_id" gorm:"size:36;not null;index"`
	Stage     Stage          `json:"stage" gorm:"size:32;not null"`
	Attempt   int            `json:"attempt" gorm:"not null"` // 从 1 开始
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Outcome   AttemptOutcome `json:"outcome" gorm:"size:32"`
	ErrorMsg  string         `json:"error_msg" gorm:"type:text"`
}

// TableName 指定表名
func (StageAttempt) TableName() string {
	return "stage_attempts"
}
