package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoSuitableTopic 评分与判重之后没有可生产的选题，任务不会被创建
var ErrNoSuitableTopic = errors.New("没有满足条件的候选选题")

// InvalidSignalRangeError 评分输入越界。出现该错误的选题在任务创建前即被拒绝。
type InvalidSignalRangeError struct {
	Signal string
	Value  float64
}

func (e *InvalidSignalRangeError) Error() string {
	return fmt.Sprintf("信号 %s 超出 [0,1] 范围: %v", e.Signal, e.Value)
}

// RetryableError 协作方的瞬时失败，按阶段重试策略处理
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "可重试失败: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable 将错误标记为可重试
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// FatalError 不可恢复的失败，任务以 failed 终止
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "致命失败: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal 将错误标记为致命，跳过重试
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal 判断错误是否为致命失败
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// QualityRejectionError 硬规则被违反，任务以 rejected 终止且不自动重试
type QualityRejectionError struct {
	Reason string
}

func (e *QualityRejectionError) Error() string {
	return "质量检查未通过: " + e.Reason
}
