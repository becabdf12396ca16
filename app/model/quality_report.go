package model

import (
	"time"
)

// 质量规则标识
const (
	RuleContentSafety       = "content_safety"
	RuleDurationFit         = "duration_fit"
	RuleDuplicateSimilarity = "duplicate_similarity"
	RuleTitleQuality        = "title_quality"
)

// RuleSeverity 规则级别：hard 违反即拦截发布，soft 仅记录
type RuleSeverity string

const (
	SeverityHard RuleSeverity = "hard"
	SeveritySoft RuleSeverity = "soft"
)

// RuleViolation 一条被违反的规则及原因
type RuleViolation struct {
	RuleID   string       `json:"rule_id"`
	Severity RuleSeverity `json:"severity"`
	Reason   string       `json:"reason"`
}

// QualityReport 一次质量闸评估的结果，重复评估产生新记录，旧记录保留备查
type QualityReport struct {
	ID         uint            `json:"id" gorm:"primarykey"`
	JobID      string          `json:"job_id" gorm:"size:36;not null;index"`
	Pass       bool            `json:"pass"`
	Violations []RuleViolation `json:"violations" gorm:"serializer:json"`

	// 各维度子分数
	ContentSafety       float64 `json:"content_safety"`
	DurationFit         float64 `json:"duration_fit"`
	TitleQuality        float64 `json:"title_quality"`
	DuplicateSimilarity float64 `json:"duplicate_similarity"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (QualityReport) TableName() string {
	return "quality_reports"
}

// HardFailReason 返回第一条硬规则违反的原因，没有则返回空串
func (r *QualityReport) HardFailReason() string {
	for _, v := range r.Violations {
		if v.Severity == SeverityHard {
			return v.Reason
		}
	}
	return ""
}
