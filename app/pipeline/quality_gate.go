package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"auto-tube/app/config"
	"auto-tube/app/model"
)

// ForbiddenTermSource 提供当前生效的违禁词列表
type ForbiddenTermSource interface {
	Terms() []string
}

// QualityGate 在发布前评估成品。硬规则违反即拦截，软规则只记录不拦截。
type QualityGate struct {
	cfg       config.ContentConfig
	forbidden ForbiddenTermSource
	detector  *DuplicateDetector
}

// ArtifactBundle 质量闸的评估输入：已组装完成的任务产物
type ArtifactBundle struct {
	Title           string
	Script          string
	Category        string
	DurationSeconds int
}

var (
	titleNumberRe  = regexp.MustCompile(`[0-9０-９]`)
	titleBracketRe = regexp.MustCompile(`[【】\[\]]`)
	titlePunctRe   = regexp.MustCompile(`[!?！？]`)
)

// NewQualityGate 创建质量闸
func NewQualityGate(cfg config.ContentConfig, forbidden ForbiddenTermSource, detector *DuplicateDetector) *QualityGate {
	return &QualityGate{
		cfg:       cfg,
		forbidden: forbidden,
		detector:  detector,
	}
}

// Evaluate 评估成品并生成质量报告。报告由调用方负责持久化。
func (g *QualityGate) Evaluate(bundle ArtifactBundle) *model.QualityReport {
	report := &model.QualityReport{
		ContentSafety: 1.0,
		DurationFit:   1.0,
	}

	// 内容安全（硬规则）：标题加脚本一起扫描，大小写不敏感的子串匹配
	text := strings.ToLower(bundle.Title + " " + bundle.Script)
	for _, term := range g.forbidden.Terms() {
		if term == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(term)) {
			report.ContentSafety = 0
			report.Violations = append(report.Violations, model.RuleViolation{
				RuleID:   model.RuleContentSafety,
				Severity: model.SeverityHard,
				Reason:   fmt.Sprintf("检测到违禁词: %s", term),
			})
		}
	}

	// 时长（硬规则）：按分类取闭区间
	r := g.cfg.DurationRangeFor(bundle.Category)
	if bundle.DurationSeconds < r.Min || bundle.DurationSeconds > r.Max {
		report.DurationFit = 0
		report.Violations = append(report.Violations, model.RuleViolation{
			RuleID:   model.RuleDurationFit,
			Severity: model.SeverityHard,
			Reason:   fmt.Sprintf("duration out of range: %ds (允许 %d-%ds)", bundle.DurationSeconds, r.Min, r.Max),
		})
	}

	// 重复度（硬规则）：复用判重器对近期发布窗口的结果
	sim, matched := g.detector.Check(bundle.Title)
	report.DuplicateSimilarity = sim
	if sim >= g.detector.Threshold() {
		report.Violations = append(report.Violations, model.RuleViolation{
			RuleID:   model.RuleDuplicateSimilarity,
			Severity: model.SeverityHard,
			Reason:   fmt.Sprintf("与已发布标题过于相似 (%.2f): %s", sim, matched),
		})
	}

	// 标题质量（软规则）
	report.TitleQuality = g.scoreTitle(bundle.Title)
	if report.TitleQuality < g.cfg.MinTitleScore {
		report.Violations = append(report.Violations, model.RuleViolation{
			RuleID:   model.RuleTitleQuality,
			Severity: model.SeveritySoft,
			Reason:   fmt.Sprintf("标题质量分偏低: %.2f", report.TitleQuality),
		})
	}

	// 仅硬规则决定是否放行
	report.Pass = true
	for _, v := range report.Violations {
		if v.Severity == model.SeverityHard {
			report.Pass = false
			break
		}
	}
	return report
}

// scoreTitle 标题质量启发式打分，0-1。
// 数字和括号强调有利于点击率，理想长度区间权重最高。
func (g *QualityGate) scoreTitle(title string) float64 {
	score := 0.0
	length := utf8.RuneCountInString(title)

	if length >= g.cfg.TitleMinLength && length <= g.cfg.TitleMaxLength {
		score += 0.3
	}
	if titleNumberRe.MatchString(title) {
		score += 0.2
	}
	if titleBracketRe.MatchString(title) {
		score += 0.2
	}
	if titlePunctRe.MatchString(title) {
		score += 0.15
	}
	// 关键词靠前：开头有实际内容
	if length > 5 {
		score += 0.15
	}
	return score
}
