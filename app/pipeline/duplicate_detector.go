package pipeline

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// DuplicateDetector 基于词级 Jaccard 相似度判断候选标题是否与近期发布重复。
// 窗口为固定大小、按发布时间排序的环形缓冲，写入新标题时淘汰最旧的一条。
type DuplicateDetector struct {
	threshold float64
	size      int
	stopWords map[string]struct{}

	mu     sync.Mutex
	window []string
	folder cases.Caser
}

// NewDuplicateDetector 创建判重器。seed 为启动时从库中加载的近期标题，按发布时间升序。
func NewDuplicateDetector(threshold float64, windowSize int, stopWords []string, seed []string) *DuplicateDetector {
	sw := make(map[string]struct{}, len(stopWords))
	folder := cases.Fold()
	for _, w := range stopWords {
		sw[folder.String(w)] = struct{}{}
	}

	d := &DuplicateDetector{
		threshold: threshold,
		size:      windowSize,
		stopWords: sw,
		folder:    folder,
	}
	for _, t := range seed {
		d.Remember(t)
	}
	return d
}

// Check 返回候选标题与窗口内标题的最大相似度及对应的历史标题
func (d *DuplicateDetector) Check(title string) (float64, string) {
	candidate := d.tokenize(title)

	d.mu.Lock()
	defer d.mu.Unlock()

	var maxSim float64
	var matched string
	for _, prev := range d.window {
		sim := jaccard(candidate, d.tokenize(prev))
		if sim > maxSim {
			maxSim = sim
			matched = prev
		}
	}
	return maxSim, matched
}

// IsDuplicate 判断候选标题是否达到判重阈值
func (d *DuplicateDetector) IsDuplicate(title string) (bool, float64, string) {
	sim, matched := d.Check(title)
	return sim >= d.threshold, sim, matched
}

// Remember 将新发布的标题写入窗口，超出容量时淘汰最旧的一条
func (d *DuplicateDetector) Remember(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.window = append(d.window, title)
	if d.size > 0 && len(d.window) > d.size {
		d.window = d.window[len(d.window)-d.size:]
	}
}

// Threshold 返回判重阈值
func (d *DuplicateDetector) Threshold() float64 {
	return d.threshold
}

// tokenize 大小写折叠后按空白切词，并剔除停用词
func (d *DuplicateDetector) tokenize(title string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(d.folder.String(title)) {
		if _, skip := d.stopWords[w]; skip {
			continue
		}
		tokens[w] = struct{}{}
	}
	return tokens
}

// jaccard 交集大小除以并集大小。
// 任一侧为空集时返回 0（视为与一切都最不相似），避免退化标题误判重复。
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
