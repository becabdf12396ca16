package pipeline

import (
	"auto-tube/app/config"
	"auto-tube/app/model"
)

// TrendScorer 根据采集协作方给出的归一化信号计算综合趋势分。
// 纯函数，相同输入永远得到相同分数，重试后的重新评分因此是幂等的。
type TrendScorer struct {
	weights config.TrendWeights
}

// NewTrendScorer 创建趋势评分器
func NewTrendScorer(weights config.TrendWeights) *TrendScorer {
	return &TrendScorer{weights: weights}
}

// Score 计算趋势分。任一信号超出 [0,1] 返回 InvalidSignalRangeError。
// 竞争度取反向：竞争越低得分越高。
func (s *TrendScorer) Score(sig model.TrendSignals) (float64, error) {
	checks := []struct {
		name  string
		value float64
	}{
		{"search_volume", sig.SearchVolume},
		{"recency", sig.Recency},
		{"engagement", sig.Engagement},
		{"relevance", sig.Relevance},
		{"competition", sig.Competition},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > 1 {
			return 0, &InvalidSignalRangeError{Signal: c.name, Value: c.value}
		}
	}

	score := s.weights.SearchVolume*sig.SearchVolume +
		s.weights.Recency*sig.Recency +
		s.weights.Engagement*sig.Engagement +
		s.weights.Relevance*sig.Relevance +
		s.weights.Competition*(1-sig.Competition)

	// 权重之和为 1 时结果天然落在 [0,1]，这里再夹一次防配置偏差
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}
