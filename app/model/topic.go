package model

// TrendSignals 采集协作方给出的原始信号，均已归一化到 [0,1]
type TrendSignals struct {
	SearchVolume float64 `json:"search_volume"`
	Recency      float64 `json:"recency"`
	Engagement   float64 `json:"engagement"`
	Relevance    float64 `json:"relevance"`
	Competition  float64 `json:"competition"`
}

// Topic 候选选题，由采集协作方创建，附加到 Job 后不再变更
type Topic struct {
	ID       string       `json:"id" gorm:"size:64"`
	Title    string       `json:"title"`
	Keywords []string     `json:"keywords" gorm:"serializer:json"`
	Signals  TrendSignals `json:"signals" gorm:"embedded;embeddedPrefix:signal_"`
	Score    float64      `json:"score"`    // TrendScorer 计算的综合趋势分
	Category string       `json:"category"` // 分类标签
}
