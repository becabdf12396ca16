package pipeline

import (
	"errors"
	"math"
	"testing"

	"auto-tube/app/config"
	"auto-tube/app/model"
)

func defaultWeights() config.TrendWeights {
	return config.TrendWeights{
		SearchVolume: 0.30,
		Recency:      0.25,
		Engagement:   0.25,
		Relevance:    0.10,
		Competition:  0.10,
	}
}

func TestScoreWeightedSum(t *testing.T) {
	scorer := NewTrendScorer(defaultWeights())

	sig := model.TrendSignals{
		SearchVolume: 0.8,
		Recency:      0.6,
		Engagement:   0.7,
		Relevance:    0.9,
		Competition:  0.4,
	}
	got, err := scorer.Score(sig)
	if err != nil {
		t.Fatalf("评分失败: %v", err)
	}

	// 竞争度反向计入: 0.30*0.8 + 0.25*0.6 + 0.25*0.7 + 0.10*0.9 + 0.10*(1-0.4)
	want := 0.715
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("期望 %.4f, 得到 %.4f", want, got)
	}
}

func TestScoreDeterministic(t *testing.T) {
	scorer := NewTrendScorer(defaultWeights())
	sig := model.TrendSignals{
		SearchVolume: 0.5,
		Recency:      0.5,
		Engagement:   0.5,
		Relevance:    0.5,
		Competition:  0.5,
	}

	first, err := scorer.Score(sig)
	if err != nil {
		t.Fatalf("评分失败: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := scorer.Score(sig)
		if err != nil {
			t.Fatalf("评分失败: %v", err)
		}
		if again != first {
			t.Fatalf("相同输入评分不一致: %v != %v", again, first)
		}
	}
}

func TestScoreStaysInUnitRange(t *testing.T) {
	scorer := NewTrendScorer(defaultWeights())

	cases := []model.TrendSignals{
		{},
		{SearchVolume: 1, Recency: 1, Engagement: 1, Relevance: 1, Competition: 0},
		{SearchVolume: 1, Recency: 1, Engagement: 1, Relevance: 1, Competition: 1},
		{SearchVolume: 0.01, Recency: 0.99, Engagement: 0.5, Relevance: 0.3, Competition: 0.7},
	}
	for _, sig := range cases {
		got, err := scorer.Score(sig)
		if err != nil {
			t.Fatalf("评分失败: %+v: %v", sig, err)
		}
		if got < 0 || got > 1 {
			t.Fatalf("分数超出 [0,1]: %+v -> %v", sig, got)
		}
	}

	// 全信号拉满且无竞争时应当是满分
	perfect, _ := scorer.Score(model.TrendSignals{
		SearchVolume: 1, Recency: 1, Engagement: 1, Relevance: 1, Competition: 0,
	})
	if math.Abs(perfect-1.0) > 1e-9 {
		t.Fatalf("满信号期望 1.0, 得到 %v", perfect)
	}
}

func TestScoreRejectsOutOfRangeSignals(t *testing.T) {
	scorer := NewTrendScorer(defaultWeights())

	cases := []model.TrendSignals{
		{SearchVolume: -0.1, Recency: 0.5, Engagement: 0.5, Relevance: 0.5, Competition: 0.5},
		{SearchVolume: 0.5, Recency: 1.2, Engagement: 0.5, Relevance: 0.5, Competition: 0.5},
		{SearchVolume: 0.5, Recency: 0.5, Engagement: 0.5, Relevance: 0.5, Competition: 5},
	}
	for _, sig := range cases {
		_, err := scorer.Score(sig)
		if err == nil {
			t.Fatalf("越界信号应当返回错误: %+v", sig)
		}
		var rangeErr *InvalidSignalRangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("期望 InvalidSignalRangeError, 得到 %T: %v", err, err)
		}
	}
}
