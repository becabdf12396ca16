package collaborator

import (
	"context"
	"fmt"
	"time"

	"auto-tube/app/config"
	"auto-tube/app/model"

	"github.com/patrickmn/go-cache"
	"resty.dev/v3"
)

// NewsCollector 素材采集协作方的适配器。
// 同一分类的采集结果短暂缓存，避免调度抖动时重复打News API。
type NewsCollector struct {
	client *resty.Client
	cache  *cache.Cache
	ttl    time.Duration
}

type topicsResponse struct {
	Topics []model.Topic `json:"topics"`
}

// NewNewsCollector 创建素材采集适配器
func NewNewsCollector(cfg config.CollaboratorsConfig) *NewsCollector {
	client := resty.New()
	client.SetBaseURL(cfg.News.BaseURL)
	client.SetQueryParam("api_key", cfg.News.APIKey)

	ttl := time.Duration(cfg.NewsCacheTTL) * time.Second
	return &NewsCollector{
		client: client,
		cache:  cache.New(ttl, 10*time.Minute),
		ttl:    ttl,
	}
}

// Collect 采集指定分类的候选选题
func (n *NewsCollector) Collect(ctx context.Context, category string) ([]model.Topic, error) {
	cacheKey := "topics:" + category
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]model.Topic), nil
	}

	var response topicsResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParam("category", category).
		SetResult(&response).
		Get("/topics")

	if err != nil {
		return nil, fmt.Errorf("请求候选选题失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, statusError("采集选题", resp)
	}

	n.cache.Set(cacheKey, response.Topics, n.ttl)
	return response.Topics, nil
}
