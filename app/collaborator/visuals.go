package collaborator

import (
	"context"
	"fmt"
	"strings"

	"auto-tube/app/config"
	"auto-tube/app/pipeline"

	"resty.dev/v3"
)

// VisualGatherer 视觉素材协作方的适配器，返回素材的远端句柄供渲染方取用
type VisualGatherer struct {
	client *resty.Client
	count  int
}

type visualsResponse struct {
	Assets []struct {
		URL string `json:"url"`
	} `json:"assets"`
}

// NewVisualGatherer 创建视觉素材适配器
func NewVisualGatherer(cfg config.CollaboratorsConfig) *VisualGatherer {
	client := resty.New()
	client.SetBaseURL(cfg.Visuals.BaseURL)
	client.SetQueryParam("api_key", cfg.Visuals.APIKey)

	return &VisualGatherer{
		client: client,
		count:  5,
	}
}

// Gather 按脚本标题和标签检索素材
func (g *VisualGatherer) Gather(ctx context.Context, script *pipeline.Script) ([]string, error) {
	query := script.Title
	if len(script.Tags) > 0 {
		query += " " + strings.Join(script.Tags[:minInt(3, len(script.Tags))], " ")
	}

	var response visualsResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		SetQueryParam("count", fmt.Sprintf("%d", g.count)).
		SetResult(&response).
		Get("/search")

	if err != nil {
		return nil, fmt.Errorf("请求视觉素材失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, statusError("素材检索", resp)
	}
	if len(response.Assets) == 0 {
		return nil, fmt.Errorf("没有检索到可用素材: %s", query)
	}

	assets := make([]string, 0, len(response.Assets))
	for _, a := range response.Assets {
		assets = append(assets, a.URL)
	}
	return assets, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
