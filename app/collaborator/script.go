package collaborator

import (
	"context"
	"fmt"

	"auto-tube/app/config"
	"auto-tube/app/model"
	"auto-tube/app/pipeline"

	"resty.dev/v3"
)

// ScriptGenerator 脚本生成协作方（大语言模型服务）的适配器
type ScriptGenerator struct {
	client *resty.Client
	model  string
}

type scriptRequest struct {
	Model    string   `json:"model"`
	Topic    string   `json:"topic"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
}

type scriptResponse struct {
	Title         string   `json:"title"`
	Script        string   `json:"script"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	ThumbnailText string   `json:"thumbnail_text"`
}

// NewScriptGenerator 创建脚本生成适配器
func NewScriptGenerator(cfg config.CollaboratorsConfig) *ScriptGenerator {
	client := resty.New()
	client.SetBaseURL(cfg.Script.BaseURL)
	client.SetAuthToken(cfg.Script.APIKey)

	return &ScriptGenerator{
		client: client,
		model:  cfg.ScriptModel,
	}
}

// Generate 根据选题生成视频脚本
func (g *ScriptGenerator) Generate(ctx context.Context, topic model.Topic) (*pipeline.Script, error) {
	var response scriptResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(scriptRequest{
			Model:    g.model,
			Topic:    topic.Title,
			Keywords: topic.Keywords,
			Category: topic.Category,
		}).
		SetResult(&response).
		Post("/generate")

	if err != nil {
		return nil, fmt.Errorf("请求脚本生成失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, statusError("脚本生成", resp)
	}
	if response.Script == "" {
		return nil, fmt.Errorf("脚本生成返回了空内容")
	}

	return &pipeline.Script{
		Title:         response.Title,
		Body:          response.Script,
		Description:   response.Description,
		Tags:          response.Tags,
		ThumbnailText: response.ThumbnailText,
	}, nil
}
