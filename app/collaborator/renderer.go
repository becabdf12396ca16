package collaborator

import (
	"context"
	"fmt"

	"auto-tube/app/config"
	"auto-tube/app/pipeline"

	"resty.dev/v3"
)

// VideoRenderer 渲染协作方的适配器。渲染服务同步返回成片句柄和实际时长。
type VideoRenderer struct {
	client *resty.Client
}

type renderRequest struct {
	JobID     string   `json:"job_id"`
	Title     string   `json:"title"`
	Script    string   `json:"script"`
	AudioPath string   `json:"audio_path"`
	Assets    []string `json:"assets"`
}

type renderResponse struct {
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds"`
}

// NewVideoRenderer 创建渲染适配器
func NewVideoRenderer(cfg config.CollaboratorsConfig) *VideoRenderer {
	client := resty.New()
	client.SetBaseURL(cfg.Render.BaseURL)
	client.SetAuthToken(cfg.Render.APIKey)

	return &VideoRenderer{client: client}
}

// Render 渲染成片
func (r *VideoRenderer) Render(ctx context.Context, jobID string, script *pipeline.Script,
	audioPath string, assets []string) (string, int, error) {

	var response renderResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(renderRequest{
			JobID:     jobID,
			Title:     script.Title,
			Script:    script.Body,
			AudioPath: audioPath,
			Assets:    assets,
		}).
		SetResult(&response).
		Post("/render")

	if err != nil {
		return "", 0, fmt.Errorf("请求视频渲染失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", 0, statusError("视频渲染", resp)
	}
	if response.VideoURL == "" || response.DurationSeconds <= 0 {
		return "", 0, fmt.Errorf("渲染响应不完整: url=%q, duration=%d", response.VideoURL, response.DurationSeconds)
	}

	return response.VideoURL, response.DurationSeconds, nil
}
