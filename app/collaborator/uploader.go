package collaborator

import (
	"context"
	"fmt"

	"auto-tube/app/config"
	"auto-tube/app/pipeline"

	"resty.dev/v3"
)

// Uploader 发布平台的上传适配器。认证与配额归上传服务负责。
type Uploader struct {
	client  *resty.Client
	privacy string
}

type uploadRequest struct {
	VideoPath     string   `json:"video_path"`
	ThumbnailPath string   `json:"thumbnail_path"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	Category      string   `json:"category"`
	PrivacyStatus string   `json:"privacy_status"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

// NewUploader 创建上传适配器
func NewUploader(cfg config.CollaboratorsConfig) *Uploader {
	client := resty.New()
	client.SetBaseURL(cfg.Publish.BaseURL)
	client.SetAuthToken(cfg.Publish.APIKey)

	return &Uploader{
		client:  client,
		privacy: cfg.PrivacyState,
	}
}

// Publish 上传成片和封面，返回平台侧的发布ID
func (u *Uploader) Publish(ctx context.Context, videoPath, thumbnailPath string,
	meta pipeline.PublishMetadata) (string, error) {

	var response uploadResponse
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(uploadRequest{
			VideoPath:     videoPath,
			ThumbnailPath: thumbnailPath,
			Title:         meta.Title,
			Description:   meta.Description,
			Tags:          meta.Tags,
			Category:      meta.Category,
			PrivacyStatus: u.privacy,
		}).
		SetResult(&response).
		Post("/upload")

	if err != nil {
		return "", fmt.Errorf("请求视频上传失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", statusError("视频上传", resp)
	}
	if response.ID == "" {
		return "", fmt.Errorf("上传响应缺少发布ID")
	}
	return response.ID, nil
}
