package pipeline

import (
	"context"

	"auto-tube/app/model"
)

// Script 脚本生成协作方的产出
type Script struct {
	Title         string   `json:"title"`
	Body          string   `json:"body"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	ThumbnailText string   `json:"thumbnail_text"`
}

// PublishMetadata 发布时随视频提交的元数据
type PublishMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
}

// 外部协作方接口。各实现只是薄适配层，正确性归第三方负责。

// TopicCollector 采集指定分类的候选选题
type TopicCollector interface {
	Collect(ctx context.Context, category string) ([]model.Topic, error)
}

// ScriptGenerator 根据选题生成视频脚本
type ScriptGenerator interface {
	Generate(ctx context.Context, topic model.Topic) (*Script, error)
}

// VoiceSynthesizer 将脚本合成为语音，返回音频文件句柄
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, jobID string, script *Script) (string, error)
}

// VisualGatherer 为脚本搜集视觉素材
type VisualGatherer interface {
	Gather(ctx context.Context, script *Script) ([]string, error)
}

// VideoRenderer 渲染成片，返回视频句柄和实际时长（秒）
type VideoRenderer interface {
	Render(ctx context.Context, jobID string, script *Script, audioPath string, assets []string) (string, int, error)
}

// ThumbnailGenerator 生成封面图
type ThumbnailGenerator interface {
	Generate(ctx context.Context, jobID string, title string) (string, error)
}

// Publisher 将成片上传到发布平台
type Publisher interface {
	Publish(ctx context.Context, videoPath, thumbnailPath string, meta PublishMetadata) (string, error)
}

// Collaborators 流水线依赖的全部外部协作方
type Collaborators struct {
	Topics    TopicCollector
	Script    ScriptGenerator
	Voice     VoiceSynthesizer
	Visuals   VisualGatherer
	Render    VideoRenderer
	Thumbnail ThumbnailGenerator
	Publish   Publisher
}
