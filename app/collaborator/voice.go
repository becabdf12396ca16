package collaborator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"auto-tube/app/config"
	"auto-tube/app/pipeline"

	"resty.dev/v3"
)

// VoiceSynthesizer 语音合成协作方的适配器，合成结果落到本地音频文件
type VoiceSynthesizer struct {
	client    *resty.Client
	voiceID   string
	outputDir string
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// NewVoiceSynthesizer 创建语音合成适配器
func NewVoiceSynthesizer(cfg config.CollaboratorsConfig) *VoiceSynthesizer {
	client := resty.New()
	client.SetBaseURL(cfg.Voice.BaseURL)
	client.SetHeader("xi-api-key", cfg.Voice.APIKey)

	return &VoiceSynthesizer{
		client:    client,
		voiceID:   cfg.VoiceID,
		outputDir: filepath.Join(cfg.OutputDir, "audio"),
	}
}

// Synthesize 将脚本正文合成为语音，返回音频文件路径
func (v *VoiceSynthesizer) Synthesize(ctx context.Context, jobID string, script *pipeline.Script) (string, error) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetBody(synthesizeRequest{
			Text:    script.Body,
			VoiceID: v.voiceID,
		}).
		Post("/synthesize")

	if err != nil {
		return "", fmt.Errorf("请求语音合成失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", statusError("语音合成", resp)
	}

	audio := resp.Bytes()
	if len(audio) == 0 {
		return "", fmt.Errorf("语音合成返回了空音频")
	}

	if err := os.MkdirAll(v.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建音频目录失败: %w", err)
	}
	audioPath := filepath.Join(v.outputDir, jobID+".mp3")
	if err := os.WriteFile(audioPath, audio, 0644); err != nil {
		return "", fmt.Errorf("写入音频文件失败: %w", err)
	}
	return audioPath, nil
}
