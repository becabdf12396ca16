package collaborator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"auto-tube/app/config"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	thumbnailWidth  = 1280
	thumbnailHeight = 720
)

// ThumbnailGenerator 封面图生成。本地渲染，不依赖外部服务：
// 深色底、描边大字标题、底部强调条。
type ThumbnailGenerator struct {
	outputDir string
	fontFile  string
}

// NewThumbnailGenerator 创建封面图生成器
func NewThumbnailGenerator(cfg config.CollaboratorsConfig) *ThumbnailGenerator {
	return &ThumbnailGenerator{
		outputDir: cfg.ThumbnailDir,
		fontFile:  cfg.FontFile,
	}
}

// Generate 渲染封面图并输出为 JPEG，返回文件路径
func (t *ThumbnailGenerator) Generate(ctx context.Context, jobID string, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dc := gg.NewContext(thumbnailWidth, thumbnailHeight)

	// 上深下浅的双色底
	dc.SetHexColor("#14213d")
	dc.Clear()
	dc.SetHexColor("#1d3557")
	dc.DrawRectangle(0, thumbnailHeight/2, thumbnailWidth, thumbnailHeight/2)
	dc.Fill()

	// 底部强调条
	dc.SetHexColor("#fca311")
	dc.DrawRectangle(0, thumbnailHeight-24, thumbnailWidth, 24)
	dc.Fill()

	if err := dc.LoadFontFace(t.fontFile, 96); err != nil {
		return "", fmt.Errorf("加载封面字体失败: %w", err)
	}

	// 描边标题：先黑色偏移描边再白色正文
	const margin = 80.0
	dc.SetHexColor("#000000")
	for _, off := range [][2]float64{{-3, -3}, {3, -3}, {-3, 3}, {3, 3}} {
		dc.DrawStringWrapped(title, thumbnailWidth/2+off[0], thumbnailHeight/2+off[1],
			0.5, 0.5, thumbnailWidth-2*margin, 1.3, gg.AlignCenter)
	}
	dc.SetHexColor("#ffffff")
	dc.DrawStringWrapped(title, thumbnailWidth/2, thumbnailHeight/2,
		0.5, 0.5, thumbnailWidth-2*margin, 1.3, gg.AlignCenter)

	if err := os.MkdirAll(t.outputDir, 0755); err != nil {
		return "", fmt.Errorf("创建封面目录失败: %w", err)
	}

	// 锐化后存为 JPEG，体积比 PNG 小得多
	img := imaging.Sharpen(dc.Image(), 0.5)
	thumbPath := filepath.Join(t.outputDir, jobID+".jpg")
	if err := imaging.Save(img, thumbPath, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("保存封面图失败: %w", err)
	}
	return thumbPath, nil
}
