package main

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"cardsight/table"
	"cardsight/vision"

	"github.com/nfnt/resize"
	"gocv.io/x/gocv"
)

const previewWidth = 480

// updatePreview 在帧副本上画出识别结果，缩成缩略图供 /preview.jpg 使用
func (a *app) updatePreview(frame gocv.Mat, regions []table.Region, results [][]vision.Result) {
	annotated := frame.Clone()
	defer annotated.Close()
	for i, r := range regions {
		vision.Annotate(&annotated, r.Rect.Min, results[i])
	}

	img, err := annotated.ToImage()
	if err != nil {
		a.logger.Debug("预览图转换失败", "error", err)
		return
	}
	data, err := thumbnail(img, previewWidth)
	if err != nil {
		a.logger.Debug("预览图编码失败", "error", err)
		return
	}

	a.mu.Lock()
	a.preview = data
	a.mu.Unlock()
}

// thumbnail 等比缩放到指定宽度并编码为 JPEG，原图更窄时不放大
func thumbnail(img image.Image, width uint) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("图片为空")
	}
	if w := uint(img.Bounds().Dx()); w < width {
		width = w
	}
	thumb := resize.Resize(width, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("JPEG 编码失败: %w", err)
	}
	return buf.Bytes(), nil
}
