package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"cardsight/card"

	"gocv.io/x/gocv"
)

// RankConfig 左上角点数识别参数
type RankConfig struct {
	CornerWidth  float64 // 角标宽度占牌宽比例
	CornerHeight float64 // 角标高度占牌高比例，0.16 到 0.32 之间
	Attempts     int
	Timeout      time.Duration // 单次 OCR 时限
	Scale        float64       // 送入 OCR 前的放大倍数
}

// DefaultRankConfig 默认 15% x 16%，识别 3 次
func DefaultRankConfig() RankConfig {
	return RankConfig{
		CornerWidth:  0.15,
		CornerHeight: 0.16,
		Attempts:     3,
		Timeout:      2 * time.Second,
		Scale:        3,
	}
}

// RankClassifier 文字识别阶段：多次 OCR 后多数投票，只负责点数
type RankClassifier struct {
	ocr    OCR
	cfg    RankConfig
	logger *slog.Logger
}

func NewRankClassifier(ocr OCR, cfg RankConfig, logger *slog.Logger) *RankClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankClassifier{
		ocr:    ocr,
		cfg:    cfg,
		logger: logger.With("component", "vision.rank"),
	}
}

func (c *RankClassifier) Name() string { return "ocr" }

// Classify 只能补点数；花色请求交给后续阶段
func (c *RankClassifier) Classify(ctx context.Context, rc RectifiedCard, want card.Field) (card.Label, error) {
	if !want.Has(card.FieldRank) {
		return card.Label{}, ErrUnresolved
	}

	png, err := c.cornerPNG(rc.Mat)
	if err != nil {
		return card.Label{}, err
	}

	rank, ok := c.ReadRank(ctx, png)
	if !ok {
		return card.Label{}, ErrUnresolved
	}
	return card.Label{Rank: rank}, nil
}

// ReadRank 重复识别 Attempts 次，取出现最多的有效点数
func (c *RankClassifier) ReadRank(ctx context.Context, png []byte) (card.Rank, bool) {
	attempts := c.cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	results := make([]card.Rank, 0, attempts)
	for i := 0; i < attempts; i++ {
		text, err := recognizeWithin(ctx, c.cfg.Timeout, c.ocr, png)
		if err != nil {
			c.logger.Debug("OCR 失败", "attempt", i, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if r, ok := card.ParseRank(text); ok {
			results = append(results, r)
		}
	}
	return majority(results)
}

// majority 出现次数最多者，并列时取最先出现的
func majority(results []card.Rank) (card.Rank, bool) {
	if len(results) == 0 {
		return card.RankUnknown, false
	}
	counts := make(map[card.Rank]int, len(results))
	for _, r := range results {
		counts[r]++
	}
	best := results[0]
	for _, r := range results {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best, true
}

// cornerPNG 截取左上角，放大并反色（tesseract 偏好白底黑字）后编码为 PNG
func (c *RankClassifier) cornerPNG(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("牌面为空")
	}
	w := int(float64(img.Cols()) * c.cfg.CornerWidth)
	h := int(float64(img.Rows()) * c.cfg.CornerHeight)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("角标区域太小: %dx%d", w, h)
	}

	roi := img.Region(image.Rect(0, 0, w, h))
	defer roi.Close()

	scaled := gocv.NewMat()
	defer scaled.Close()
	scale := c.cfg.Scale
	if scale <= 0 {
		scale = 1
	}
	gocv.Resize(roi, &scaled, image.Point{}, scale, scale, gocv.InterpolationCubic)

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(scaled, &inverted)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, inverted)
	if err != nil {
		return nil, fmt.Errorf("图片编码失败: %w", err)
	}
	defer buf.Close()

	// GetBytes 指向 C 内存，Close 前复制出来
	return append([]byte(nil), buf.GetBytes()...), nil
}
