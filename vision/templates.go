package vision

import (
	"context"
	"image"
	"log/slog"
	"math"

	"cardsight/card"

	"gocv.io/x/gocv"
)

// TemplateMatcher 最后一级回退：归一化互相关像素匹配，没有接受下限，总是给出最好的猜测
type TemplateMatcher struct {
	lib    *TemplateLibrary
	logger *slog.Logger
}

func NewTemplateMatcher(lib *TemplateLibrary, logger *slog.Logger) *TemplateMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateMatcher{
		lib:    lib,
		logger: logger.With("component", "vision.templates"),
	}
}

func (m *TemplateMatcher) Name() string { return "templates" }

// Classify 模板库为空时返回 ErrNoTemplates，否则返回得分最高的模板标签
func (m *TemplateMatcher) Classify(ctx context.Context, rc RectifiedCard, want card.Field) (card.Label, error) {
	if err := ctx.Err(); err != nil {
		return card.Label{}, err
	}
	best, err := m.Match(rc.Mat)
	if err != nil {
		return card.Label{}, err
	}
	m.logger.Debug("像素模板匹配", "label", best.Label.Key(), "score", best.Score)
	return best.Label, nil
}

// Match 把查询图缩放到每个模板的原始尺寸后计算 TM_CCOEFF_NORMED
func (m *TemplateMatcher) Match(query gocv.Mat) (Match, error) {
	if m.lib == nil || m.lib.Len() == 0 {
		return Match{}, ErrNoTemplates
	}
	if query.Empty() {
		return Match{}, ErrUnresolved
	}

	templates := m.lib.Templates()
	scores := make([]float64, len(templates))

	resized := gocv.NewMat()
	defer resized.Close()
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	for i, t := range templates {
		size := image.Point{X: t.Bitmap.Cols(), Y: t.Bitmap.Rows()}
		gocv.Resize(query, &resized, size, 0, 0, gocv.InterpolationLinear)
		gocv.MatchTemplate(resized, t.Bitmap, &result, gocv.TmCcoeffNormed, mask)
		_, maxVal, _, _ := gocv.MinMaxLoc(result)
		scores[i] = float64(maxVal)
	}

	i := highest(scores)
	return Match{Label: templates[i].Label, Score: scores[i]}, nil
}

// highest 最大值下标，NaN 视为负无穷；全为 NaN 时返回 0
func highest(scores []float64) int {
	best, bestScore := 0, math.Inf(-1)
	for i, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
