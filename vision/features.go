package vision

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"cardsight/card"

	"gocv.io/x/gocv"
)

// FeatureConfig 关键点匹配参数
type FeatureConfig struct {
	Threshold   float64 // 得分必须严格小于该值才接受
	BestMatches int     // 取最好的前 N 个匹配求平均距离
}

// DefaultFeatureConfig 阈值 200，前 10 个匹配
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{Threshold: 200, BestMatches: 10}
}

// Match 匹配结果
type Match struct {
	Label card.Label
	Score float64
}

// FeatureMatcher 第一级回退：ORB 描述子交叉校验匹配，得分为最好 N 个匹配的平均汉明距离，越低越好
type FeatureMatcher struct {
	lib    *TemplateLibrary
	cfg    FeatureConfig
	logger *slog.Logger
}

func NewFeatureMatcher(lib *TemplateLibrary, cfg FeatureConfig, logger *slog.Logger) *FeatureMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeatureMatcher{
		lib:    lib,
		cfg:    cfg,
		logger: logger.With("component", "vision.features"),
	}
}

func (m *FeatureMatcher) Name() string { return "features" }

func (m *FeatureMatcher) Classify(ctx context.Context, rc RectifiedCard, want card.Field) (card.Label, error) {
	if err := ctx.Err(); err != nil {
		return card.Label{}, err
	}
	best, ok := m.Match(rc.Mat)
	if !ok || !accepted(best.Score, m.cfg.Threshold) {
		m.logger.Debug("关键点匹配未通过", "label", best.Label.Key(), "score", best.Score, "threshold", m.cfg.Threshold)
		return card.Label{}, ErrUnresolved
	}
	return best.Label, nil
}

// Match 返回全局得分最低的模板；查询图或模板缺少描述子时跳过对应比较
func (m *FeatureMatcher) Match(query gocv.Mat) (Match, bool) {
	if query.Empty() || m.lib == nil || m.lib.Len() == 0 {
		return Match{}, false
	}

	orb := gocv.NewORB()
	defer orb.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	_, desc := orb.DetectAndCompute(query, mask)
	defer desc.Close()
	if desc.Empty() {
		return Match{}, false
	}

	bf := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer bf.Close()

	var scores []Match
	for _, t := range m.lib.Templates() {
		if !t.HasDescriptors() {
			continue
		}
		matches := bf.Match(t.Descriptors, desc)
		distances := make([]float64, 0, len(matches))
		for _, mt := range matches {
			distances = append(distances, mt.Distance)
		}
		score, ok := meanBest(distances, m.cfg.BestMatches)
		if !ok {
			continue
		}
		scores = append(scores, Match{Label: t.Label, Score: score})
	}
	return lowest(scores)
}

// meanBest 最小的 n 个距离的平均值；没有距离时 ok 为 false
func meanBest(distances []float64, n int) (float64, bool) {
	if len(distances) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), distances...)
	sort.Float64s(sorted)
	if n <= 0 || n > len(sorted) {
		n = len(sorted)
	}
	var sum float64
	for _, d := range sorted[:n] {
		sum += d
	}
	return sum / float64(n), true
}

// lowest 得分最低者，并列取先出现的
func lowest(scores []Match) (Match, bool) {
	if len(scores) == 0 {
		return Match{}, false
	}
	best := Match{Score: math.Inf(1)}
	found := false
	for _, s := range scores {
		if math.IsNaN(s.Score) {
			continue
		}
		if s.Score < best.Score {
			best = s
			found = true
		}
	}
	return best, found
}

// accepted 严格小于阈值才接受，等于阈值拒绝
func accepted(score, threshold float64) bool {
	return score < threshold
}
