package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"

	"cardsight/card"

	"gocv.io/x/gocv"
)

//go:generate mockgen -source=pipeline.go -destination=mock_classifier_test.go -package=vision

// Classifier 识别链中的一个阶段。want 为仍未识别的字段，
// 返回的标签中只有 want 内的字段会被采用
type Classifier interface {
	Name() string
	Classify(ctx context.Context, rc RectifiedCard, want card.Field) (card.Label, error)
}

// State 单个候选的处理状态
type State int

const (
	NotStarted State = iota
	Rectified
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Rectified:
		return "rectified"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result 单个候选的识别结果，Bounds 供调用方按位置排序
type Result struct {
	Label  card.Label
	State  State
	Bounds image.Rectangle
	// ResolvedBy 字段 -> 给出该字段的阶段名
	ResolvedBy map[card.Field]string
}

// Pipeline 定位、矫正并按固定顺序（文字 -> 关键点 -> 像素模板）识别
type Pipeline struct {
	locator   *Locator
	rectifier *Rectifier
	stages    []Classifier
	logger    *slog.Logger
}

// NewPipeline 阶段顺序即回退顺序，构建后不再改变
func NewPipeline(locator *Locator, rectifier *Rectifier, logger *slog.Logger, stages ...Classifier) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		locator:   locator,
		rectifier: rectifier,
		stages:    append([]Classifier(nil), stages...),
		logger:    logger.With("component", "vision.pipeline"),
	}
}

// Stages 阶段名，按回退顺序
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}
	return names
}

// Process 处理一个区域，每个通过检测的候选输出一个结果。
// 候选之间不去重，顺序不保证；分类失败降级为空标签，不会返回错误
func (p *Pipeline) Process(ctx context.Context, region gocv.Mat) []Result {
	candidates := p.locator.Locate(region)
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		rc, err := p.rectifier.Rectify(region, c)
		if err != nil {
			p.logger.Debug("丢弃候选", "bounds", c.Bounds, "error", err)
			continue
		}
		res := p.Recognize(ctx, rc)
		res.Bounds = c.Bounds
		rc.Close()
		results = append(results, res)
	}
	return results
}

// Recognize 对已矫正的牌面依次尝试各阶段，已识别的字段不会被后续阶段重新评估
func (p *Pipeline) Recognize(ctx context.Context, rc RectifiedCard) Result {
	res := Result{State: Rectified, ResolvedBy: make(map[card.Field]string)}

	for _, stage := range p.stages {
		want := res.Label.Missing()
		if want == card.FieldNone {
			break
		}

		got, err := p.classify(ctx, stage, rc, want)
		if err != nil {
			p.logger.Debug("阶段未识别，回退", "stage", stage.Name(), "want", want.String(), "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		merged := res.Label.Merge(got, want)
		for _, f := range []card.Field{card.FieldRank, card.FieldSuit} {
			if want.Has(f) && !merged.Missing().Has(f) {
				res.ResolvedBy[f] = stage.Name()
			}
		}
		res.Label = merged
	}

	if res.Label.Complete() {
		res.State = Resolved
	} else {
		res.State = Failed
	}
	return res
}

// classify 阶段内的 panic 也转为错误，不越过流水线边界
func (p *Pipeline) classify(ctx context.Context, stage Classifier, rc RectifiedCard, want card.Field) (label card.Label, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	label, err = stage.Classify(ctx, rc, want)
	if err != nil && !errors.As(err, new(*StageError)) {
		err = &StageError{Stage: stage.Name(), Err: err}
	}
	return label, err
}

// Labels 提取结果中的标签
func Labels(results []Result) []card.Label {
	out := make([]card.Label, 0, len(results))
	for _, r := range results {
		out = append(out, r.Label)
	}
	return out
}

// SortByPosition 按从左到右、从上到下排序，需要座位对应时在消费前调用
func SortByPosition(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Bounds.Min, results[j].Bounds.Min
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
}
