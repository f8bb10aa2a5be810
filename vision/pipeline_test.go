package vision

import (
	"context"
	"errors"
	"image"
	"testing"

	"cardsight/card"

	"go.uber.org/mock/gomock"
)

func newStage(ctrl *gomock.Controller, name string) *MockClassifier {
	m := NewMockClassifier(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	return m
}

func TestRecognizeFallbackOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	ocr := newStage(ctrl, "ocr")
	features := newStage(ctrl, "features")
	templates := newStage(ctrl, "templates")

	gomock.InOrder(
		ocr.EXPECT().Classify(gomock.Any(), gomock.Any(), card.FieldAll).
			Return(card.Label{Rank: card.Ace}, nil),
		// 点数已确定，后续阶段只会被要求补花色
		features.EXPECT().Classify(gomock.Any(), gomock.Any(), card.FieldSuit).
			Return(card.Label{Rank: card.King, Suit: card.Spades}, nil),
	)

	p := NewPipeline(nil, nil, nil, ocr, features, templates)
	res := p.Recognize(context.Background(), RectifiedCard{})

	want := card.Label{Rank: card.Ace, Suit: card.Spades}
	if res.Label != want {
		t.Errorf("label = %v, want %v", res.Label, want)
	}
	if res.State != Resolved {
		t.Errorf("state = %v, want resolved", res.State)
	}
	if res.ResolvedBy[card.FieldRank] != "ocr" || res.ResolvedBy[card.FieldSuit] != "features" {
		t.Errorf("resolvedBy = %v", res.ResolvedBy)
	}
}

func TestRecognizeFallsThroughToTemplates(t *testing.T) {
	ctrl := gomock.NewController(t)
	ocr := newStage(ctrl, "ocr")
	features := newStage(ctrl, "features")
	templates := newStage(ctrl, "templates")

	ocr.EXPECT().Classify(gomock.Any(), gomock.Any(), card.FieldAll).
		Return(card.Label{}, ErrUnresolved)
	features.EXPECT().Classify(gomock.Any(), gomock.Any(), card.FieldAll).
		Return(card.Label{}, ErrUnresolved)
	templates.EXPECT().Classify(gomock.Any(), gomock.Any(), card.FieldAll).
		Return(card.Label{Rank: card.Nine, Suit: card.Hearts}, nil)

	p := NewPipeline(nil, nil, nil, ocr, features, templates)
	res := p.Recognize(context.Background(), RectifiedCard{})
	if res.Label != (card.Label{Rank: card.Nine, Suit: card.Hearts}) || res.State != Resolved {
		t.Errorf("result = %+v", res)
	}
	if res.ResolvedBy[card.FieldRank] != "templates" {
		t.Errorf("resolvedBy = %v", res.ResolvedBy)
	}
}

func TestRecognizeAllStagesFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	ocr := newStage(ctrl, "ocr")
	templates := newStage(ctrl, "templates")

	ocr.EXPECT().Classify(gomock.Any(), gomock.Any(), card.FieldAll).
		Return(card.Label{}, ErrUnresolved)
	templates.EXPECT().Classify(gomock.Any(), gomock.Any(), card.FieldAll).
		Return(card.Label{}, ErrNoTemplates)

	p := NewPipeline(nil, nil, nil, ocr, templates)
	res := p.Recognize(context.Background(), RectifiedCard{})
	if res.State != Failed {
		t.Errorf("state = %v, want failed", res.State)
	}
	if res.Label.Rank.Known() || res.Label.Suit.Known() {
		t.Errorf("label = %v, want unknown", res.Label)
	}
}

func TestRecognizeRecoversPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	bad := newStage(ctrl, "bad")
	good := newStage(ctrl, "good")

	bad.EXPECT().Classify(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, RectifiedCard, card.Field) (card.Label, error) {
			panic("boom")
		})
	good.EXPECT().Classify(gomock.Any(), gomock.Any(), card.FieldAll).
		Return(card.Label{Rank: card.Two, Suit: card.Clubs}, nil)

	p := NewPipeline(nil, nil, nil, bad, good)
	res := p.Recognize(context.Background(), RectifiedCard{})
	if res.State != Resolved || res.Label.Rank != card.Two {
		t.Errorf("result = %+v", res)
	}
}

func TestClassifyWrapsStageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	stage := newStage(ctrl, "ocr")
	stage.EXPECT().Classify(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(card.Label{}, ErrOCRTimeout)

	p := NewPipeline(nil, nil, nil, stage)
	_, err := p.classify(context.Background(), stage, RectifiedCard{}, card.FieldAll)

	var se *StageError
	if !errors.As(err, &se) || se.Stage != "ocr" {
		t.Fatalf("error = %v, want StageError from ocr", err)
	}
	if !errors.Is(err, ErrOCRTimeout) {
		t.Errorf("error should wrap ErrOCRTimeout")
	}
}

func TestSortByPosition(t *testing.T) {
	results := []Result{
		{Label: card.Label{Rank: card.King}, Bounds: image.Rect(300, 10, 350, 80)},
		{Label: card.Label{Rank: card.Two}, Bounds: image.Rect(10, 90, 60, 160)},
		{Label: card.Label{Rank: card.Ace}, Bounds: image.Rect(10, 10, 60, 80)},
	}
	SortByPosition(results)

	want := []card.Rank{card.Ace, card.Two, card.King}
	for i, r := range results {
		if r.Label.Rank != want[i] {
			t.Errorf("results[%d] = %v, want %v", i, r.Label.Rank, want[i])
		}
	}
}
