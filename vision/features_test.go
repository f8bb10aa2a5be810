package vision

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"

	"cardsight/card"

	"gocv.io/x/gocv"
)

func TestMeanBest(t *testing.T) {
	tests := []struct {
		name      string
		distances []float64
		n         int
		want      float64
		wantOK    bool
	}{
		{"取最小的 n 个", []float64{50, 10, 30, 20}, 2, 15, true},
		{"不足 n 个时全部取", []float64{40, 20}, 10, 30, true},
		{"没有匹配", nil, 10, 0, false},
	}
	for _, tt := range tests {
		got, ok := meanBest(tt.distances, tt.n)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("%s: meanBest() = %v, %v; want %v, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLowest(t *testing.T) {
	ace := card.Label{Rank: card.Ace, Suit: card.Spades}
	king := card.Label{Rank: card.King, Suit: card.Hearts}
	two := card.Label{Rank: card.Two, Suit: card.Clubs}

	best, ok := lowest([]Match{{ace, 120}, {king, math.NaN()}, {two, 80}, {ace, 80}})
	if !ok || best.Label != two || best.Score != 80 {
		t.Errorf("lowest() = %+v, %v", best, ok)
	}

	if _, ok := lowest([]Match{{king, math.NaN()}}); ok {
		t.Error("all-NaN scores should not produce a match")
	}
	if _, ok := lowest(nil); ok {
		t.Error("empty scores should not produce a match")
	}
}

func TestAcceptedThreshold(t *testing.T) {
	tests := []struct {
		score float64
		want  bool
	}{
		{199.9, true},
		{200, false},
		{250, false},
		{0, true},
	}
	for _, tt := range tests {
		if got := accepted(tt.score, 200); got != tt.want {
			t.Errorf("accepted(%v, 200) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestHighest(t *testing.T) {
	tests := []struct {
		scores []float64
		want   int
	}{
		{[]float64{0.2, 0.9, 0.5}, 1},
		{[]float64{0.4, math.NaN(), 0.4}, 0},
		{[]float64{math.NaN(), -0.3}, 1},
		{[]float64{math.NaN(), math.NaN()}, 0},
	}
	for _, tt := range tests {
		if got := highest(tt.scores); got != tt.want {
			t.Errorf("highest(%v) = %d, want %d", tt.scores, got, tt.want)
		}
	}
}

func TestFeatureMatcherORB(t *testing.T) {
	ace := card.Label{Rank: card.Ace, Suit: card.Spades}
	king := card.Label{Rank: card.King, Suit: card.Hearts}
	two := card.Label{Rank: card.Two, Suit: card.Clubs}

	lib := NewTemplateLibrary(map[card.Label]gocv.Mat{
		ace:  texturedCard(t, "A"),
		king: texturedCard(t, "K"),
		// 纯黑模板没有关键点，比较时跳过
		two: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 300, 200, gocv.MatTypeCV8U),
	}, image.Pt(200, 300))
	defer lib.Close()

	for _, tpl := range lib.Templates() {
		if tpl.Label == two && tpl.HasDescriptors() {
			t.Fatal("blank template should have no descriptors")
		}
		if tpl.Label != two && !tpl.HasDescriptors() {
			t.Fatalf("template %v has no descriptors", tpl.Label)
		}
	}

	m := NewFeatureMatcher(lib, DefaultFeatureConfig(), nil)

	query := texturedCard(t, "A")
	defer query.Close()
	best, ok := m.Match(query)
	if !ok || best.Label != ace {
		t.Fatalf("Match() = %+v, %v; want %v", best, ok, ace)
	}
	if best.Score >= 1 {
		t.Errorf("identical bitmap score = %v, want ~0", best.Score)
	}
	got, err := m.Classify(context.Background(), RectifiedCard{Mat: query}, card.FieldAll)
	if err != nil || got != ace {
		t.Errorf("Classify() = %v, %v; want %v", got, err, ace)
	}

	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 300, 200, gocv.MatTypeCV8U)
	defer blank.Close()
	if _, ok := m.Match(blank); ok {
		t.Error("Match() on a query without descriptors should fail")
	}
	if _, err := m.Classify(context.Background(), RectifiedCard{Mat: blank}, card.FieldAll); !errors.Is(err, ErrUnresolved) {
		t.Errorf("Classify(blank) error = %v, want ErrUnresolved", err)
	}
}

func TestFeatureMatcherNoUsableTemplates(t *testing.T) {
	lib := NewTemplateLibrary(map[card.Label]gocv.Mat{
		{Rank: card.Two, Suit: card.Clubs}: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 300, 200, gocv.MatTypeCV8U),
	}, image.Pt(200, 300))
	defer lib.Close()

	query := texturedCard(t, "A")
	defer query.Close()

	m := NewFeatureMatcher(lib, DefaultFeatureConfig(), nil)
	if _, ok := m.Match(query); ok {
		t.Error("Match() should fail when no template has descriptors")
	}
	if _, err := m.Classify(context.Background(), RectifiedCard{Mat: query}, card.FieldAll); !errors.Is(err, ErrUnresolved) {
		t.Errorf("Classify() error = %v, want ErrUnresolved", err)
	}
}
