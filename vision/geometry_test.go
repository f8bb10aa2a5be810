package vision

import (
	"image"
	"testing"
)

func TestClassifyOrientation(t *testing.T) {
	tests := []struct {
		w, h int
		want Orientation
	}{
		{100, 150, Vertical},
		{80, 100, Vertical},
		{150, 100, Horizontal},
		{120, 100, Horizontal},
		{100, 100, Diamond},
		{121, 131, Diamond},
	}
	for _, tt := range tests {
		if got := ClassifyOrientation(tt.w, tt.h); got != tt.want {
			t.Errorf("ClassifyOrientation(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestAssignCorners(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		pts    [4]image.Point
		want   Quad
		orient Orientation
	}{
		{
			name:   "竖放",
			w:      101,
			h:      151,
			pts:    [4]image.Point{{110, 160}, {10, 10}, {10, 160}, {110, 10}},
			want:   Quad{{10, 10}, {110, 10}, {110, 160}, {10, 160}},
			orient: Vertical,
		},
		{
			name:   "横放",
			w:      151,
			h:      101,
			pts:    [4]image.Point{{160, 10}, {10, 110}, {160, 110}, {10, 10}},
			want:   Quad{{10, 110}, {10, 10}, {160, 10}, {160, 110}},
			orient: Horizontal,
		},
		{
			name:   "斜放左倾",
			w:      121,
			h:      131,
			pts:    [4]image.Point{{60, 130}, {120, 90}, {0, 40}, {60, 0}},
			want:   Quad{{0, 40}, {60, 0}, {120, 90}, {60, 130}},
			orient: Diamond,
		},
		{
			name:   "斜放右倾",
			w:      121,
			h:      131,
			pts:    [4]image.Point{{0, 90}, {60, 130}, {60, 0}, {120, 40}},
			want:   Quad{{60, 0}, {120, 40}, {60, 130}, {0, 90}},
			orient: Diamond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, o := AssignCorners(tt.w, tt.h, tt.pts)
			if o != tt.orient {
				t.Errorf("orientation = %v, want %v", o, tt.orient)
			}
			if got != tt.want {
				t.Errorf("AssignCorners() = %v, want %v", got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("quad %v should be valid", got)
			}
			// 上边总是短边
			if got.Side(0) >= got.Side(1) {
				t.Errorf("top side %.1f should be shorter than right side %.1f", got.Side(0), got.Side(1))
			}
		})
	}
}

func TestAssignCornersPermutationInvariant(t *testing.T) {
	base := [4]image.Point{{0, 40}, {60, 0}, {120, 90}, {60, 130}}
	want, _ := AssignCorners(121, 131, base)

	perms := [][4]int{
		{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}, {3, 0, 1, 2},
	}
	for _, p := range perms {
		var pts [4]image.Point
		for i, j := range p {
			pts[i] = base[j]
		}
		if got, _ := AssignCorners(121, 131, pts); got != want {
			t.Errorf("AssignCorners(%v) = %v, want %v", pts, got, want)
		}
	}
}

func TestQuadValid(t *testing.T) {
	tests := []struct {
		name string
		q    Quad
		want bool
	}{
		{"矩形", Quad{{0, 0}, {10, 0}, {10, 20}, {0, 20}}, true},
		{"重合点", Quad{{0, 0}, {0, 0}, {10, 10}, {0, 10}}, false},
		{"共线", Quad{{0, 0}, {5, 0}, {10, 0}, {0, 10}}, false},
		{"凹四边形", Quad{{0, 0}, {10, 0}, {2, 2}, {0, 10}}, false},
		{"自交", Quad{{0, 0}, {10, 10}, {10, 0}, {0, 10}}, false},
	}
	for _, tt := range tests {
		if got := tt.q.Valid(); got != tt.want {
			t.Errorf("%s: Valid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestQuadArea(t *testing.T) {
	q := Quad{{0, 0}, {10, 0}, {10, 20}, {0, 20}}
	if got := q.Area(); got != 200 {
		t.Errorf("Area() = %v, want 200", got)
	}
}
