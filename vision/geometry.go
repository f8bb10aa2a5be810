package vision

import (
	"image"
	"math"
	"sort"
)

// Orientation 候选轮廓外接矩形的朝向
type Orientation int

const (
	Vertical Orientation = iota
	Horizontal
	Diamond
)

func (o Orientation) String() string {
	switch o {
	case Vertical:
		return "vertical"
	case Horizontal:
		return "horizontal"
	case Diamond:
		return "diamond"
	}
	return "unknown"
}

// ClassifyOrientation 按外接矩形宽高比分类：w <= 0.8h 竖放，w >= 1.2h 横放，其余视为斜放
func ClassifyOrientation(w, h int) Orientation {
	fw, fh := float64(w), float64(h)
	switch {
	case fw <= 0.8*fh:
		return Vertical
	case fw >= 1.2*fh:
		return Horizontal
	}
	return Diamond
}

// Quad 规范顺序的四个角：左上、右上、右下、左下
type Quad [4]image.Point

// AssignCorners 把四个原始顶点分配到规范角色。
// 竖放/横放按坐标和与差取角；斜放先把顶点整理成从最高点开始的逆时针顺序，
// 再比较左右两个顶点的高低区分左倾和右倾
func AssignCorners(w, h int, pts [4]image.Point) (Quad, Orientation) {
	o := ClassifyOrientation(w, h)
	switch o {
	case Vertical, Horizontal:
		tl, tr, br, bl := extremeCorners(pts)
		if o == Vertical {
			return Quad{tl, tr, br, bl}, o
		}
		// 横放的牌按逆时针转了 90 度处理，矫正后正立；顺时针转 90 度的牌矫正后倒转 180 度，
		// 牌面角标在对角成对出现，左上角仍是角标
		return Quad{bl, tl, tr, br}, o
	}

	p := counterClockwiseFromTop(pts)
	if p[1].Y <= p[3].Y {
		// 左倾
		return Quad{p[1], p[0], p[3], p[2]}, o
	}
	// 右倾
	return Quad{p[0], p[3], p[2], p[1]}, o
}

// extremeCorners x+y 最小为左上、最大为右下；y-x 最小为右上、最大为左下。并列时取先出现的点
func extremeCorners(pts [4]image.Point) (tl, tr, br, bl image.Point) {
	minSum, maxSum, minDiff, maxDiff := 0, 0, 0, 0
	for i := 1; i < 4; i++ {
		s := pts[i].X + pts[i].Y
		d := pts[i].Y - pts[i].X
		if s < pts[minSum].X+pts[minSum].Y {
			minSum = i
		}
		if s > pts[maxSum].X+pts[maxSum].Y {
			maxSum = i
		}
		if d < pts[minDiff].Y-pts[minDiff].X {
			minDiff = i
		}
		if d > pts[maxDiff].Y-pts[maxDiff].X {
			maxDiff = i
		}
	}
	return pts[minSum], pts[minDiff], pts[maxSum], pts[maxDiff]
}

// counterClockwiseFromTop 以最高点（y 最小，并列取 x 最小）开头，按屏幕上的逆时针方向排列：上、左、下、右
func counterClockwiseFromTop(pts [4]image.Point) [4]image.Point {
	var cx, cy float64
	for _, p := range pts {
		cx += float64(p.X) / 4
		cy += float64(p.Y) / 4
	}

	idx := []int{0, 1, 2, 3}
	angle := func(i int) float64 {
		return math.Atan2(float64(pts[i].Y)-cy, float64(pts[i].X)-cx)
	}
	// 图像坐标系 y 轴向下，角度递减即屏幕逆时针
	sort.SliceStable(idx, func(a, b int) bool { return angle(idx[a]) > angle(idx[b]) })

	start := 0
	for i, j := range idx {
		top := pts[idx[start]]
		if pts[j].Y < top.Y || (pts[j].Y == top.Y && pts[j].X < top.X) {
			start = i
		}
	}

	var out [4]image.Point
	for i := range out {
		out[i] = pts[idx[(start+i)%4]]
	}
	return out
}

// Area 鞋带公式求面积
func (q Quad) Area() float64 {
	var s float64
	for i := 0; i < 4; i++ {
		a, b := q[i], q[(i+1)%4]
		s += float64(a.X*b.Y - b.X*a.Y)
	}
	return math.Abs(s) / 2
}

// Convex 四个顶点依次构成严格凸四边形
func (q Quad) Convex() bool {
	return isConvex(q[:])
}

// Valid 没有重合点、严格凸且面积大于 0
func (q Quad) Valid() bool {
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			if q[i] == q[j] {
				return false
			}
		}
	}
	return q.Convex() && q.Area() > 0
}

// Side 第 i 条边的长度，0 为上边
func (q Quad) Side(i int) float64 {
	a, b := q[i%4], q[(i+1)%4]
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}

func isConvex(pts []image.Point) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		a, b, c := pts[i], pts[(i+1)%n], pts[(i+2)%n]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		if cross == 0 {
			return false
		}
		s := 1
		if cross < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return true
}
