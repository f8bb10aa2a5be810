package table

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const (
	Dealer  = "Dealer"
	Player1 = "Player1"
	Player2 = "Player2"
)

// Area 桌面上一个命名区域，坐标为相对整帧的比例 (0-1)
type Area struct {
	Name string  `json:"name"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
}

// Layout 桌面的区域划分
type Layout struct {
	Areas []Area `json:"areas"`
}

// DefaultLayout 庄家占上半部分，两个闲家各占下半部分的一半
func DefaultLayout() Layout {
	return Layout{Areas: []Area{
		{Name: Dealer, X0: 0, Y0: 0, X1: 1, Y1: 0.5},
		{Name: Player1, X0: 0, Y0: 0.5, X1: 0.5, Y1: 1},
		{Name: Player2, X0: 0.5, Y0: 0.5, X1: 1, Y1: 1},
	}}
}

// Validate 检查比例范围和重名
func (l Layout) Validate() error {
	if len(l.Areas) == 0 {
		return fmt.Errorf("布局至少需要一个区域")
	}
	seen := make(map[string]bool, len(l.Areas))
	for _, a := range l.Areas {
		if a.Name == "" {
			return fmt.Errorf("区域名称不能为空")
		}
		if seen[a.Name] {
			return fmt.Errorf("区域名称重复: %s", a.Name)
		}
		seen[a.Name] = true
		if a.X0 < 0 || a.Y0 < 0 || a.X1 > 1 || a.Y1 > 1 || a.X0 >= a.X1 || a.Y0 >= a.Y1 {
			return fmt.Errorf("区域 %s 坐标无效: (%.2f,%.2f)-(%.2f,%.2f)", a.Name, a.X0, a.Y0, a.X1, a.Y1)
		}
	}
	return nil
}

// Names 区域名称，按布局顺序
func (l Layout) Names() []string {
	names := make([]string, 0, len(l.Areas))
	for _, a := range l.Areas {
		names = append(names, a.Name)
	}
	return names
}

// Rect 把比例坐标换算成 w x h 帧内的像素矩形
func (a Area) Rect(w, h int) image.Rectangle {
	r := image.Rect(
		int(a.X0*float64(w)),
		int(a.Y0*float64(h)),
		int(a.X1*float64(w)),
		int(a.Y1*float64(h)),
	)
	return r.Intersect(image.Rect(0, 0, w, h))
}

// Region 从帧中切出的区域视图，与原帧共享像素
type Region struct {
	Name string
	Rect image.Rectangle
	Mat  gocv.Mat
}

func (r Region) Close() error {
	return r.Mat.Close()
}

// Split 按布局切分帧。空区域跳过；返回的视图需要在原帧释放前 Close
func (l Layout) Split(frame gocv.Mat) []Region {
	if frame.Empty() {
		return nil
	}
	w, h := frame.Cols(), frame.Rows()
	regions := make([]Region, 0, len(l.Areas))
	for _, a := range l.Areas {
		rect := a.Rect(w, h)
		if rect.Empty() {
			continue
		}
		regions = append(regions, Region{
			Name: a.Name,
			Rect: rect,
			Mat:  frame.Region(rect),
		})
	}
	return regions
}
