package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	resolvedColor = color.RGBA{0, 255, 0, 0}
	failedColor   = color.RGBA{255, 0, 0, 0}
)

// Annotate 在 img 上绘制识别框和标签。offset 为区域在整帧中的左上角
func Annotate(img *gocv.Mat, offset image.Point, results []Result) {
	for _, r := range results {
		rect := r.Bounds.Add(offset)
		c := resolvedColor
		if r.State != Resolved {
			c = failedColor
		}
		gocv.Rectangle(img, rect, c, 2)

		// 标签写在框上方，靠近顶边时写在框内
		pt := image.Pt(rect.Min.X, rect.Min.Y-6)
		if pt.Y < 12 {
			pt.Y = rect.Min.Y + 18
		}
		gocv.PutText(img, r.Label.String(), pt, gocv.FontHersheySimplex, 0.5, c, 1)
	}
}
