package vision

import (
	"image"

	"gocv.io/x/gocv"
)

// LocatorConfig 候选轮廓检测参数
type LocatorConfig struct {
	MinArea     float64 // 小于该面积的轮廓视为噪点
	BlurSize    int
	BlockSize   int     // 自适应阈值邻域
	C           float32 // 自适应阈值常数
	CloseKernel int     // 闭运算核大小
	CannyLow    float32
	CannyHigh   float32
	Epsilon     float64 // 多边形逼近容差，相对周长
}

// DefaultLocatorConfig 默认检测参数
func DefaultLocatorConfig() LocatorConfig {
	return LocatorConfig{
		MinArea:     1300,
		BlurSize:    11,
		BlockSize:   11,
		C:           2,
		CloseKernel: 5,
		CannyLow:    50,
		CannyHigh:   150,
		Epsilon:     0.02,
	}
}

// CardContour 区域坐标系下近似为四边形的牌轮廓
type CardContour struct {
	Corners [4]image.Point
	Bounds  image.Rectangle
	Area    float64
}

// Locator 在区域图中寻找牌形轮廓
type Locator struct {
	cfg LocatorConfig
}

func NewLocator(cfg LocatorConfig) *Locator {
	return &Locator{cfg: cfg}
}

// Locate 返回区域内所有候选牌轮廓。结果顺序不保证，需要按座位排序的调用方自行按位置排序
func (l *Locator) Locate(region gocv.Mat) []CardContour {
	if region.Empty() {
		return nil
	}

	// 1. 灰度 + 模糊
	gray := toGray(region)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: l.cfg.BlurSize, Y: l.cfg.BlurSize}, 0, 0, gocv.BorderDefault)

	// 2. 自适应阈值 + 闭运算，压平光照噪声
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(blurred, &binary, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, l.cfg.BlockSize, l.cfg.C)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: l.cfg.CloseKernel, Y: l.cfg.CloseKernel})
	defer kernel.Close()
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(binary, &closed, gocv.MorphClose, kernel)

	// 3. 边缘
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(closed, &edges, l.cfg.CannyLow, l.cfg.CannyHigh)

	// 4. 外轮廓筛选
	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []CardContour
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < l.cfg.MinArea {
			continue
		}

		peri := gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, l.cfg.Epsilon*peri, true)
		pts := approx.ToPoints()
		approx.Close()
		if len(pts) != 4 || !isConvex(pts) {
			continue
		}

		out = append(out, CardContour{
			Corners: [4]image.Point{pts[0], pts[1], pts[2], pts[3]},
			Bounds:  gocv.BoundingRect(contour),
			Area:    area,
		})
	}
	return out
}

// toGray 返回单通道副本，调用方负责 Close
func toGray(img gocv.Mat) gocv.Mat {
	switch img.Channels() {
	case 3:
		gray := gocv.NewMat()
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
		return gray
	case 4:
		gray := gocv.NewMat()
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
		return gray
	}
	return img.Clone()
}
