package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// RectifierConfig 矫正输出参数
type RectifierConfig struct {
	Width     int
	Height    int
	BlockSize int
	C         float32
}

// DefaultRectifierConfig 200x300 的规范牌面
func DefaultRectifierConfig() RectifierConfig {
	return RectifierConfig{Width: 200, Height: 300, BlockSize: 11, C: 2}
}

// RectifiedCard 透视矫正、灰度化并二值化后的固定尺寸牌面
type RectifiedCard struct {
	Mat         gocv.Mat
	Orientation Orientation
	Quad        Quad
}

func (c RectifiedCard) Close() error {
	return c.Mat.Close()
}

// Rectifier 把候选轮廓矫正为规范牌面
type Rectifier struct {
	cfg RectifierConfig
}

func NewRectifier(cfg RectifierConfig) *Rectifier {
	return &Rectifier{cfg: cfg}
}

// Size 输出尺寸
func (r *Rectifier) Size() image.Point {
	return image.Point{X: r.cfg.Width, Y: r.cfg.Height}
}

// Rectify 对同一 (轮廓, 图像) 总是输出逐字节相同的结果
func (r *Rectifier) Rectify(src gocv.Mat, c CardContour) (RectifiedCard, error) {
	if src.Empty() {
		return RectifiedCard{}, fmt.Errorf("图片为空")
	}

	quad, orientation := AssignCorners(c.Bounds.Dx(), c.Bounds.Dy(), c.Corners)
	if !quad.Valid() {
		return RectifiedCard{}, fmt.Errorf("%w: %v (%s)", ErrDegenerateContour, quad, orientation)
	}

	warped := r.warp(src, quad)
	defer warped.Close()

	return RectifiedCard{
		Mat:         r.binarize(warped),
		Orientation: orientation,
		Quad:        quad,
	}, nil
}

// warp 把四个规范角映射到 (0,0)-(w-1,h-1)
func (r *Rectifier) warp(src gocv.Mat, q Quad) gocv.Mat {
	w, h := float32(r.cfg.Width-1), float32(r.cfg.Height-1)

	srcPts := make([]gocv.Point2f, 0, 4)
	for _, p := range q {
		srcPts = append(srcPts, gocv.Point2f{X: float32(p.X), Y: float32(p.Y)})
	}
	srcVec := gocv.NewPoint2fVectorFromPoints(srcPts)
	defer srcVec.Close()
	dstVec := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: w, Y: 0},
		{X: w, Y: h},
		{X: 0, Y: h},
	})
	defer dstVec.Close()

	m := gocv.GetPerspectiveTransform2f(srcVec, dstVec)
	defer m.Close()

	warped := gocv.NewMat()
	gocv.WarpPerspective(src, &warped, m, r.Size())
	return warped
}

// binarize 灰度 + 高斯自适应阈值（反色），模板加载时也走同一流程
func (r *Rectifier) binarize(img gocv.Mat) gocv.Mat {
	gray := toGray(img)
	defer gray.Close()

	out := gocv.NewMat()
	gocv.AdaptiveThreshold(gray, &out, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, r.cfg.BlockSize, r.cfg.C)
	return out
}

// Normalize 把任意参考图缩放到规范尺寸并二值化
func (r *Rectifier) Normalize(img gocv.Mat) gocv.Mat {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, r.Size(), 0, 0, gocv.InterpolationArea)
	return r.binarize(resized)
}
