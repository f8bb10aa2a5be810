package capture

import (
	"context"
	"fmt"

	"github.com/go-vgo/robotgo"
	"gocv.io/x/gocv"
)

// Window 按标题查找窗口并截图
type Window struct {
	Titles []string
}

// NewWindow 依次尝试各个标题，取第一个找到的窗口
func NewWindow(titles ...string) *Window {
	return &Window{Titles: titles}
}

func (w *Window) Read(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}

	var fids []int
	for _, title := range w.Titles {
		fids, _ = robotgo.FindIds(title)
		if len(fids) > 0 {
			break
		}
	}
	if len(fids) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: 未找到窗口 %v", ErrFrameUnavailable, w.Titles)
	}

	x, y, width, height := robotgo.GetBounds(fids[0])
	if width <= 0 || height <= 0 {
		return gocv.NewMat(), fmt.Errorf("%w: 窗口尺寸无效 %dx%d", ErrFrameUnavailable, width, height)
	}
	img, err := robotgo.CaptureImg(x, y, width, height)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: 截图失败: %v", ErrFrameUnavailable, err)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: 图像转换失败: %v", ErrFrameUnavailable, err)
	}
	return mat, nil
}

func (w *Window) Close() error { return nil }
