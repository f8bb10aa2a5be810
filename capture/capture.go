package capture

import (
	"context"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrFrameUnavailable 本轮拿不到画面。连续出现到上限时外层循环停止
var ErrFrameUnavailable = errors.New("capture: 画面不可用")

// Source 画面来源，Read 返回的 Mat 由调用方 Close
type Source interface {
	Read(ctx context.Context) (gocv.Mat, error)
	Close() error
}

// Options 打开画面来源所需的参数
type Options struct {
	Kind         string // camera | window | file
	Device       int
	WindowTitles []string
	File         string
}

// Open 按 Kind 打开对应的来源
func Open(opts Options) (Source, error) {
	switch opts.Kind {
	case "camera":
		return OpenCamera(opts.Device)
	case "window":
		if len(opts.WindowTitles) == 0 {
			return nil, fmt.Errorf("窗口标题不能为空")
		}
		return NewWindow(opts.WindowTitles...), nil
	case "file":
		if opts.File == "" {
			return nil, fmt.Errorf("图片路径不能为空")
		}
		return NewFile(opts.File), nil
	}
	return nil, fmt.Errorf("未知的画面来源: %q", opts.Kind)
}

// Camera 本地摄像头
type Camera struct {
	vc *gocv.VideoCapture
}

func OpenCamera(device int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("无法打开摄像头 %d: %w", device, err)
	}
	return &Camera{vc: vc}, nil
}

func (c *Camera) Read(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}
	mat := gocv.NewMat()
	if ok := c.vc.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: 摄像头读取失败", ErrFrameUnavailable)
	}
	return mat, nil
}

func (c *Camera) Close() error {
	return c.vc.Close()
}

// File 每次读取同一张图片，用于离线调试
type File struct {
	Path string
}

func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Read(ctx context.Context) (gocv.Mat, error) {
	if err := ctx.Err(); err != nil {
		return gocv.NewMat(), err
	}
	mat := gocv.IMRead(f.Path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: 无法读取 %s", ErrFrameUnavailable, f.Path)
	}
	return mat, nil
}

func (f *File) Close() error { return nil }
