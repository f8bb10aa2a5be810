package vision

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cardsight/card"

	"gocv.io/x/gocv"
)

// Template 模板库中的一项：规范尺寸的二值图及其 ORB 描述子
type Template struct {
	Label       card.Label
	Bitmap      gocv.Mat
	Keypoints   int
	Descriptors gocv.Mat // 关键点不足时为空
}

// HasDescriptors 描述子是否可用
func (t Template) HasDescriptors() bool {
	return !t.Descriptors.Empty()
}

// TemplateLibrary 启动时构建一次，之后只读，可在并行的区域处理间共享
type TemplateLibrary struct {
	templates []Template
	size      image.Point
}

// NewTemplateLibrary 用规范化后的位图构建模板库并计算描述子，按标签键排序保证遍历顺序稳定。
// 库接管 bitmaps 中 Mat 的所有权
func NewTemplateLibrary(bitmaps map[card.Label]gocv.Mat, size image.Point) *TemplateLibrary {
	orb := gocv.NewORB()
	defer orb.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	lib := &TemplateLibrary{size: size}
	for label, bmp := range bitmaps {
		kps, desc := orb.DetectAndCompute(bmp, mask)
		lib.templates = append(lib.templates, Template{
			Label:       label,
			Bitmap:      bmp,
			Keypoints:   len(kps),
			Descriptors: desc,
		})
	}
	sort.Slice(lib.templates, func(i, j int) bool {
		return lib.templates[i].Label.Key() < lib.templates[j].Label.Key()
	})
	return lib
}

// LoadTemplateLibrary 读取目录下 <rank>_<suit>.<ext> 或 <rank>_of_<suit>.<ext> 参考图。
// 单个文件失败只记日志并跳过；目录不可读时返回空库和错误
func LoadTemplateLibrary(dir string, rect *Rectifier, logger *slog.Logger) (*TemplateLibrary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "vision.library")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return NewTemplateLibrary(nil, rect.Size()), fmt.Errorf("无法读取模板目录: %w", err)
	}

	bitmaps := make(map[card.Label]gocv.Mat)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			continue
		}

		label, err := card.ParseFileName(name)
		if err != nil {
			logger.Warn("跳过无法解析的模板文件", "file", name, "error", err)
			continue
		}
		if _, dup := bitmaps[label]; dup {
			logger.Warn("重复的模板标签", "file", name, "label", label.Key())
			continue
		}

		img := gocv.IMRead(filepath.Join(dir, name), gocv.IMReadGrayScale)
		if img.Empty() {
			logger.Warn("无法加载模板图片", "file", name)
			img.Close()
			continue
		}
		bitmaps[label] = rect.Normalize(img)
		img.Close()
	}

	lib := NewTemplateLibrary(bitmaps, rect.Size())
	for _, t := range lib.templates {
		if !t.HasDescriptors() {
			logger.Warn("模板没有可用描述子，仅参与像素匹配", "label", t.Label.Key())
		}
	}
	logger.Info("模板库加载完成", "dir", dir, "templates", lib.Len())
	return lib, nil
}

// Len 模板数量
func (l *TemplateLibrary) Len() int {
	return len(l.templates)
}

// Size 模板规范尺寸
func (l *TemplateLibrary) Size() image.Point {
	return l.size
}

// Templates 模板列表，调用方不得修改其中的 Mat
func (l *TemplateLibrary) Templates() []Template {
	return l.templates
}

// Labels 所有模板标签
func (l *TemplateLibrary) Labels() []card.Label {
	out := make([]card.Label, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t.Label)
	}
	return out
}

// Close 进程退出时释放
func (l *TemplateLibrary) Close() error {
	for _, t := range l.templates {
		t.Bitmap.Close()
		t.Descriptors.Close()
	}
	l.templates = nil
	return nil
}
