package vision

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateContour 四边形退化（重合点、非凸、面积为 0），该候选直接丢弃
	ErrDegenerateContour = errors.New("vision: 轮廓几何退化")

	// ErrUnresolved 当前阶段无法给出请求的字段
	ErrUnresolved = errors.New("vision: 未能识别")

	// ErrNoTemplates 模板库为空
	ErrNoTemplates = errors.New("vision: 模板库为空")

	// ErrOCRTimeout OCR 调用超时
	ErrOCRTimeout = errors.New("vision: OCR 超时")
)

// StageError 记录识别链中某个阶段的失败
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("vision [%s]: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
