// Package config 从 CARDSIGHT_* 环境变量读取运行配置
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const Prefix = "CARDSIGHT_"

// Config 运行配置
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath   string `env:"DB_PATH" envDefault:"cardsight.db"`

	// 画面来源
	CaptureSource          string        `env:"CAPTURE_SOURCE" envDefault:"camera"`
	CameraDevice           int           `env:"CAMERA_DEVICE" envDefault:"0"`
	WindowTitles           []string      `env:"WINDOW_TITLE" envDefault:"Blackjack" envSeparator:","`
	FrameFile              string        `env:"FRAME_FILE"`
	CaptureInterval        time.Duration `env:"CAPTURE_INTERVAL" envDefault:"500ms"`
	MaxAcquisitionFailures int           `env:"MAX_ACQUISITION_FAILURES" envDefault:"10"`

	// 识别
	TemplateDir    string  `env:"TEMPLATE_DIR" envDefault:"templates"`
	TemplateWidth  int     `env:"TEMPLATE_WIDTH" envDefault:"200"`
	TemplateHeight int     `env:"TEMPLATE_HEIGHT" envDefault:"300"`
	MinCardArea    float64 `env:"MIN_CARD_AREA" envDefault:"1300"`
	CornerWidth    float64 `env:"CORNER_WIDTH" envDefault:"0.15"`
	CornerHeight   float64 `env:"CORNER_HEIGHT" envDefault:"0.16"`

	OCREngine   string        `env:"OCR_ENGINE" envDefault:"tesseract"`
	OCREndpoint string        `env:"OCR_ENDPOINT"`
	OCRAttempts int           `env:"OCR_ATTEMPTS" envDefault:"3"`
	OCRTimeout  time.Duration `env:"OCR_TIMEOUT" envDefault:"2s"`

	FeatureThreshold   float64 `env:"FEATURE_THRESHOLD" envDefault:"200"`
	FeatureBestMatches int     `env:"FEATURE_BEST_MATCHES" envDefault:"10"`

	// 策略
	AggressionPivot       int `env:"AGGRESSION_PIVOT" envDefault:"0"`
	AggressiveThreshold   int `env:"AGGRESSIVE_THRESHOLD" envDefault:"1"`
	ConservativeThreshold int `env:"CONSERVATIVE_THRESHOLD" envDefault:"0"`
}

// Load 解析环境变量并校验
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("解析环境变量失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c Config) Validate() error {
	switch c.CaptureSource {
	case "camera":
	case "window":
		if len(c.WindowTitles) == 0 {
			return fmt.Errorf("CAPTURE_SOURCE=window 需要 WINDOW_TITLE")
		}
	case "file":
		if c.FrameFile == "" {
			return fmt.Errorf("CAPTURE_SOURCE=file 需要 FRAME_FILE")
		}
	default:
		return fmt.Errorf("未知的 CAPTURE_SOURCE: %q", c.CaptureSource)
	}

	switch c.OCREngine {
	case "tesseract":
	case "http":
		if c.OCREndpoint == "" {
			return fmt.Errorf("OCR_ENGINE=http 需要 OCR_ENDPOINT")
		}
	default:
		return fmt.Errorf("未知的 OCR_ENGINE: %q", c.OCREngine)
	}

	if c.CaptureInterval <= 0 {
		return fmt.Errorf("CAPTURE_INTERVAL 必须大于 0")
	}
	if c.MaxAcquisitionFailures < 1 {
		return fmt.Errorf("MAX_ACQUISITION_FAILURES 至少为 1")
	}
	if c.TemplateWidth < 1 || c.TemplateHeight < 1 {
		return fmt.Errorf("模板尺寸无效: %dx%d", c.TemplateWidth, c.TemplateHeight)
	}
	if c.MinCardArea < 0 {
		return fmt.Errorf("MIN_CARD_AREA 不能为负")
	}
	if c.CornerWidth <= 0 || c.CornerWidth > 1 {
		return fmt.Errorf("CORNER_WIDTH 应在 (0, 1] 之间")
	}
	if c.CornerHeight < 0.16 || c.CornerHeight > 0.32 {
		return fmt.Errorf("CORNER_HEIGHT 应在 [0.16, 0.32] 之间")
	}
	if c.OCRAttempts < 1 {
		return fmt.Errorf("OCR_ATTEMPTS 至少为 1")
	}
	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT 必须大于 0")
	}
	if c.FeatureThreshold <= 0 {
		return fmt.Errorf("FEATURE_THRESHOLD 必须大于 0")
	}
	if c.FeatureBestMatches < 1 {
		return fmt.Errorf("FEATURE_BEST_MATCHES 至少为 1")
	}
	return nil
}
