package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// RankWhitelist OCR 只允许输出的字符，"10" 通常被读成 "0"
const RankWhitelist = "023456789JQKA"

// OCR 对一张 PNG 做单字符识别
type OCR interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// TesseractOCR 本地 tesseract，client 不是并发安全的，用互斥锁串行化
type TesseractOCR struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractOCR 创建单字符模式、限定点数字符集的 tesseract 客户端
func NewTesseractOCR() (*TesseractOCR, error) {
	client := gosseract.NewClient()
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_CHAR); err != nil {
		client.Close()
		return nil, fmt.Errorf("设置 PSM 失败: %w", err)
	}
	if err := client.SetWhitelist(RankWhitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("设置白名单失败: %w", err)
	}
	return &TesseractOCR{client: client}, nil
}

func (t *TesseractOCR) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("tesseract 载入图片失败: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract 识别失败: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (t *TesseractOCR) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}

// HTTPOCR 调用远程 OCR 服务，multipart 上传 file 字段，返回 [{"words": ...}] 或 {"results": [...]}
type HTTPOCR struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPOCR 创建远程 OCR 客户端
func NewHTTPOCR(endpoint string, timeout time.Duration) *HTTPOCR {
	return &HTTPOCR{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (h *HTTPOCR) Recognize(ctx context.Context, png []byte) (string, error) {
	if len(png) == 0 {
		return "", fmt.Errorf("图片为空")
	}

	// 1. 构造 multipart 表单
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "corner.png")
	if err != nil {
		return "", fmt.Errorf("创建表单失败: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return "", fmt.Errorf("写入表单数据失败: %w", err)
	}
	writer.Close()

	// 2. 发送 POST 请求
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR 响应错误: %d", resp.StatusCode)
	}

	// 3. 解析响应
	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取 OCR 响应失败: %w", err)
	}
	var results []struct {
		Words string `json:"words"`
	}
	if err := json.Unmarshal(respData, &results); err != nil {
		var wrapper struct {
			Results []struct {
				Words string `json:"words"`
			} `json:"results"`
		}
		if err2 := json.Unmarshal(respData, &wrapper); err2 != nil {
			return "", fmt.Errorf("解析 OCR 结果失败: %w", err)
		}
		results = wrapper.Results
	}

	for _, res := range results {
		if w := strings.TrimSpace(res.Words); w != "" {
			return w, nil
		}
	}
	return "", nil
}

// recognizeWithin 给 OCR 调用加上时限。超时后立即返回，后台调用自行结束
func recognizeWithin(ctx context.Context, timeout time.Duration, ocr OCR, png []byte) (string, error) {
	if timeout <= 0 {
		return ocr.Recognize(ctx, png)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := ocr.Recognize(ctx, png)
		ch <- result{text, err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrOCRTimeout, ctx.Err())
	}
}
