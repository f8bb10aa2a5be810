package vision

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cardsight/card"
)

func TestHTTPOCRRecognize(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{"数组格式", http.StatusOK, `[{"words":""},{"words":"K"}]`, "K", false},
		{"results 包装", http.StatusOK, `{"results":[{"words":" 10 "}]}`, "10", false},
		{"空结果", http.StatusOK, `[]`, "", false},
		{"服务错误", http.StatusInternalServerError, `oops`, "", true},
		{"无法解析", http.StatusOK, `not json`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				f, _, err := r.FormFile("file")
				if err != nil {
					t.Errorf("missing file field: %v", err)
				} else {
					data, _ := io.ReadAll(f)
					if string(data) != "png-bytes" {
						t.Errorf("uploaded = %q", data)
					}
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			ocr := NewHTTPOCR(ts.URL, time.Second)
			got, err := ocr.Recognize(context.Background(), []byte("png-bytes"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Recognize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Recognize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPOCREmptyImage(t *testing.T) {
	ocr := NewHTTPOCR("http://127.0.0.1:0", time.Second)
	if _, err := ocr.Recognize(context.Background(), nil); err == nil {
		t.Error("expected error for empty image")
	}
}

// scriptedOCR 依次返回预设结果
type scriptedOCR struct {
	texts []string
	calls int
}

func (s *scriptedOCR) Recognize(ctx context.Context, png []byte) (string, error) {
	if s.calls >= len(s.texts) {
		return "", errors.New("no more results")
	}
	text := s.texts[s.calls]
	s.calls++
	return text, nil
}

// blockingOCR 忽略 ctx，直到 release 被关闭
type blockingOCR struct {
	release chan struct{}
}

func (b *blockingOCR) Recognize(ctx context.Context, png []byte) (string, error) {
	<-b.release
	return "A", nil
}

func TestRecognizeWithinTimeout(t *testing.T) {
	ocr := &blockingOCR{release: make(chan struct{})}
	defer close(ocr.release)

	start := time.Now()
	_, err := recognizeWithin(context.Background(), 20*time.Millisecond, ocr, []byte{1})
	if !errors.Is(err, ErrOCRTimeout) {
		t.Fatalf("error = %v, want ErrOCRTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("took %v, should return at the deadline", elapsed)
	}
}

func TestReadRankMajority(t *testing.T) {
	tests := []struct {
		name   string
		texts  []string
		want   card.Rank
		wantOK bool
	}{
		{"多数投票", []string{"K", "Q", "K"}, card.King, true},
		{"并列取先出现", []string{"7", "garbage", "9"}, card.Seven, true},
		{"10 与 0 视为同一点数", []string{"10", "0", "O"}, card.Ten, true},
		{"全部无效", []string{"", "x", "1"}, card.RankUnknown, false},
		{"OCR 出错", nil, card.RankUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRankConfig()
			cfg.Timeout = 0
			c := NewRankClassifier(&scriptedOCR{texts: tt.texts}, cfg, nil)
			got, ok := c.ReadRank(context.Background(), []byte{1})
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ReadRank() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRankClassifierSkipsSuitOnly(t *testing.T) {
	c := NewRankClassifier(&scriptedOCR{texts: []string{"A"}}, DefaultRankConfig(), nil)
	_, err := c.Classify(context.Background(), RectifiedCard{}, card.FieldSuit)
	if !errors.Is(err, ErrUnresolved) {
		t.Errorf("error = %v, want ErrUnresolved", err)
	}
}
