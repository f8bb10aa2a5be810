package vision

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cardsight/card"

	"gocv.io/x/gocv"
)

// BatchStats 批量识别统计
type BatchStats struct {
	TotalCount   int
	SuccessCount int
	FailureCount int
	SuccessRate  float64
	CardCount    int
	RankHits     int
	SuitHits     int
	// ResolvedBy 阶段名 -> 由该阶段给出点数的牌数
	ResolvedBy map[string]int
}

// BatchDetail 单张图片的识别结果
type BatchDetail struct {
	FileName  string
	Expected  []card.Label
	Actual    []card.Label
	IsCorrect bool
}

var copySuffix = regexp.MustCompile(`_\d+$`)

// ExpectedLabels 从文件名解析期望的牌，多张牌用 "-" 分隔并按位置顺序排列，
// 例如 ace_spades-10_hearts.jpg；末尾的 _1、_2 等编号忽略
func ExpectedLabels(name string) ([]card.Label, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = copySuffix.ReplaceAllString(base, "")
	var out []card.Label
	for _, part := range strings.Split(base, "-") {
		l, err := card.ParseKey(part)
		if err != nil {
			return nil, fmt.Errorf("无法解析文件名 %s: %w", name, err)
		}
		out = append(out, l)
	}
	return out, nil
}

// BatchRecognize 识别目录中所有带标注的图片，每张图片作为一个区域处理
func BatchRecognize(ctx context.Context, p *Pipeline, dir string) (BatchStats, []BatchDetail, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return BatchStats{}, nil, fmt.Errorf("无法读取目录: %w", err)
	}

	stats := BatchStats{ResolvedBy: make(map[string]int)}
	var details []BatchDetail
	for _, file := range files {
		if ctx.Err() != nil {
			return stats, details, ctx.Err()
		}
		if file.IsDir() {
			continue
		}
		name := file.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			continue
		}
		expected, err := ExpectedLabels(name)
		if err != nil {
			p.logger.Warn("跳过未标注的图片", "file", name, "error", err)
			continue
		}

		img := gocv.IMRead(filepath.Join(dir, name), gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			continue
		}
		results := p.Process(ctx, img)
		img.Close()
		SortByPosition(results)

		actual := Labels(results)
		for _, r := range results {
			if stage, ok := r.ResolvedBy[card.FieldRank]; ok {
				stats.ResolvedBy[stage]++
			}
		}

		rankHits, suitHits := compareLabels(expected, actual)
		stats.TotalCount++
		stats.CardCount += len(expected)
		stats.RankHits += rankHits
		stats.SuitHits += suitHits

		correct := len(actual) == len(expected) && rankHits == len(expected) && suitHits == len(expected)
		if correct {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
		details = append(details, BatchDetail{
			FileName:  name,
			Expected:  expected,
			Actual:    actual,
			IsCorrect: correct,
		})
	}

	if stats.TotalCount > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalCount) * 100
	}
	return stats, details, nil
}

// compareLabels 按位置逐张比较，返回点数和花色分别命中的张数
func compareLabels(expected, actual []card.Label) (rankHits, suitHits int) {
	for i, want := range expected {
		if i >= len(actual) {
			break
		}
		if actual[i].Rank == want.Rank {
			rankHits++
		}
		if actual[i].Suit == want.Suit {
			suitHits++
		}
	}
	return rankHits, suitHits
}

// WriteBatchReport 输出批量识别报告
func WriteBatchReport(w io.Writer, stats BatchStats, details []BatchDetail) {
	fmt.Fprintf(w, "\n%-30s | %-30s | %-30s | %s\n", "文件名", "预期", "识别结果", "状态")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, d := range details {
		status := "正确"
		if !d.IsCorrect {
			status = "错误"
		}
		fmt.Fprintf(w, "%-30s | %-30s | %-30s | %s\n", d.FileName, joinLabels(d.Expected), joinLabels(d.Actual), status)
	}

	fmt.Fprintln(w, strings.Repeat("-", 100))
	fmt.Fprintf(w, "测试总结: 总计 %d, 成功 %d, 失败 %d, 成功率 %.2f%%\n",
		stats.TotalCount, stats.SuccessCount, stats.FailureCount, stats.SuccessRate)
	if stats.CardCount > 0 {
		fmt.Fprintf(w, "点数命中 %d/%d, 花色命中 %d/%d\n", stats.RankHits, stats.CardCount, stats.SuitHits, stats.CardCount)
	}
	for stage, n := range stats.ResolvedBy {
		fmt.Fprintf(w, "  %s: %d\n", stage, n)
	}
}

func joinLabels(labels []card.Label) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.String())
	}
	return strings.Join(parts, ", ")
}
