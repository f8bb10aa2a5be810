package card

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Label 一张牌的识别结果，任一字段都可能未识别
type Label struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// Field 标签字段位集，用于告诉识别阶段还需要补哪些字段
type Field uint8

const (
	FieldRank Field = 1 << iota
	FieldSuit

	FieldNone Field = 0
	FieldAll        = FieldRank | FieldSuit
)

func (f Field) Has(x Field) bool { return f&x == x }

func (f Field) String() string {
	switch f {
	case FieldNone:
		return "none"
	case FieldRank:
		return "rank"
	case FieldSuit:
		return "suit"
	case FieldAll:
		return "rank+suit"
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Missing 返回尚未识别的字段
func (l Label) Missing() Field {
	var f Field
	if !l.Rank.Known() {
		f |= FieldRank
	}
	if !l.Suit.Known() {
		f |= FieldSuit
	}
	return f
}

// Complete 点数和花色都已识别
func (l Label) Complete() bool { return l.Missing() == FieldNone }

// Merge 只用 other 填补 want 中仍未识别的字段，已识别的字段不会被覆盖
func (l Label) Merge(other Label, want Field) Label {
	missing := l.Missing() & want
	if missing.Has(FieldRank) && other.Rank.Known() {
		l.Rank = other.Rank
	}
	if missing.Has(FieldSuit) && other.Suit.Known() {
		l.Suit = other.Suit
	}
	return l
}

// Key 模板库使用的键，如 "ace_spades"
func (l Label) Key() string {
	return strings.ToLower(l.Rank.String()) + "_" + l.Suit.String()
}

func (l Label) String() string {
	r, s := l.Rank.String(), l.Suit.String()
	if r == "" {
		r = "?"
	}
	if s == "" {
		s = "?"
	}
	return r + " of " + s
}

// ParseKey 解析模板键或文件名主体：<rank>_<suit>、<rank>_of_<suit>、"<Rank> of <Suit>"
func ParseKey(key string) (Label, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	var rank, suit string
	switch {
	case strings.Contains(k, "_of_"):
		rank, suit, _ = strings.Cut(k, "_of_")
	case strings.Contains(k, " of "):
		rank, suit, _ = strings.Cut(k, " of ")
	case strings.Contains(k, "_"):
		rank, suit, _ = strings.Cut(k, "_")
	default:
		return Label{}, fmt.Errorf("card: 无法解析标签 %q", key)
	}
	r, ok := ParseRank(rank)
	if !ok {
		return Label{}, fmt.Errorf("card: 无法解析点数 %q", rank)
	}
	s, ok := ParseSuit(suit)
	if !ok {
		return Label{}, fmt.Errorf("card: 无法解析花色 %q", suit)
	}
	return Label{Rank: r, Suit: s}, nil
}

// ParseFileName 从模板文件名解析标签，忽略目录和扩展名
func ParseFileName(name string) (Label, error) {
	base := filepath.Base(name)
	return ParseKey(strings.TrimSuffix(base, filepath.Ext(base)))
}

// RanksOf 提取已识别的点数，未识别的牌不计入
func RanksOf(labels []Label) []Rank {
	out := make([]Rank, 0, len(labels))
	for _, l := range labels {
		if l.Rank.Known() {
			out = append(out, l.Rank)
		}
	}
	return out
}
