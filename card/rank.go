package card

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Rank 牌面点数，零值表示未识别
type Rank byte

const (
	RankUnknown Rank = iota
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

var rankNames = [...]string{
	RankUnknown: "",
	Two:         "2",
	Three:       "3",
	Four:        "4",
	Five:        "5",
	Six:         "6",
	Seven:       "7",
	Eight:       "8",
	Nine:        "9",
	Ten:         "10",
	Jack:        "Jack",
	Queen:       "Queen",
	King:        "King",
	Ace:         "Ace",
}

// String 返回点数的规范名称：数字牌为数字，人头牌和 A 为全称
func (r Rank) String() string {
	if int(r) < len(rankNames) {
		return rankNames[r]
	}
	return ""
}

// Known 是否已识别
func (r Rank) Known() bool {
	return r >= Two && r <= Ace
}

// IsFace J/Q/K
func (r Rank) IsFace() bool {
	return r == Jack || r == Queen || r == King
}

// Pips 数字牌的面值，人头牌为 10，A 为 11，未识别为 0
func (r Rank) Pips() int {
	switch {
	case r >= Two && r <= Ten:
		return int(r) + 1
	case r.IsFace():
		return 10
	case r == Ace:
		return 11
	}
	return 0
}

// ParseRank 解析点数文本，兼容 OCR 短码（A/J/Q/K/0/10）和全称（Ace/King/...）
func ParseRank(s string) (Rank, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return RankUnknown, false
	case "a", "ace":
		return Ace, true
	case "k", "king":
		return King, true
	case "q", "queen":
		return Queen, true
	case "j", "jack":
		return Jack, true
	case "0", "10", "t", "ten":
		// OCR 常把 "10" 读成 "0"
		return Ten, true
	case "two":
		return Two, true
	case "three":
		return Three, true
	case "four":
		return Four, true
	case "five":
		return Five, true
	case "six":
		return Six, true
	case "seven":
		return Seven, true
	case "eight":
		return Eight, true
	case "nine":
		return Nine, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 2 || n > 9 {
		return RankUnknown, false
	}
	return Rank(n - 1), true
}

// Ranks 批量解析，无法解析的项保留为 RankUnknown
func Ranks(ss ...string) []Rank {
	out := make([]Rank, len(ss))
	for i, s := range ss {
		out[i], _ = ParseRank(s)
	}
	return out
}

// MarshalJSON 未识别输出 null
func (r Rank) MarshalJSON() ([]byte, error) {
	if !r.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON 接受 null、短码或全称
func (r *Rank) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = RankUnknown
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r, _ = ParseRank(s)
	return nil
}
