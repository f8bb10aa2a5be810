package card

import (
	"encoding/json"
	"strings"
)

// Suit 花色，零值表示未识别
type Suit byte

const (
	SuitUnknown Suit = iota
	Spades
	Hearts
	Clubs
	Diamonds
)

func (s Suit) String() string {
	switch s {
	case Spades:
		return "spades"
	case Hearts:
		return "hearts"
	case Clubs:
		return "clubs"
	case Diamonds:
		return "diamonds"
	}
	return ""
}

// Known 是否已识别
func (s Suit) Known() bool {
	return s >= Spades && s <= Diamonds
}

// ParseSuit 解析花色，单复数和首字母均可
func ParseSuit(s string) (Suit, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spades", "spade", "s":
		return Spades, true
	case "hearts", "heart", "h":
		return Hearts, true
	case "clubs", "club", "c":
		return Clubs, true
	case "diamonds", "diamond", "d":
		return Diamonds, true
	}
	return SuitUnknown, false
}

func (s Suit) MarshalJSON() ([]byte, error) {
	if !s.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(s.String())
}

func (s *Suit) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = SuitUnknown
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s, _ = ParseSuit(str)
	return nil
}
