package strategy

import "cardsight/card"

// HiLoValue Hi-Lo 计数权重：2-6 为 +1，7-9 为 0，10/J/Q/K/A 为 -1，未识别为 0
func HiLoValue(r card.Rank) int {
	switch {
	case r >= card.Two && r <= card.Six:
		return 1
	case r >= card.Seven && r <= card.Nine:
		return 0
	case r >= card.Ten && r <= card.Ace:
		return -1
	}
	return 0
}

// UpdateCount 把新看到的牌累加进计数。不做去重，调用方不能重复提交已计数的牌
func UpdateCount(count int, ranks []card.Rank) int {
	for _, r := range ranks {
		count += HiLoValue(r)
	}
	return count
}
