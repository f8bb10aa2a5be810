package strategy

import "cardsight/card"

// HandValue 计算手牌点数。A 先按 11 计，超过 21 时逐张降为 1
func HandValue(hand []card.Rank) int {
	total, aces := 0, 0
	for _, r := range hand {
		total += r.Pips()
		if r == card.Ace {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// DealerValue 庄家明牌的点数，人头牌 10，A 为 11；未识别时 ok 为 false
func DealerValue(r card.Rank) (value int, ok bool) {
	if !r.Known() {
		return 0, false
	}
	return r.Pips(), true
}

// IsPair 恰好两张且点数相同
func IsPair(hand []card.Rank) bool {
	return len(hand) == 2 && hand[0].Known() && hand[0] == hand[1]
}
