package strategy

import "cardsight/card"

// Outcome 一局的结果
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
	Tie  Outcome = "tie"
)

// Settle 结算一局。庄家翻开的牌少于两张时 ok 为 false
func Settle(player, dealer []card.Rank) (outcome Outcome, ok bool) {
	if len(dealer) < 2 {
		return "", false
	}
	p, d := HandValue(player), HandValue(dealer)
	switch {
	case p > 21:
		return Loss, true
	case d > 21 || p > d:
		return Win, true
	case p < d:
		return Loss, true
	}
	return Tie, true
}

// Tally 胜负统计
type Tally struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	Ties       int `json:"ties"`
}

// Add 记入一局结果
func (t *Tally) Add(o Outcome) {
	t.TotalGames++
	switch o {
	case Win:
		t.Wins++
	case Loss:
		t.Losses++
	case Tie:
		t.Ties++
	}
}
