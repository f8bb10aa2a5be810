package strategy

import "cardsight/card"

// Action 推荐动作
type Action string

const (
	Hit    Action = "Hit"
	Stand  Action = "Stand"
	Double Action = "Double"
	Split  Action = "Split"
	// NoAction 庄家区域不给建议
	NoAction Action = "N/A"
)

// Config 激进程度阈值配置。
// threshold = AggressiveThreshold (count > AggressionPivot) 否则 ConservativeThreshold，
// 13-16 对庄家 7 以上时 count <= threshold 要牌，否则停牌
type Config struct {
	AggressionPivot       int
	AggressiveThreshold   int
	ConservativeThreshold int
}

// DefaultConfig 默认阈值，计数为 0 时 16 对 10 要牌
func DefaultConfig() Config {
	return Config{
		AggressionPivot:       0,
		AggressiveThreshold:   1,
		ConservativeThreshold: 0,
	}
}

// Engine 无状态的决策表
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Threshold 当前计数下的激进阈值
func (e *Engine) Threshold(count int) int {
	if count > e.cfg.AggressionPivot {
		return e.cfg.AggressiveThreshold
	}
	return e.cfg.ConservativeThreshold
}

// OptimalAction 根据手牌、庄家明牌和计数给出动作。
// 对子规则先于点数表判断；没有命中拆牌规则的对子按点数表处理
func (e *Engine) OptimalAction(hand []card.Rank, dealer card.Rank, count int) Action {
	dealerValue, ok := DealerValue(dealer)
	if !ok {
		return Hit
	}

	if IsPair(hand) {
		if splitPair(hand[0], dealerValue) {
			return Split
		}
	}

	total := HandValue(hand)
	switch {
	case total >= 17:
		return Stand
	case total >= 13:
		if dealerValue >= 7 && count <= e.Threshold(count) {
			return Hit
		}
		return Stand
	case total == 12:
		if dealerValue >= 4 && dealerValue <= 6 {
			return Stand
		}
		return Hit
	case total >= 9:
		if total+count <= 21 {
			return Double
		}
		return Hit
	}
	return Hit
}

func splitPair(r card.Rank, dealerValue int) bool {
	switch r {
	case card.Eight, card.Ace:
		return true
	case card.Two, card.Three, card.Seven:
		return dealerValue <= 7
	case card.Six:
		return dealerValue <= 6
	case card.Nine:
		return dealerValue != 7 && dealerValue != 10 && dealerValue != 11
	}
	return false
}
