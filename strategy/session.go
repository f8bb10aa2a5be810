package strategy

import (
	"sort"
	"sync"

	"cardsight/card"

	"github.com/google/uuid"
)

// Observation 某个区域在一个周期内识别到的牌
type Observation struct {
	Region string
	Labels []card.Label
}

// Snapshot 一个区域在本周期的输出，按区域名幂等覆盖
type Snapshot struct {
	Region        string       `json:"region_name"`
	Labels        []card.Label `json:"labels"`
	OptimalAction Action       `json:"optimal_action"`
	RunningCount  int          `json:"running_count"`
}

// DecisionState 最近一次决策及当时的庄家明牌
type DecisionState struct {
	Action Action    `json:"action"`
	Dealer card.Rank `json:"dealer"`
}

// Settlement 单个玩家区域的结算结果
type Settlement struct {
	Round   int     `json:"round"`
	Region  string  `json:"region_name"`
	Outcome Outcome `json:"outcome"`
}

// Cycle 一次 Apply 的完整结果，牌靴、局数和计数与快照在同一把锁内取得
type Cycle struct {
	State
	Snapshots []Snapshot
}

// State 牌靴、局数和计数的一致视图
type State struct {
	ShoeID string `json:"shoe_id"`
	Round  int    `json:"round"`
	Count  int    `json:"count"`
}

// Session 牌局上下文：手牌、计数、决策和胜负统计，跨周期保存，只在新一局/新一靴时重置
type Session struct {
	mu sync.Mutex

	engine       *Engine
	dealerRegion string

	shoeID  string
	round   int
	count   int
	hands   map[string][]card.Label
	counted map[string]map[card.Rank]int
	decided map[string]DecisionState
	tally   Tally
}

// NewSession 创建牌局，dealerRegion 为庄家区域名
func NewSession(engine *Engine, dealerRegion string) *Session {
	s := &Session{
		engine:       engine,
		dealerRegion: dealerRegion,
	}
	s.resetShoe()
	return s
}

func (s *Session) resetShoe() {
	s.shoeID = uuid.NewString()
	s.round = 1
	s.count = 0
	s.counted = make(map[string]map[card.Rank]int)
	s.resetRound()
}

// resetRound 清空手牌和决策；已计数的牌跨局保留，桌面上还没收走的牌不会再计一次
func (s *Session) resetRound() {
	s.hands = make(map[string][]card.Label)
	s.decided = make(map[string]DecisionState)
}

// Apply 处理一个周期的识别结果：先计入新出现的牌，再为每个玩家区域重新计算动作。
// 同一区域内按点数做多重集差分，只有比上一次观察多出来的牌才会计数
func (s *Session) Apply(obs []Observation) Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range obs {
		s.hands[o.Region] = append([]card.Label(nil), o.Labels...)
		s.count = UpdateCount(s.count, s.fresh(o.Region, o.Labels))
	}

	dealer := s.dealerUpCard()
	snaps := make([]Snapshot, 0, len(obs))
	for _, o := range obs {
		action := NoAction
		if o.Region != s.dealerRegion {
			action = s.engine.OptimalAction(card.RanksOf(o.Labels), dealer, s.count)
			s.decided[o.Region] = DecisionState{Action: action, Dealer: dealer}
		}
		snaps = append(snaps, Snapshot{
			Region:        o.Region,
			Labels:        o.Labels,
			OptimalAction: action,
			RunningCount:  s.count,
		})
	}
	return Cycle{State: s.state(), Snapshots: snaps}
}

// fresh 返回本区域尚未计数的牌，并把登记替换为本次观察到的多重集，
// 牌被收走后登记随之缩小，之后再发到同一区域的牌照常计数
func (s *Session) fresh(region string, labels []card.Label) []card.Rank {
	seen := s.counted[region]
	if seen == nil {
		seen = make(map[card.Rank]int)
		s.counted[region] = seen
	}
	now := make(map[card.Rank]int)
	var out []card.Rank
	for _, l := range labels {
		if !l.Rank.Known() {
			continue
		}
		now[l.Rank]++
		if now[l.Rank] > seen[l.Rank] {
			out = append(out, l.Rank)
		}
	}
	for r := range seen {
		if now[r] == 0 {
			delete(seen, r)
		}
	}
	for r, n := range now {
		seen[r] = n
	}
	return out
}

func (s *Session) dealerUpCard() card.Rank {
	for _, l := range s.hands[s.dealerRegion] {
		if l.Rank.Known() {
			return l.Rank
		}
	}
	return card.RankUnknown
}

// SettledRound 一次结算的结果，State 为结算后进入的新一局
type SettledRound struct {
	Results []Settlement
	Tally   Tally
	State   State
}

// Settle 庄家至少两张牌时结算所有玩家区域并开始下一局；否则 ok 为 false
func (s *Session) Settle() (r SettledRound, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dealer := card.RanksOf(s.hands[s.dealerRegion])
	if len(dealer) < 2 {
		return SettledRound{}, false
	}
	regions := make([]string, 0, len(s.hands))
	for region := range s.hands {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	for _, region := range regions {
		if region == s.dealerRegion {
			continue
		}
		// 只有未识别标签的区域不算一手牌
		ranks := card.RanksOf(s.hands[region])
		if len(ranks) == 0 {
			continue
		}
		o, _ := Settle(ranks, dealer)
		s.tally.Add(o)
		r.Results = append(r.Results, Settlement{Round: s.round, Region: region, Outcome: o})
	}
	s.round++
	s.resetRound()
	r.Tally = s.tally
	r.State = s.state()
	return r, true
}

// NewRound 清空手牌，保留计数
func (s *Session) NewRound() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.round++
	s.resetRound()
	return s.state()
}

// NewShoe 换靴：清空计数和手牌
func (s *Session) NewShoe() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetShoe()
	return s.state()
}

// State 一次性读取牌靴、局数和计数
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	return State{ShoeID: s.shoeID, Round: s.round, Count: s.count}
}

// Decision 某区域最近一次决策
func (s *Session) Decision(region string) (DecisionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decided[region]
	return d, ok
}

// Tally 胜负统计副本
func (s *Session) Tally() Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally
}

// RestoreTally 启动时从存储恢复统计
func (s *Session) RestoreTally(t Tally) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tally = t
}
