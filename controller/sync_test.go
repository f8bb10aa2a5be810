package controller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cardsight/card"
	"cardsight/store"
	"cardsight/strategy"
)

type fakeStore struct {
	snaps    map[string]strategy.Snapshot
	count    store.CountRecord
	outcomes []strategy.Settlement
	cleared  int
	failOn   string
}

func newFakeStore() *fakeStore {
	return &fakeStore{snaps: make(map[string]strategy.Snapshot)}
}

func (f *fakeStore) UpsertSnapshot(ctx context.Context, snap strategy.Snapshot) error {
	if f.failOn == snap.Region {
		return errors.New("disk full")
	}
	f.snaps[snap.Region] = snap
	return nil
}

func (f *fakeStore) SaveCount(ctx context.Context, rec store.CountRecord) error {
	f.count = rec
	return nil
}

func (f *fakeStore) RecordOutcome(ctx context.Context, shoeID string, st strategy.Settlement) (store.OutcomeRecord, error) {
	f.outcomes = append(f.outcomes, st)
	return store.OutcomeRecord{ShoeID: shoeID, Region: st.Region, Outcome: st.Outcome}, nil
}

func (f *fakeStore) ClearSnapshots(ctx context.Context) error {
	f.cleared++
	f.snaps = make(map[string]strategy.Snapshot)
	return nil
}

type fakeHub struct {
	msgs [][]byte
	err  error
}

func (h *fakeHub) Broadcast(msg []byte) error {
	h.msgs = append(h.msgs, msg)
	return h.err
}

func TestSyncCycle(t *testing.T) {
	st := newFakeStore()
	hub := &fakeHub{}
	c := NewSyncController(st, hub, nil)

	snaps := []strategy.Snapshot{
		{Region: "Dealer", Labels: []card.Label{{Rank: card.Ten, Suit: card.Spades}}, OptimalAction: strategy.NoAction, RunningCount: -1},
		{Region: "Player1", Labels: []card.Label{{Rank: card.Ten}, {Rank: card.Six}}, OptimalAction: strategy.Hit, RunningCount: -1},
	}
	if err := c.SyncCycle(context.Background(), "shoe-1", -1, snaps); err != nil {
		t.Fatalf("SyncCycle() error = %v", err)
	}

	if len(st.snaps) != 2 {
		t.Errorf("stored %d snapshots, want 2", len(st.snaps))
	}
	if st.count.Count != -1 || st.count.OptimalAction != strategy.Hit || st.count.ShoeID != "shoe-1" {
		t.Errorf("count = %+v", st.count)
	}
	if len(hub.msgs) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(hub.msgs))
	}
	var msg Message
	if err := json.Unmarshal(hub.msgs[0], &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "cycle" || len(msg.Snapshots) != 2 || msg.Snapshots[1].Region != "Player1" {
		t.Errorf("message = %+v", msg)
	}
}

func TestSyncCycleStoreError(t *testing.T) {
	st := newFakeStore()
	st.failOn = "Player2"
	hub := &fakeHub{}
	c := NewSyncController(st, hub, nil)

	err := c.SyncCycle(context.Background(), "shoe-1", 0, []strategy.Snapshot{{Region: "Player2"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(hub.msgs) != 0 {
		t.Errorf("should not broadcast after a store failure")
	}
}

func TestSyncCycleBroadcastErrorIgnored(t *testing.T) {
	hub := &fakeHub{err: errors.New("closed")}
	c := NewSyncController(newFakeStore(), hub, nil)
	if err := c.SyncCycle(context.Background(), "shoe-1", 0, nil); err != nil {
		t.Fatalf("SyncCycle() error = %v", err)
	}
}

func TestSyncSettlement(t *testing.T) {
	st := newFakeStore()
	hub := &fakeHub{}
	c := NewSyncController(st, hub, nil)

	results := []strategy.Settlement{
		{Round: 1, Region: "Player1", Outcome: strategy.Win},
		{Round: 1, Region: "Player2", Outcome: strategy.Loss},
	}
	tally := strategy.Tally{TotalGames: 2, Wins: 1, Losses: 1}
	if err := c.SyncSettlement(context.Background(), "shoe-1", 2, results, tally); err != nil {
		t.Fatalf("SyncSettlement() error = %v", err)
	}
	if len(st.outcomes) != 2 {
		t.Errorf("outcomes = %d, want 2", len(st.outcomes))
	}
	var msg Message
	if err := json.Unmarshal(hub.msgs[0], &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Tally == nil || *msg.Tally != tally {
		t.Errorf("tally = %+v, want %+v", msg.Tally, tally)
	}
}

func TestSyncReset(t *testing.T) {
	st := newFakeStore()
	st.snaps["Player1"] = strategy.Snapshot{Region: "Player1"}
	c := NewSyncController(st, nil, nil)

	if err := c.SyncReset(context.Background(), "shoe", "shoe-2", 0); err != nil {
		t.Fatalf("SyncReset() error = %v", err)
	}
	if st.cleared != 1 || len(st.snaps) != 0 {
		t.Errorf("snapshots not cleared")
	}
	if st.count.ShoeID != "shoe-2" || st.count.OptimalAction != strategy.NoAction {
		t.Errorf("count = %+v", st.count)
	}
}

func TestLatestAction(t *testing.T) {
	tests := []struct {
		name  string
		snaps []strategy.Snapshot
		want  strategy.Action
	}{
		{"只有庄家", []strategy.Snapshot{{OptimalAction: strategy.NoAction}}, strategy.NoAction},
		{"取第一个玩家", []strategy.Snapshot{{OptimalAction: strategy.NoAction}, {OptimalAction: strategy.Split}, {OptimalAction: strategy.Stand}}, strategy.Split},
		{"空", nil, strategy.NoAction},
	}
	for _, tt := range tests {
		if got := latestAction(tt.snaps); got != tt.want {
			t.Errorf("%s: latestAction() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
