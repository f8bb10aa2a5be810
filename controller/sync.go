package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cardsight/store"
	"cardsight/strategy"
)

// Store 同步所需的持久化操作
type Store interface {
	UpsertSnapshot(ctx context.Context, snap strategy.Snapshot) error
	SaveCount(ctx context.Context, rec store.CountRecord) error
	RecordOutcome(ctx context.Context, shoeID string, st strategy.Settlement) (store.OutcomeRecord, error)
	ClearSnapshots(ctx context.Context) error
}

// Broadcaster 推送给所有已连接的面板，melody.Melody 满足该接口
type Broadcaster interface {
	Broadcast(msg []byte) error
}

// Message 推送给面板的消息
type Message struct {
	Type         string                `json:"type"`
	ShoeID       string                `json:"shoe_id,omitempty"`
	RunningCount int                   `json:"running_count"`
	Snapshots    []strategy.Snapshot   `json:"snapshots,omitempty"`
	Settlements  []strategy.Settlement `json:"settlements,omitempty"`
	Tally        *strategy.Tally       `json:"tally,omitempty"`
}

// SyncController 把每个周期的结果写入存储并推送到面板
type SyncController struct {
	store  Store
	hub    Broadcaster
	logger *slog.Logger
}

func NewSyncController(st Store, hub Broadcaster, logger *slog.Logger) *SyncController {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncController{
		store:  st,
		hub:    hub,
		logger: logger.With("component", "controller"),
	}
}

// SyncCycle 逐区域覆盖快照并更新计数，然后推送
func (s *SyncController) SyncCycle(ctx context.Context, shoeID string, count int, snaps []strategy.Snapshot) error {
	for _, snap := range snaps {
		if err := s.store.UpsertSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("同步区域 %s 失败: %w", snap.Region, err)
		}
	}
	if err := s.store.SaveCount(ctx, store.CountRecord{
		Count:         count,
		OptimalAction: latestAction(snaps),
		ShoeID:        shoeID,
	}); err != nil {
		return fmt.Errorf("同步计数失败: %w", err)
	}

	s.logger.Debug("周期已同步", "regions", len(snaps), "count", count)
	return s.broadcast(Message{Type: "cycle", ShoeID: shoeID, RunningCount: count, Snapshots: snaps})
}

// SyncSettlement 记录结算并推送最新统计
func (s *SyncController) SyncSettlement(ctx context.Context, shoeID string, count int, results []strategy.Settlement, tally strategy.Tally) error {
	for _, r := range results {
		if _, err := s.store.RecordOutcome(ctx, shoeID, r); err != nil {
			return fmt.Errorf("记录 %s 结算失败: %w", r.Region, err)
		}
		s.logger.Info("结算", "round", r.Round, "region", r.Region, "outcome", r.Outcome)
	}
	return s.broadcast(Message{Type: "settle", ShoeID: shoeID, RunningCount: count, Settlements: results, Tally: &tally})
}

// SyncReset 新一局或换靴时清空桌面快照，kind 为 round 或 shoe
func (s *SyncController) SyncReset(ctx context.Context, kind, shoeID string, count int) error {
	if err := s.store.ClearSnapshots(ctx); err != nil {
		return fmt.Errorf("清空快照失败: %w", err)
	}
	if kind == "shoe" {
		if err := s.store.SaveCount(ctx, store.CountRecord{Count: count, OptimalAction: strategy.NoAction, ShoeID: shoeID}); err != nil {
			return fmt.Errorf("重置计数失败: %w", err)
		}
	}
	return s.broadcast(Message{Type: kind, ShoeID: shoeID, RunningCount: count})
}

func (s *SyncController) broadcast(msg Message) error {
	if s.hub == nil {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	if err := s.hub.Broadcast(data); err != nil {
		// 面板断开不影响识别
		s.logger.Warn("推送失败", "type", msg.Type, "error", err)
	}
	return nil
}

// latestAction 第一个玩家区域的动作，没有玩家时为 N/A
func latestAction(snaps []strategy.Snapshot) strategy.Action {
	for _, snap := range snaps {
		if snap.OptimalAction != strategy.NoAction && snap.OptimalAction != "" {
			return snap.OptimalAction
		}
	}
	return strategy.NoAction
}
