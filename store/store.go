// Package store 用 SQLite 保存各区域快照、计数和胜负统计
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cardsight/card"
	"cardsight/strategy"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store SQLite 存储，可被多个 goroutine 同时使用
type Store struct {
	sqlDB *sql.DB
}

// CountRecord 当前计数及最近一次给出的动作
type CountRecord struct {
	Count         int             `json:"count"`
	OptimalAction strategy.Action `json:"optimal_action"`
	ShoeID        string          `json:"shoe_id"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OutcomeRecord 一条结算记录
type OutcomeRecord struct {
	ID        string           `json:"id"`
	ShoeID    string           `json:"shoe_id"`
	Round     int              `json:"round"`
	Region    string           `json:"region_name"`
	Outcome   strategy.Outcome `json:"outcome"`
	CreatedAt time.Time        `json:"created_at"`
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open 打开数据库并建表
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("数据库路径不能为空")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("建表失败: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("存储未初始化")
	}
	return nil
}

// UpsertSnapshot 按区域名覆盖，重复写入同一快照结果不变
func (s *Store) UpsertSnapshot(ctx context.Context, snap strategy.Snapshot) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	region := strings.TrimSpace(snap.Region)
	if region == "" {
		return fmt.Errorf("区域名不能为空")
	}
	labels := snap.Labels
	if labels == nil {
		labels = []card.Label{}
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("序列化标签失败: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO game_state (region_name, labels, optimal_action, running_count, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(region_name) DO UPDATE SET
		   labels = excluded.labels,
		   optimal_action = excluded.optimal_action,
		   running_count = excluded.running_count,
		   updated_at = excluded.updated_at`,
		region, string(data), string(snap.OptimalAction), snap.RunningCount, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("写入快照失败: %w", err)
	}
	return nil
}

// GetSnapshot 读取单个区域的快照
func (s *Store) GetSnapshot(ctx context.Context, region string) (strategy.Snapshot, bool, error) {
	if err := s.ready(ctx); err != nil {
		return strategy.Snapshot{}, false, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT region_name, labels, optimal_action, running_count FROM game_state WHERE region_name = ?`,
		region,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return strategy.Snapshot{}, false, nil
	}
	if err != nil {
		return strategy.Snapshot{}, false, fmt.Errorf("读取快照失败: %w", err)
	}
	return snap, true, nil
}

// ListSnapshots 所有区域的快照，按区域名排序
func (s *Store) ListSnapshots(ctx context.Context) ([]strategy.Snapshot, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT region_name, labels, optimal_action, running_count FROM game_state ORDER BY region_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("查询快照失败: %w", err)
	}
	defer rows.Close()

	var out []strategy.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("读取快照失败: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (strategy.Snapshot, error) {
	var (
		snap   strategy.Snapshot
		labels string
		action string
	)
	if err := row.Scan(&snap.Region, &labels, &action, &snap.RunningCount); err != nil {
		return strategy.Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(labels), &snap.Labels); err != nil {
		return strategy.Snapshot{}, fmt.Errorf("解析标签失败: %w", err)
	}
	snap.OptimalAction = strategy.Action(action)
	return snap, nil
}

// ClearSnapshots 新一局开始时清空桌面状态
func (s *Store) ClearSnapshots(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM game_state`); err != nil {
		return fmt.Errorf("清空快照失败: %w", err)
	}
	return nil
}

// SaveCount 覆盖当前计数
func (s *Store) SaveCount(ctx context.Context, rec CountRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO card_count (id, count, optimal_action, shoe_id, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   count = excluded.count,
		   optimal_action = excluded.optimal_action,
		   shoe_id = excluded.shoe_id,
		   updated_at = excluded.updated_at`,
		rec.Count, string(rec.OptimalAction), rec.ShoeID, toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("写入计数失败: %w", err)
	}
	return nil
}

// LoadCount 读取当前计数，尚未写入时 found 为 false
func (s *Store) LoadCount(ctx context.Context) (rec CountRecord, found bool, err error) {
	if err := s.ready(ctx); err != nil {
		return CountRecord{}, false, err
	}
	var (
		action    string
		updatedAt int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT count, optimal_action, shoe_id, updated_at FROM card_count WHERE id = 1`,
	).Scan(&rec.Count, &action, &rec.ShoeID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CountRecord{}, false, nil
	}
	if err != nil {
		return CountRecord{}, false, fmt.Errorf("读取计数失败: %w", err)
	}
	rec.OptimalAction = strategy.Action(action)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, true, nil
}

// RecordOutcome 记录一条结算并累加统计，两者在同一事务中
func (s *Store) RecordOutcome(ctx context.Context, shoeID string, st strategy.Settlement) (OutcomeRecord, error) {
	if err := s.ready(ctx); err != nil {
		return OutcomeRecord{}, err
	}
	col, ok := map[strategy.Outcome]string{
		strategy.Win:  "wins",
		strategy.Loss: "losses",
		strategy.Tie:  "ties",
	}[st.Outcome]
	if !ok {
		return OutcomeRecord{}, fmt.Errorf("未知的结算结果: %q", st.Outcome)
	}

	rec := OutcomeRecord{
		ID:        uuid.NewString(),
		ShoeID:    shoeID,
		Round:     st.Round,
		Region:    st.Region,
		Outcome:   st.Outcome,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return OutcomeRecord{}, fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO outcomes (id, shoe_id, round, region_name, outcome, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ShoeID, rec.Round, rec.Region, string(rec.Outcome), toMillis(rec.CreatedAt),
	); err != nil {
		return OutcomeRecord{}, fmt.Errorf("写入结算记录失败: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO game_stats (id, total_games, `+col+`) VALUES (1, 1, 1)
		 ON CONFLICT(id) DO UPDATE SET total_games = total_games + 1, `+col+` = `+col+` + 1`,
	); err != nil {
		return OutcomeRecord{}, fmt.Errorf("更新统计失败: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return OutcomeRecord{}, fmt.Errorf("提交事务失败: %w", err)
	}
	return rec, nil
}

// LoadTally 读取胜负统计，没有记录时返回零值
func (s *Store) LoadTally(ctx context.Context) (strategy.Tally, error) {
	if err := s.ready(ctx); err != nil {
		return strategy.Tally{}, err
	}
	var t strategy.Tally
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT total_games, wins, losses, ties FROM game_stats WHERE id = 1`,
	).Scan(&t.TotalGames, &t.Wins, &t.Losses, &t.Ties)
	if errors.Is(err, sql.ErrNoRows) {
		return strategy.Tally{}, nil
	}
	if err != nil {
		return strategy.Tally{}, fmt.Errorf("读取统计失败: %w", err)
	}
	return t, nil
}

// ListOutcomes 某个牌靴的结算记录，按局数排序
func (s *Store) ListOutcomes(ctx context.Context, shoeID string) ([]OutcomeRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, shoe_id, round, region_name, outcome, created_at
		 FROM outcomes WHERE shoe_id = ? ORDER BY round, region_name`,
		shoeID,
	)
	if err != nil {
		return nil, fmt.Errorf("查询结算记录失败: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var (
			rec       OutcomeRecord
			outcome   string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.ShoeID, &rec.Round, &rec.Region, &outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("读取结算记录失败: %w", err)
		}
		rec.Outcome = strategy.Outcome(outcome)
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
