package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// BudgetService 每日投注预算账本。
// 预算只通过 Allocate/Adjust 两个操作变动，且必须和依赖它的投注
// 写入在同一个事务里提交，避免预算和投注不一致。
type BudgetService struct {
	db      *sql.DB
	weights map[string]int
}

// NewBudgetService 创建预算服务
func NewBudgetService(db *sql.DB, stageWeights map[string]int) *BudgetService {
	return &BudgetService{
		db:      db,
		weights: stageWeights,
	}
}

// GamedayInfo 单个比赛日的场次和阶段
type GamedayInfo struct {
	Gameday  string // YYYY-MM-DD
	NumGames int
	Stage    string // 当日首场比赛所属阶段
}

// BuildBudget 按比赛日数据计算初始预算表：场次 x 阶段权重，未知阶段权重 0
func BuildBudget(gamedays []GamedayInfo, weights map[string]int) map[string]int {
	budget := make(map[string]int, len(gamedays))
	for _, day := range gamedays {
		budget[day.Gameday] = day.NumGames * weights[day.Stage]
	}
	return budget
}

// ApplyBudgetDelta 在内存预算表上应用增量，拒绝负余额
func ApplyBudgetDelta(budget map[string]int, gameday string, delta int) (int, error) {
	current, ok := budget[gameday]
	if !ok {
		return 0, fmt.Errorf("no budget for gameday %s: %w", gameday, ErrNotFound)
	}
	next := current + delta
	if next < 0 {
		return 0, ErrInsufficientBudget
	}
	budget[gameday] = next
	return next, nil
}

// BuildGamedayBudget 从已知比赛计算新用户的初始预算表
func (s *BudgetService) BuildGamedayBudget() (map[string]int, error) {
	// 当日预算权重取当日首场比赛的阶段
	rows, err := s.db.Query(`
		SELECT DATE(match_time)::text AS gameday, COUNT(*) AS num_games,
		       (ARRAY_AGG(stage ORDER BY match_time))[1] AS stage
		FROM games
		GROUP BY DATE(match_time)
		ORDER BY DATE(match_time)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query gamedays: %w", err)
	}
	defer rows.Close()

	var gamedays []GamedayInfo
	for rows.Next() {
		var info GamedayInfo
		var stage sql.NullString
		if err := rows.Scan(&info.Gameday, &info.NumGames, &stage); err != nil {
			return nil, fmt.Errorf("failed to scan gameday row: %w", err)
		}
		if stage.Valid {
			info.Stage = stage.String
		} else {
			info.Stage = "Unknown"
		}
		gamedays = append(gamedays, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return BuildBudget(gamedays, s.weights), nil
}

// Allocate 从用户的当日预算扣除下注金额，余额不足则失败。
// 在调用方事务内执行，行级锁防止并发修改丢失更新。
func (s *BudgetService) Allocate(tx *sql.Tx, userID int64, gameday string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("allocate amount must be positive: %w", ErrInvalidInput)
	}
	return s.apply(tx, userID, gameday, -amount)
}

// Adjust 带符号调整当日预算：退款为正、追加下注为负，结果不允许为负
func (s *BudgetService) Adjust(tx *sql.Tx, userID int64, gameday string, delta int) (int, error) {
	return s.apply(tx, userID, gameday, delta)
}

func (s *BudgetService) apply(tx *sql.Tx, userID int64, gameday string, delta int) (int, error) {
	var raw []byte
	err := tx.QueryRow(`SELECT gameday_budget FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load budget: %w", err)
	}

	budget := make(map[string]int)
	if err := json.Unmarshal(raw, &budget); err != nil {
		return 0, fmt.Errorf("failed to parse budget: %w", err)
	}

	remaining, err := ApplyBudgetDelta(budget, gameday, delta)
	if err != nil {
		return 0, err
	}

	updated, err := json.Marshal(budget)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal budget: %w", err)
	}
	if _, err := tx.Exec(`UPDATE users SET gameday_budget = $1, last_updated_at = CURRENT_TIMESTAMP WHERE id = $2`, updated, userID); err != nil {
		return 0, fmt.Errorf("failed to update budget: %w", err)
	}

	return remaining, nil
}

// GetBudget 查询用户某个比赛日的剩余预算
func (s *BudgetService) GetBudget(userID int64, gameday string) (int, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT gameday_budget FROM users WHERE id = $1`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	budget := make(map[string]int)
	if err := json.Unmarshal(raw, &budget); err != nil {
		return 0, fmt.Errorf("failed to parse budget: %w", err)
	}

	remaining, ok := budget[gameday]
	if !ok {
		return 0, fmt.Errorf("no budget for gameday %s: %w", gameday, ErrNotFound)
	}
	return remaining, nil
}
