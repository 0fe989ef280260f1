package services

import (
	"database/sql"
	"fmt"
	"time"

	"bet-manager/database"
	"bet-manager/logger"
)

// BetService 投注生命周期：editable -> locked，单向。
// 所有"预算变动 + 投注写入"都在同一个事务里提交。
type BetService struct {
	db     *sql.DB
	games  *GameService
	budget *BudgetService
}

// NewBetService 创建投注服务
func NewBetService(db *sql.DB, games *GameService, budget *BudgetService) *BetService {
	return &BetService{
		db:     db,
		games:  games,
		budget: budget,
	}
}

const betColumns = `id, user_id, game_id, bet_choice, bet_state, amount, reward, points_granted, created_at`

const betGameColumns = `b.id, b.user_id, b.game_id, b.bet_choice, b.bet_state, b.amount, b.reward, b.points_granted, b.created_at, g.match_time`

func scanBet(scanner interface{ Scan(...interface{}) error }) (*database.Bet, error) {
	var b database.Bet
	err := scanner.Scan(&b.ID, &b.UserID, &b.GameID, &b.BetChoice, &b.BetState,
		&b.Amount, &b.Reward, &b.PointsGranted, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CalculateBetReward 计算投注奖励：猜中为 金额 x 对应赔率，未猜中为 0。
// 比赛结果未定时返回 ErrGameResultPending。缺失的赔率按 1.0 计。
func CalculateBetReward(choice string, amount int, game *database.Game) (float64, error) {
	if game.GameWinner == nil {
		return 0, ErrGameResultPending
	}
	if choice != *game.GameWinner {
		return 0, nil
	}

	var odds *float64
	switch *game.GameWinner {
	case WinnerTeam1:
		odds = game.Team1Odds
	case WinnerTeam2:
		odds = game.Team2Odds
	case WinnerDraw:
		odds = game.DrawOdds
	}
	if odds == nil {
		one := 1.0
		odds = &one
	}
	return float64(amount) * *odds, nil
}

// gamedayOf 投注预算按比赛日归属
func gamedayOf(game *database.Game) string {
	return game.MatchTime.Format("2006-01-02")
}

// Place 下注。要求比赛尚未开球，预算扣除和投注插入原子提交。
func (s *BetService) Place(userID, gameID int64, choice string, amount int) (*database.Bet, int, error) {
	if !ValidBetChoice(choice) {
		return nil, 0, fmt.Errorf("bet choice %q: %w", choice, ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, 0, fmt.Errorf("bet amount must be positive: %w", ErrInvalidInput)
	}

	game, err := s.games.GetByID(gameID)
	if err != nil {
		return nil, 0, err
	}
	if game.GameState != GameStateUpcoming {
		return nil, 0, fmt.Errorf("game %d already started: %w", gameID, ErrBetLocked)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	remaining, err := s.budget.Allocate(tx, userID, gamedayOf(game), amount)
	if err != nil {
		return nil, 0, err
	}

	row := tx.QueryRow(`
		INSERT INTO bets (user_id, game_id, bet_choice, bet_state, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+betColumns,
		userID, gameID, choice, BetStateEditable, amount)
	bet, err := scanBet(row)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to insert bet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit bet: %w", err)
	}

	logger.Printf("[BetService] Bet %d placed by user %d on game %d (%s, %d coins), budget left %d",
		bet.ID, userID, gameID, choice, amount, remaining)
	return bet, remaining, nil
}

// Update 修改投注。仅在可编辑期允许；金额差先过预算账本再落库。
func (s *BetService) Update(betID int64, choice string, amount int) (*database.Bet, int, error) {
	if !ValidBetChoice(choice) {
		return nil, 0, fmt.Errorf("bet choice %q: %w", choice, ErrInvalidInput)
	}
	if amount <= 0 {
		return nil, 0, fmt.Errorf("bet amount must be positive: %w", ErrInvalidInput)
	}

	bet, game, err := s.getBetWithGame(betID)
	if err != nil {
		return nil, 0, err
	}
	if ComputeBetState(game.GameState) != BetStateEditable {
		return nil, 0, fmt.Errorf("bet %d: %w", betID, ErrBetLocked)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	// 加注为负增量（扣预算），减注为正增量（退预算）
	remaining, err := s.budget.Adjust(tx, bet.UserID, gamedayOf(game), bet.Amount-amount)
	if err != nil {
		return nil, 0, err
	}

	row := tx.QueryRow(`
		UPDATE bets SET bet_choice = $1, amount = $2 WHERE id = $3
		RETURNING `+betColumns, choice, amount, betID)
	updated, err := scanBet(row)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to update bet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit bet update: %w", err)
	}

	logger.Printf("[BetService] Bet %d updated (%s, %d coins), budget left %d", betID, choice, amount, remaining)
	return updated, remaining, nil
}

// Delete 删除投注并全额退回预算。仅在可编辑期允许。
func (s *BetService) Delete(betID int64) error {
	bet, game, err := s.getBetWithGame(betID)
	if err != nil {
		return err
	}
	if ComputeBetState(game.GameState) != BetStateEditable {
		return fmt.Errorf("bet %d: %w", betID, ErrBetLocked)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.budget.Adjust(tx, bet.UserID, gamedayOf(game), bet.Amount); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM bets WHERE id = $1`, betID); err != nil {
		return fmt.Errorf("failed to delete bet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bet delete: %w", err)
	}

	logger.Printf("[BetService] Bet %d deleted, %d coins refunded to user %d", betID, bet.Amount, bet.UserID)
	return nil
}

// SettleForGame 结算一场已结束比赛的所有未结算投注。
// 奖励只在 reward 为空时计算一次，重复调用不改变结果。
func (s *BetService) SettleForGame(tx *sql.Tx, game *database.Game) (int, error) {
	if game.GameState != GameStateHistory || game.GameWinner == nil {
		return 0, nil
	}

	rows, err := tx.Query(`SELECT `+betColumns+` FROM bets WHERE game_id = $1 AND reward IS NULL`, game.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to query unsettled bets: %w", err)
	}
	defer rows.Close()

	var bets []*database.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return 0, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	settled := 0
	for _, bet := range bets {
		reward, err := CalculateBetReward(bet.BetChoice, bet.Amount, game)
		if err != nil {
			return settled, err
		}
		_, err = tx.Exec(`UPDATE bets SET reward = $1, bet_state = $2 WHERE id = $3`,
			reward, BetStateLocked, bet.ID)
		if err != nil {
			return settled, fmt.Errorf("failed to settle bet %d: %w", bet.ID, err)
		}
		settled++
	}
	return settled, nil
}

// LockStartedBets 锁定所有比赛已开球的可编辑投注
func (s *BetService) LockStartedBets(tx *sql.Tx, now time.Time) (int, error) {
	result, err := tx.Exec(`
		UPDATE bets SET bet_state = $1
		FROM games
		WHERE bets.game_id = games.id
		  AND bets.bet_state = $2
		  AND games.match_time <= $3`,
		BetStateLocked, BetStateEditable, now)
	if err != nil {
		return 0, fmt.Errorf("failed to lock bets: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// GrantPendingRewards 把已结算、尚未计入总分的奖励累加到用户积分。
// points_granted 标志保证每笔奖励只计入一次。
func (s *BetService) GrantPendingRewards(tx *sql.Tx) (int, error) {
	rows, err := tx.Query(`
		SELECT id, user_id, reward FROM bets
		WHERE reward IS NOT NULL AND points_granted = FALSE
		ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("failed to query pending rewards: %w", err)
	}
	defer rows.Close()

	type pending struct {
		betID  int64
		userID int64
		reward float64
	}
	var pendings []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.betID, &p.userID, &p.reward); err != nil {
			return 0, fmt.Errorf("failed to scan pending reward: %w", err)
		}
		pendings = append(pendings, p)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	granted := 0
	for _, p := range pendings {
		if _, err := tx.Exec(`UPDATE users SET points = points + $1 WHERE id = $2`, p.reward, p.userID); err != nil {
			return granted, fmt.Errorf("failed to grant reward for bet %d: %w", p.betID, err)
		}
		if _, err := tx.Exec(`UPDATE bets SET points_granted = TRUE WHERE id = $1`, p.betID); err != nil {
			return granted, fmt.Errorf("failed to flag bet %d: %w", p.betID, err)
		}
		granted++
	}
	return granted, nil
}

// GetByID 按 ID 查询投注
func (s *BetService) GetByID(betID int64) (*database.Bet, error) {
	row := s.db.QueryRow(`SELECT `+betColumns+` FROM bets WHERE id = $1`, betID)
	bet, err := scanBet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bet %d: %w", betID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bet: %w", err)
	}
	return bet, nil
}

// refreshState 读取路径上按比赛当前状态重算投注状态，不信任存储值。
// 定时锁定还没跑到时，已开球比赛上的投注也要按 locked 返回。
func (s *BetService) refreshState(bet *database.Bet, matchTime, now time.Time) {
	recomputed := ComputeBetState(ComputeGameState(now, matchTime, s.games.duration))
	if recomputed == BetStateLocked {
		bet.BetState = BetStateLocked
	}
}

// GetUserBets 查询用户的投注，state 为空时返回全部
func (s *BetService) GetUserBets(userID int64, state string) ([]*database.Bet, error) {
	rows, err := s.db.Query(`
		SELECT `+betGameColumns+` FROM bets b
		JOIN games g ON b.game_id = g.id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user bets: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var bets []*database.Bet
	for rows.Next() {
		var b database.Bet
		var matchTime time.Time
		err := rows.Scan(&b.ID, &b.UserID, &b.GameID, &b.BetChoice, &b.BetState,
			&b.Amount, &b.Reward, &b.PointsGranted, &b.CreatedAt, &matchTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		s.refreshState(&b, matchTime, now)
		if state != "" && b.BetState != state {
			continue
		}
		bets = append(bets, &b)
	}
	return bets, rows.Err()
}

// GetUserGameBet 查询用户在某场比赛上的投注
func (s *BetService) GetUserGameBet(userID, gameID int64) (*database.Bet, error) {
	row := s.db.QueryRow(`
		SELECT `+betGameColumns+` FROM bets b
		JOIN games g ON b.game_id = g.id
		WHERE b.user_id = $1 AND b.game_id = $2`, userID, gameID)

	var b database.Bet
	var matchTime time.Time
	err := row.Scan(&b.ID, &b.UserID, &b.GameID, &b.BetChoice, &b.BetState,
		&b.Amount, &b.Reward, &b.PointsGranted, &b.CreatedAt, &matchTime)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bet for user %d on game %d: %w", userID, gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bet: %w", err)
	}
	s.refreshState(&b, matchTime, time.Now())
	return &b, nil
}

func (s *BetService) getBetWithGame(betID int64) (*database.Bet, *database.Game, error) {
	bet, err := s.GetByID(betID)
	if err != nil {
		return nil, nil, err
	}
	game, err := s.games.GetByID(bet.GameID)
	if err != nil {
		return nil, nil, err
	}
	return bet, game, nil
}
