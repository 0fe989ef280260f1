package services

import (
	"database/sql"
	"fmt"
	"time"

	"bet-manager/database"
	"bet-manager/logger"
)

// MatchFact 外部来源的一场比赛事实，按 (team1, team2, match_time) 去重
type MatchFact struct {
	Team1             string
	Team2             string
	MatchTime         time.Time
	Stage             *string
	Gameday           *int
	ScoreTeam1        *int
	ScoreTeam2        *int
	PenaltyScoreTeam1 *int
	PenaltyScoreTeam2 *int
	Team1Odds         *float64
	Team2Odds         *float64
	DrawOdds          *float64
}

// GameService 比赛查询与事实写入
type GameService struct {
	db       *sql.DB
	duration time.Duration
}

// NewGameService 创建比赛服务
func NewGameService(db *sql.DB, gameDuration time.Duration) *GameService {
	return &GameService{
		db:       db,
		duration: gameDuration,
	}
}

const gameColumns = `id, stage, gameday, team1, team2, match_time, game_state,
	score_team1, score_team2, penalty_score_team1, penalty_score_team2,
	game_winner, team1_odds, team2_odds, draw_odds, created_at`

func scanGame(scanner interface{ Scan(...interface{}) error }) (*database.Game, error) {
	var g database.Game
	err := scanner.Scan(
		&g.ID, &g.Stage, &g.Gameday, &g.Team1, &g.Team2, &g.MatchTime, &g.GameState,
		&g.ScoreTeam1, &g.ScoreTeam2, &g.PenaltyScoreTeam1, &g.PenaltyScoreTeam2,
		&g.GameWinner, &g.Team1Odds, &g.Team2Odds, &g.DrawOdds, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Refresh 就地重算派生字段（状态、结果），不落库。
// 所有对外读取都先经过这里，不信任存储的旧值。
func (s *GameService) Refresh(g *database.Game, now time.Time) {
	g.GameState = ComputeGameState(now, g.MatchTime, s.duration)
	stage := ""
	if g.Stage != nil {
		stage = *g.Stage
	}
	winner := DetermineWinner(g.ScoreTeam1, g.ScoreTeam2, g.PenaltyScoreTeam1, g.PenaltyScoreTeam2, stage)
	if winner == WinnerUndetermined {
		g.GameWinner = nil
	} else {
		g.GameWinner = &winner
	}
}

// GetByID 按 ID 查询比赛
func (s *GameService) GetByID(gameID int64) (*database.Game, error) {
	row := s.db.QueryRow(`SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID)
	game, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("game %d: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query game: %w", err)
	}
	s.Refresh(game, time.Now())
	return game, nil
}

// ListAll 按开球时间列出所有比赛
func (s *GameService) ListAll() ([]*database.Game, error) {
	return s.list(`SELECT ` + gameColumns + ` FROM games ORDER BY match_time`)
}

// ListByDate 列出某个比赛日的所有比赛
func (s *GameService) ListByDate(date string) ([]*database.Game, error) {
	return s.list(`SELECT `+gameColumns+` FROM games WHERE DATE(match_time)::text = $1 ORDER BY match_time`, date)
}

func (s *GameService) list(query string, args ...interface{}) ([]*database.Game, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var games []*database.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		s.Refresh(game, now)
		games = append(games, game)
	}
	return games, rows.Err()
}

// IngestFact 写入一条比赛事实：新比赛插入，未定结果的已有比赛补比分和赔率。
// 已有结果的比赛不再改动。
func (s *GameService) IngestFact(tx *sql.Tx, fact MatchFact) (bool, error) {
	var gameID int64
	var winner sql.NullString
	err := tx.QueryRow(`
		SELECT id, game_winner FROM games
		WHERE team1 = $1 AND team2 = $2 AND match_time = $3`,
		fact.Team1, fact.Team2, fact.MatchTime).Scan(&gameID, &winner)

	if err == sql.ErrNoRows {
		_, err := tx.Exec(`
			INSERT INTO games (stage, gameday, team1, team2, match_time,
				score_team1, score_team2, penalty_score_team1, penalty_score_team2,
				team1_odds, team2_odds, draw_odds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			fact.Stage, fact.Gameday, fact.Team1, fact.Team2, fact.MatchTime,
			fact.ScoreTeam1, fact.ScoreTeam2, fact.PenaltyScoreTeam1, fact.PenaltyScoreTeam2,
			fact.Team1Odds, fact.Team2Odds, fact.DrawOdds)
		if err != nil {
			return false, fmt.Errorf("failed to insert game: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up game: %w", err)
	}

	// 已有结果的比赛不覆盖
	if winner.Valid {
		return false, nil
	}

	_, err = tx.Exec(`
		UPDATE games SET
			score_team1 = COALESCE($1, score_team1),
			score_team2 = COALESCE($2, score_team2),
			penalty_score_team1 = COALESCE($3, penalty_score_team1),
			penalty_score_team2 = COALESCE($4, penalty_score_team2),
			team1_odds = COALESCE($5, team1_odds),
			team2_odds = COALESCE($6, team2_odds),
			draw_odds = COALESCE($7, draw_odds)
		WHERE id = $8`,
		fact.ScoreTeam1, fact.ScoreTeam2, fact.PenaltyScoreTeam1, fact.PenaltyScoreTeam2,
		fact.Team1Odds, fact.Team2Odds, fact.DrawOdds, gameID)
	if err != nil {
		return false, fmt.Errorf("failed to patch game: %w", err)
	}
	return false, nil
}

// UpdateOdds 更新一场比赛的赔率（已有结果的比赛跳过）
func (s *GameService) UpdateOdds(tx *sql.Tx, team1, team2 string, team1Odds, team2Odds, drawOdds *float64) error {
	result, err := tx.Exec(`
		UPDATE games SET team1_odds = $1, team2_odds = $2, draw_odds = $3
		WHERE team1 = $4 AND team2 = $5 AND game_winner IS NULL`,
		team1Odds, team2Odds, drawOdds, team1, team2)
	if err != nil {
		return fmt.Errorf("failed to update odds: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		logger.Printf("[GameService] No open game found for odds update: %s vs %s", team1, team2)
	}
	return nil
}

// PersistDerivedState 把派生状态/结果回写为缓存列。
// 处理还没进入 history 的比赛，以及比分晚到、结果仍空缺的已结束比赛，
// 重复执行安全。
func (s *GameService) PersistDerivedState(tx *sql.Tx, now time.Time) (int, error) {
	rows, err := tx.Query(`SELECT ` + gameColumns + ` FROM games WHERE game_state != 'history' OR game_winner IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to query open games: %w", err)
	}
	defer rows.Close()

	var games []*database.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return 0, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	updated := 0
	for _, game := range games {
		s.Refresh(game, now)
		_, err := tx.Exec(`UPDATE games SET game_state = $1, game_winner = $2 WHERE id = $3`,
			game.GameState, game.GameWinner, game.ID)
		if err != nil {
			return updated, fmt.Errorf("failed to persist game state: %w", err)
		}
		updated++
	}
	return updated, nil
}
