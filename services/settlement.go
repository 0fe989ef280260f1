package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bet-manager/database"
	"bet-manager/logger"
)

// EventBroadcaster 接口用于广播结算事件，避免循环依赖
type EventBroadcaster interface {
	Broadcast(msg interface{})
}

// SettlementService 结算协调器。
// 启动时先跑一轮，之后按固定间隔轮询：从外部源拉取赛程、赛果、
// 赔率和统计数据，然后在一个事务里完成全部派生与派奖步骤。
// 每一步都幂等，一轮失败整体回滚，下一轮重做。
type SettlementService struct {
	db          *sql.DB
	games       *GameService
	bets        *BetService
	sideBets    *SideBetService
	facts       MatchFactsProvider
	odds        OddsProvider
	teamStats   TeamStatsProvider
	stats       *SettlementStats
	broadcaster EventBroadcaster
	interval    time.Duration

	runMu sync.Mutex
	done  chan bool
}

// NewSettlementService 创建结算服务
func NewSettlementService(
	db *sql.DB,
	games *GameService,
	bets *BetService,
	sideBets *SideBetService,
	facts MatchFactsProvider,
	odds OddsProvider,
	teamStats TeamStatsProvider,
	stats *SettlementStats,
	broadcaster EventBroadcaster,
	interval time.Duration,
) *SettlementService {
	return &SettlementService{
		db:          db,
		games:       games,
		bets:        bets,
		sideBets:    sideBets,
		facts:       facts,
		odds:        odds,
		teamStats:   teamStats,
		stats:       stats,
		broadcaster: broadcaster,
		interval:    interval,
		done:        make(chan bool),
	}
}

// Start 启动结算循环：先立即跑一轮，再按间隔轮询
func (s *SettlementService) Start() {
	logger.Printf("[Settlement] Starting settlement loop (interval: %v)", s.interval)

	if err := s.RunPass(); err != nil {
		logger.Errorf("[Settlement] Initial pass failed: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			logger.Println("[Settlement] Settlement loop stopped")
			return
		case <-ticker.C:
			if err := s.RunPass(); err != nil {
				logger.Errorf("[Settlement] Pass failed: %v", err)
			}
		}
	}
}

// Stop 停止结算循环
func (s *SettlementService) Stop() {
	close(s.done)
}

// RunPass 执行一轮结算。同一时刻只允许一轮在跑。
// 外部拉取在事务外进行，某个来源失败只记日志并跳过；
// 落库和派奖的全部步骤在一个事务里提交。
func (s *SettlementService) RunPass() error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	logger.Println("[Settlement] Pass started")
	start := time.Now()

	facts := s.fetchFacts()
	gameOdds := s.fetchOdds()
	standings, players := s.fetchTeamStats()

	if err := s.settle(facts, gameOdds, standings, players); err != nil {
		s.stats.RecordFailure(err)
		return err
	}

	s.stats.RecordPass()
	logger.Printf("[Settlement] Pass completed in %v", time.Since(start))

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(map[string]interface{}{
			"type":      "settlement_completed",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
	return nil
}

// ApplyFacts 在独立事务里落一批比赛事实并刷新派生状态。
// 比分推送通道走这里，不等下一轮结算。
func (s *SettlementService) ApplyFacts(facts []MatchFact) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, fact := range facts {
		if _, err := s.games.IngestFact(tx, fact); err != nil {
			return err
		}
	}
	if _, err := s.games.PersistDerivedState(tx, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SettlementService) fetchFacts() []MatchFact {
	if s.facts == nil {
		return nil
	}
	facts, err := s.facts.FetchMatchFacts()
	if err != nil {
		logger.Errorf("[Settlement] Match facts unavailable, skipping: %v", err)
		return nil
	}
	return facts
}

func (s *SettlementService) fetchOdds() []GameOdds {
	if s.odds == nil {
		return nil
	}
	odds, err := s.odds.FetchOdds()
	if err != nil {
		logger.Errorf("[Settlement] Odds unavailable, skipping: %v", err)
		return nil
	}
	return odds
}

func (s *SettlementService) fetchTeamStats() ([]TeamStanding, []PlayerFact) {
	if s.teamStats == nil {
		return nil, nil
	}
	standings, err := s.teamStats.FetchStandings()
	if err != nil {
		logger.Errorf("[Settlement] Standings unavailable, skipping: %v", err)
		standings = nil
	}
	players, err := s.teamStats.FetchPlayers()
	if err != nil {
		logger.Errorf("[Settlement] Player stats unavailable, skipping: %v", err)
		players = nil
	}
	return standings, players
}

func (s *SettlementService) settle(facts []MatchFact, gameOdds []GameOdds, standings []TeamStanding, players []PlayerFact) error {
	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. 落比赛事实、赔率、球队和球员数据
	inserted := 0
	for _, fact := range facts {
		isNew, err := s.games.IngestFact(tx, fact)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		if isNew {
			inserted++
		}
	}
	s.stats.RecordStep("games_inserted", inserted)

	for _, odds := range gameOdds {
		if err := s.games.UpdateOdds(tx, odds.Team1, odds.Team2, odds.Team1Odds, odds.Team2Odds, odds.DrawOdds); err != nil {
			return fmt.Errorf("odds update: %w", err)
		}
	}

	if err := s.upsertTeams(tx, standings); err != nil {
		return fmt.Errorf("teams upsert: %w", err)
	}
	if err := s.upsertPlayers(tx, players); err != nil {
		return fmt.Errorf("players upsert: %w", err)
	}

	// 2. 回写比赛派生状态
	refreshed, err := s.games.PersistDerivedState(tx, now)
	if err != nil {
		return fmt.Errorf("derive: %w", err)
	}
	s.stats.RecordStep("games_refreshed", refreshed)

	// 3. 锁定已开赛投注并结算有结果的比赛
	locked, err := s.bets.LockStartedBets(tx, now)
	if err != nil {
		return fmt.Errorf("lock bets: %w", err)
	}
	s.stats.RecordStep("bets_locked", locked)

	settled, err := s.settleFinishedGames(tx)
	if err != nil {
		return fmt.Errorf("settle bets: %w", err)
	}
	s.stats.RecordStep("bets_settled", settled)

	// 4. 把未入账的奖励折算进用户积分
	granted, err := s.bets.GrantPendingRewards(tx)
	if err != nil {
		return fmt.Errorf("grant rewards: %w", err)
	}
	s.stats.RecordStep("rewards_granted", granted)

	// 5. 锁定过期的特殊投注
	sideLocked, err := s.sideBets.LockExpired(tx, now)
	if err != nil {
		return fmt.Errorf("lock side bets: %w", err)
	}
	s.stats.RecordStep("side_bets_locked", sideLocked)

	// 6. 计算到期特殊投注的答案
	answered, err := s.sideBets.ComputeAnswers(tx, now)
	if err != nil {
		return fmt.Errorf("compute answers: %w", err)
	}
	s.stats.RecordStep("side_bet_answers", answered)

	// 7. 给答对的特殊投注派奖
	credited, err := s.sideBets.CreditRewards(tx)
	if err != nil {
		return fmt.Errorf("credit side bets: %w", err)
	}
	s.stats.RecordStep("side_bets_credited", credited)

	return tx.Commit()
}

// settleFinishedGames 结算所有已结束且有结果的比赛的投注
func (s *SettlementService) settleFinishedGames(tx *sql.Tx) (int, error) {
	rows, err := tx.Query(`SELECT ` + gameColumns + ` FROM games
		WHERE game_state = 'history' AND game_winner IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to query finished games: %w", err)
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

	settled := 0
	for _, game := range games {
		n, err := s.bets.SettleForGame(tx, game)
		if err != nil {
			return settled, err
		}
		settled += n
	}
	return settled, nil
}

// upsertTeams 按球队名 upsert 联赛阶段积分和净胜球
func (s *SettlementService) upsertTeams(tx *sql.Tx, standings []TeamStanding) error {
	for _, st := range standings {
		stats, err := json.Marshal(map[string]database.TeamStats{
			StageLeaguePhase: {
				GoalDifference: st.GoalDifference,
				GoalsFor:       st.GoalsFor,
				GoalsAgainst:   st.GoalsAgainst,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to marshal team stats: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO teams (name, points, stats)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET points = EXCLUDED.points, stats = EXCLUDED.stats`,
			st.Name, st.Points, stats)
		if err != nil {
			return fmt.Errorf("failed to upsert team %s: %w", st.Name, err)
		}
	}
	return nil
}

// upsertPlayers 按 (球员, 球队) upsert 球员累计数据，球队未入库的球员跳过
func (s *SettlementService) upsertPlayers(tx *sql.Tx, players []PlayerFact) error {
	for _, p := range players {
		var teamID int64
		err := tx.QueryRow(`SELECT id FROM teams WHERE name = $1`, p.Team).Scan(&teamID)
		if err == sql.ErrNoRows {
			logger.Printf("[Settlement] Skipping player %s: unknown team %s", p.Name, p.Team)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up team %s: %w", p.Team, err)
		}

		stats, err := json.Marshal(database.PlayerStats{
			Goals:       p.Goals,
			Assists:     p.Assists,
			YellowCards: p.YellowCards,
			RedCards:    p.RedCards,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal player stats: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO players (name, team_id, stats)
			VALUES ($1, $2, $3)
			ON CONFLICT (name, team_id) DO UPDATE SET stats = EXCLUDED.stats`,
			p.Name, teamID, stats)
		if err != nil {
			return fmt.Errorf("failed to upsert player %s: %w", p.Name, err)
		}
	}
	return nil
}
