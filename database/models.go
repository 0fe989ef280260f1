package database

import (
	"encoding/json"
	"time"
)

// User 用户
type User struct {
	ID             int64           `db:"id"`
	Username       string          `db:"username"`
	Email          string          `db:"email"`
	HashedPassword string          `db:"hashed_password"`
	Points         float64         `db:"points"`
	GamedayBudget  map[string]int  `db:"gameday_budget"`
	BettingLeagues []int64         `db:"betting_leagues"`
	CreatedAt      time.Time       `db:"created_at"`
	LastUpdatedAt  time.Time       `db:"last_updated_at"`
}

// Game 比赛
type Game struct {
	ID                int64     `db:"id"`
	Stage             *string   `db:"stage"`
	Gameday           *int      `db:"gameday"`
	Team1             string    `db:"team1"`
	Team2             string    `db:"team2"`
	MatchTime         time.Time `db:"match_time"`
	GameState         string    `db:"game_state"` // upcoming, ongoing, history
	ScoreTeam1        *int      `db:"score_team1"`
	ScoreTeam2        *int      `db:"score_team2"`
	PenaltyScoreTeam1 *int      `db:"penalty_score_team1"`
	PenaltyScoreTeam2 *int      `db:"penalty_score_team2"`
	GameWinner        *string   `db:"game_winner"` // "1", "2", "X"
	Team1Odds         *float64  `db:"team1_odds"`
	Team2Odds         *float64  `db:"team2_odds"`
	DrawOdds          *float64  `db:"draw_odds"`
	CreatedAt         time.Time `db:"created_at"`
}

// Bet 投注
type Bet struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	GameID        int64     `db:"game_id"`
	BetChoice     string    `db:"bet_choice"` // "1", "2", "X"
	BetState      string    `db:"bet_state"`  // editable, locked
	Amount        int       `db:"amount"`
	Reward        *float64  `db:"reward"`
	PointsGranted bool      `db:"points_granted"`
	CreatedAt     time.Time `db:"created_at"`
}

// SideBet 附加竞猜
type SideBet struct {
	ID                int64           `db:"id"`
	Question          string          `db:"question"`
	Options           json.RawMessage `db:"options"`
	Answer            json.RawMessage `db:"answer"`
	Reward            int             `db:"reward"`
	BetState          string          `db:"bet_state"`
	LastTimeToBet     time.Time       `db:"last_time_to_bet"`
	TimeToCheckAnswer *time.Time      `db:"time_to_check_answer"`
}

// UserSideBet 用户附加竞猜记录
type UserSideBet struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	SideBetID   int64           `db:"side_bet_id"`
	BetChoice   json.RawMessage `db:"bet_choice"`
	Reward      *int            `db:"reward"`
	SubmittedAt time.Time       `db:"submitted_at"`
}

// LeagueMember 联盟成员（betting_leagues.members 的元素）
type LeagueMember struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Points   float64 `json:"points"`
}

// BettingLeague 竞猜联盟
type BettingLeague struct {
	ID           int64          `db:"id"`
	Name         string         `db:"name"`
	Description  *string        `db:"description"`
	ManagerID    int64          `db:"manager_id"`
	Members      []LeagueMember `db:"members"`
	Public       bool           `db:"public"`
	Code         *string        `db:"code"`
	GroupPicture *string        `db:"group_picture"`
	CreatedAt    time.Time      `db:"created_at"`
}

// LeagueMessage 联盟群聊消息
type LeagueMessage struct {
	ID        int64     `db:"id"`
	LeagueID  int64     `db:"league_id"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// TeamStats 球队分阶段统计（teams.stats 的值，按阶段名分组）
type TeamStats struct {
	GoalDifference int `json:"goal_difference"`
	GoalsFor       int `json:"goals_for"`
	GoalsAgainst   int `json:"goals_against"`
}

// Team 球队
type Team struct {
	ID      int64                `db:"id"`
	Name    string               `db:"name"`
	LogoURL *string              `db:"logo_url"`
	Points  int                  `db:"points"`
	Stats   map[string]TeamStats `db:"stats"`
}

// PlayerStats 球员统计（players.stats）
type PlayerStats struct {
	Goals       int `json:"goals"`
	Assists     int `json:"assists"`
	YellowCards int `json:"yellow_cards"`
	RedCards    int `json:"red_cards"`
}

// Player 球员
type Player struct {
	ID     int64       `db:"id"`
	Name   string      `db:"name"`
	TeamID int64       `db:"team_id"`
	Stats  PlayerStats `db:"stats"`
}
