package services

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bet-manager/logger"
)

// TeamStanding 积分榜上一支球队的联赛阶段数据
type TeamStanding struct {
	Name           string
	Points         int
	GoalDifference int
	GoalsFor       int
	GoalsAgainst   int
}

// PlayerFact 一名球员的累计数据
type PlayerFact struct {
	Name        string
	Team        string
	Goals       int
	Assists     int
	YellowCards int
	RedCards    int
}

// TeamStatsProvider 积分榜和球员数据来源
type TeamStatsProvider interface {
	FetchStandings() ([]TeamStanding, error)
	FetchPlayers() ([]PlayerFact, error)
}

// StatsClient 积分榜/球员数据 API 客户端
type StatsClient struct {
	baseURL       string
	key           string
	secret        string
	competitionID string
	client        *http.Client
	names         *TeamNameResolver
}

// NewStatsClient 创建数据统计客户端
func NewStatsClient(baseURL, key, secret, competitionID string, names *TeamNameResolver) *StatsClient {
	return &StatsClient{
		baseURL:       baseURL,
		key:           key,
		secret:        secret,
		competitionID: competitionID,
		client:        &http.Client{Timeout: 30 * time.Second},
		names:         names,
	}
}

func (c *StatsClient) params() url.Values {
	params := url.Values{}
	params.Set("key", c.key)
	params.Set("secret", c.secret)
	params.Set("competition_id", c.competitionID)
	return params
}

type standingsResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Table []struct {
			Name          string `json:"name"`
			Points        int    `json:"points"`
			GoalDiff      int    `json:"goal_diff"`
			GoalsScored   int    `json:"goals_scored"`
			GoalsConceded int    `json:"goals_conceded"`
		} `json:"table"`
	} `json:"data"`
}

// FetchStandings 拉取联赛阶段积分榜
func (c *StatsClient) FetchStandings() ([]TeamStanding, error) {
	var resp standingsResponse
	if err := getJSONWithRetry(c.client, c.baseURL+"/standings", c.params(), &resp); err != nil {
		return nil, fmt.Errorf("standings fetch: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("standings API reported failure: %w", ErrUpstreamUnavailable)
	}

	standings := make([]TeamStanding, 0, len(resp.Data.Table))
	for _, row := range resp.Data.Table {
		standings = append(standings, TeamStanding{
			Name:           c.names.CleanAPIName(row.Name),
			Points:         row.Points,
			GoalDifference: row.GoalDiff,
			GoalsFor:       row.GoalsScored,
			GoalsAgainst:   row.GoalsConceded,
		})
	}
	logger.Printf("[StatsClient] Fetched standings for %d teams", len(standings))
	return standings, nil
}

type playersResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Players []struct {
			Name        string `json:"name"`
			TeamName    string `json:"team_name"`
			Goals       int    `json:"goals"`
			Assists     int    `json:"assists"`
			YellowCards int    `json:"yellow_cards"`
			RedCards    int    `json:"red_cards"`
		} `json:"players"`
	} `json:"data"`
}

// FetchPlayers 拉取球员进球/助攻等累计数据
func (c *StatsClient) FetchPlayers() ([]PlayerFact, error) {
	var resp playersResponse
	if err := getJSONWithRetry(c.client, c.baseURL+"/players", c.params(), &resp); err != nil {
		return nil, fmt.Errorf("players fetch: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("players API reported failure: %w", ErrUpstreamUnavailable)
	}

	players := make([]PlayerFact, 0, len(resp.Data.Players))
	for _, row := range resp.Data.Players {
		players = append(players, PlayerFact{
			Name:        row.Name,
			Team:        c.names.CleanAPIName(row.TeamName),
			Goals:       row.Goals,
			Assists:     row.Assists,
			YellowCards: row.YellowCards,
			RedCards:    row.RedCards,
		})
	}
	logger.Printf("[StatsClient] Fetched stats for %d players", len(players))
	return players, nil
}
