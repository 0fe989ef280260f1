package services

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"bet-manager/logger"
)

// GameOdds 一场比赛的十进制赔率
type GameOdds struct {
	Team1     string
	Team2     string
	Team1Odds *float64
	Team2Odds *float64
	DrawOdds  *float64
}

// OddsProvider 赔率来源
type OddsProvider interface {
	FetchOdds() ([]GameOdds, error)
}

// OddsClient 赔率 API 客户端，读取 h2h 盘口
type OddsClient struct {
	apiURL string
	apiKey string
	client *http.Client
	names  *TeamNameResolver
}

// NewOddsClient 创建赔率客户端
func NewOddsClient(apiURL, apiKey string, names *TeamNameResolver) *OddsClient {
	return &OddsClient{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
		names:  names,
	}
}

type oddsEvent struct {
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Bookmakers []struct {
		Markets []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name  string  `json:"name"`
				Price float64 `json:"price"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// FetchOdds 拉取所有未开赛比赛的赔率，取第一个有 h2h 盘口的庄家
func (c *OddsClient) FetchOdds() ([]GameOdds, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("regions", "eu")
	params.Set("markets", "h2h")
	params.Set("oddsFormat", "decimal")

	var events []oddsEvent
	if err := getJSONWithRetry(c.client, c.apiURL, params, &events); err != nil {
		return nil, fmt.Errorf("odds fetch: %w", err)
	}

	var result []GameOdds
	for _, ev := range events {
		home := c.names.CleanAPIName(ev.HomeTeam)
		away := c.names.CleanAPIName(ev.AwayTeam)
		odds := GameOdds{Team1: home, Team2: away}

		found := false
		for _, bk := range ev.Bookmakers {
			for _, market := range bk.Markets {
				if market.Key != "h2h" {
					continue
				}
				for _, outcome := range market.Outcomes {
					price := outcome.Price
					switch c.names.CleanAPIName(outcome.Name) {
					case home:
						odds.Team1Odds = &price
					case away:
						odds.Team2Odds = &price
					default:
						odds.DrawOdds = &price
					}
				}
				found = true
				break
			}
			if found {
				break
			}
		}
		if !found {
			continue
		}
		result = append(result, odds)
	}

	logger.Printf("[OddsClient] Fetched odds for %d games", len(result))
	return result, nil
}
